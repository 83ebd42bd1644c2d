package controller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/harunnryd/voxcall/pkg/convo"
	"github.com/harunnryd/voxcall/pkg/errorsx"
	"github.com/harunnryd/voxcall/pkg/generator"
	"github.com/harunnryd/voxcall/pkg/providers/mock"
	"github.com/harunnryd/voxcall/pkg/redact"
	"github.com/harunnryd/voxcall/pkg/resilience"
	"github.com/harunnryd/voxcall/pkg/store"
	"github.com/harunnryd/voxcall/pkg/store/memory"
	"github.com/harunnryd/voxcall/pkg/tts"
	"github.com/harunnryd/voxcall/pkg/voices"
)

type stubDialer struct {
	to        string
	sessionID string
	sid       string
	err       error
}

func (d *stubDialer) Dial(ctx context.Context, to, sessionID string) (string, error) {
	d.to = to
	d.sessionID = sessionID
	if d.err != nil {
		return "", d.err
	}
	return d.sid, nil
}

type stubVoices struct {
	profiles map[string]voices.Profile
}

func (v *stubVoices) Get(name string) (voices.Profile, error) {
	p, ok := v.profiles[name]
	if !ok {
		return voices.Profile{}, voices.ErrNotFound
	}
	return p, nil
}

type flakyStore struct {
	store.Store
	appendErr error
}

func (f *flakyStore) Append(ctx context.Context, turn convo.Turn) (convo.Turn, error) {
	if f.appendErr != nil {
		return convo.Turn{}, f.appendErr
	}
	return f.Store.Append(ctx, turn)
}

type fixture struct {
	ctrl   *Controller
	store  store.Store
	dialer *stubDialer
	synth  *mock.Synthesizer
}

func newFixture(t *testing.T, llmCfg mock.LLMConfig, ttsErr error, st store.Store) *fixture {
	t.Helper()
	if st == nil {
		st = memory.New()
	}
	gen := generator.New(mock.NewLLMAdapter(llmCfg), generator.Config{}, nil, nil)
	synth := mock.NewSynthesizer(mock.TTSConfig{
		Artifacts: tts.ArtifactStore{Dir: t.TempDir(), BaseURL: "https://example.com/static/audio"},
		Err:       ttsErr,
	})
	vr := &stubVoices{profiles: map[string]voices.Profile{
		"alice": {Name: "alice", ReferenceWAV: "/voices/alice/reference.wav"},
	}}
	dialer := &stubDialer{sid: "CA999"}
	ctrl := New(Config{AppendRetry: resilience.NewRetryPolicy(1, 0)}, st, gen, synth, vr, dialer, nil, nil)
	return &fixture{ctrl: ctrl, store: st, dialer: dialer, synth: synth}
}

func (f *fixture) createSession(t *testing.T) convo.Session {
	t.Helper()
	sess, err := f.ctrl.Create(context.Background(), "+15551234567", "alice", "Hi there!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return sess
}

func TestCreatePersistsAndDials(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	sess := f.createSession(t)

	if f.dialer.to != "+15551234567" || f.dialer.sessionID != sess.ID {
		t.Fatalf("dialer called with to=%q session=%q", f.dialer.to, f.dialer.sessionID)
	}
	got, err := f.store.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != convo.StatusInitiated {
		t.Fatalf("expected INITIATED, got %s", got.Status)
	}
	if got.ProviderSID != "CA999" {
		t.Fatalf("expected provider sid recorded, got %q", got.ProviderSID)
	}
	if got.OpeningMessage != "Hi there!" {
		t.Fatalf("unexpected opening message %q", got.OpeningMessage)
	}
}

func TestCreateRejectsUnknownVoice(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	_, err := f.ctrl.Create(context.Background(), "+1555", "nobody", "")
	if err == nil || !errorsx.HasReason(err, errorsx.ReasonVoiceNotFound) {
		t.Fatalf("expected voice not found, got %v", err)
	}
}

func TestCreateDialFailureMarksFailed(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	f.dialer.err = errors.New("provider down")

	sess, err := f.ctrl.Create(context.Background(), "+1555", "alice", "")
	if err == nil {
		t.Fatalf("expected dial error")
	}
	got, gerr := f.store.GetSession(context.Background(), sess.ID)
	if gerr != nil {
		t.Fatalf("get session: %v", gerr)
	}
	if got.Status != convo.StatusFailed {
		t.Fatalf("expected FAILED after dial error, got %s", got.Status)
	}
}

func TestOnAnswerSpeaksOpeningAndListens(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	sess := f.createSession(t)

	doc := f.ctrl.OnAnswer(context.Background(), sess.ID)
	if !strings.Contains(doc, "<Play>https://example.com/static/audio/") {
		t.Fatalf("expected cloned-voice playback, got %s", doc)
	}
	if !strings.Contains(doc, "<Say>Please speak after the beep.</Say>") {
		t.Fatalf("expected gather prompt, got %s", doc)
	}
	if !strings.Contains(doc, `action="/twilio/speech?call_id=`+sess.ID+`"`) {
		t.Fatalf("expected gather action for session, got %s", doc)
	}

	got, _ := f.store.GetSession(context.Background(), sess.ID)
	if got.Status != convo.StatusListening {
		t.Fatalf("expected LISTENING, got %s", got.Status)
	}
	turns, err := f.store.Transcript(context.Background(), sess.ID)
	if err != nil || len(turns) != 1 {
		t.Fatalf("expected one opening turn, got %d (%v)", len(turns), err)
	}
	if turns[0].Role != convo.RoleAssistant || turns[0].Text != "Hi there!" {
		t.Fatalf("unexpected opening turn %+v", turns[0])
	}
	if turns[0].AudioURL == "" {
		t.Fatalf("expected opening turn to carry audio url")
	}
}

func TestOnAnswerWithoutOpeningMessage(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	sess, err := f.ctrl.Create(context.Background(), "+15551234567", "alice", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.OpeningMessage != "" {
		t.Fatalf("opening message must stay empty, got %q", sess.OpeningMessage)
	}

	doc := f.ctrl.OnAnswer(context.Background(), sess.ID)
	if strings.Contains(doc, "<Play>") {
		t.Fatalf("no opening message must not play audio, got %s", doc)
	}
	if !strings.HasPrefix(doc, `<Response><Gather input="speech"`) {
		t.Fatalf("expected call to go straight to listening, got %s", doc)
	}
	if _, err := f.store.Transcript(context.Background(), sess.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no turns recorded, got %v", err)
	}
}

func TestOnAnswerUnknownSession(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	if doc := f.ctrl.OnAnswer(context.Background(), "missing"); doc != "<Response></Response>" {
		t.Fatalf("expected empty document, got %s", doc)
	}
}

func TestOnAnswerDuplicateDelivery(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)

	if doc := f.ctrl.OnAnswer(context.Background(), sess.ID); doc != "<Response></Response>" {
		t.Fatalf("expected empty document on repeat answer, got %s", doc)
	}
}

func TestOnSpeechRepliesAndGathersAgain(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{ResponseText: "Sure, I can help with that."}, nil, nil)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)

	doc := f.ctrl.OnSpeech(context.Background(), sess.ID, "What are your opening hours?")
	if !strings.Contains(doc, "<Play>https://example.com/static/audio/") {
		t.Fatalf("expected reply playback, got %s", doc)
	}
	if !strings.Contains(doc, `<Gather input="speech"`) {
		t.Fatalf("expected renewed gather, got %s", doc)
	}

	turns, _ := f.store.Transcript(context.Background(), sess.ID)
	if len(turns) != 3 {
		t.Fatalf("expected opening + user + reply, got %d turns", len(turns))
	}
	if turns[1].Role != convo.RoleUser || turns[1].Text != "What are your opening hours?" {
		t.Fatalf("unexpected user turn %+v", turns[1])
	}
	if turns[2].Role != convo.RoleAssistant || turns[2].Text != "Sure, I can help with that." {
		t.Fatalf("unexpected assistant turn %+v", turns[2])
	}
}

func TestOnSpeechBackendFailureFallsBack(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{Err: errors.New("model unavailable")}, nil, nil)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)

	f.ctrl.OnSpeech(context.Background(), sess.ID, "Book me a table for two")
	turns, _ := f.store.Transcript(context.Background(), sess.ID)
	last := turns[len(turns)-1]
	if last.Text != "Noted: Book me a table for two" {
		t.Fatalf("expected deterministic fallback, got %q", last.Text)
	}
}

func TestOnSpeechSynthesisDegradesToSay(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{ResponseText: "Certainly."}, errors.New("tts down"), nil)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)

	doc := f.ctrl.OnSpeech(context.Background(), sess.ID, "Hello?")
	if !strings.Contains(doc, "<Say>Certainly.</Say>") {
		t.Fatalf("expected provider-native speech, got %s", doc)
	}
	if strings.Contains(doc, "<Play>") {
		t.Fatalf("unexpected playback when synthesis failed: %s", doc)
	}
}

func TestOnSpeechEmptyTextReprompts(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)

	doc := f.ctrl.OnSpeech(context.Background(), sess.ID, "")
	if !strings.Contains(doc, "<Say>Please speak after the beep.</Say>") {
		t.Fatalf("expected reprompt, got %s", doc)
	}
	turns, _ := f.store.Transcript(context.Background(), sess.ID)
	if len(turns) != 1 {
		t.Fatalf("empty speech must not append turns, got %d", len(turns))
	}
}

func TestOnSpeechStoreFailureKeepsCallAlive(t *testing.T) {
	mem := memory.New()
	flaky := &flakyStore{Store: mem}
	f := newFixture(t, mock.LLMConfig{ResponseText: "ok"}, nil, flaky)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)

	flaky.appendErr = errors.New("disk full")
	doc := f.ctrl.OnSpeech(context.Background(), sess.ID, "Cancel my order")
	if !strings.Contains(doc, "<Say>Noted: Cancel my order</Say>") {
		t.Fatalf("expected acknowledgement fallback, got %s", doc)
	}
	if !strings.Contains(doc, `<Gather input="speech"`) {
		t.Fatalf("expected call to stay alive, got %s", doc)
	}
}

func TestSpeechLoggingRedactsCallerPII(t *testing.T) {
	redact.SetEnabled(true)
	t.Cleanup(func() { redact.SetEnabled(false) })

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	st := memory.New()
	gen := generator.New(mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"}), generator.Config{}, nil, nil)
	synth := mock.NewSynthesizer(mock.TTSConfig{
		Artifacts: tts.ArtifactStore{Dir: t.TempDir(), BaseURL: "https://example.com/static/audio"},
	})
	vr := &stubVoices{profiles: map[string]voices.Profile{
		"alice": {Name: "alice", ReferenceWAV: "/voices/alice/reference.wav"},
	}}
	ctrl := New(Config{}, st, gen, synth, vr, &stubDialer{sid: "CA1"}, log, nil)

	sess, err := ctrl.Create(context.Background(), "+15550001111", "alice", "Hi")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ctrl.OnAnswer(context.Background(), sess.ID)
	ctrl.OnSpeech(context.Background(), sess.ID, "my number is +15557654321")

	logs := buf.String()
	if strings.Contains(logs, "5557654321") {
		t.Fatalf("caller phone number leaked into logs: %s", logs)
	}
	if !strings.Contains(logs, "REDACTED_PHONE") {
		t.Fatalf("expected redacted utterance in logs, got %s", logs)
	}
}

func TestOnStatusCompletedSummarizes(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{ResponseText: "Caller asked about hours."}, nil, nil)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)
	f.ctrl.OnSpeech(context.Background(), sess.ID, "What are your hours?")

	if err := f.ctrl.OnStatus(context.Background(), sess.ID, "completed"); err != nil {
		t.Fatalf("status: %v", err)
	}
	got, _ := f.store.GetSession(context.Background(), sess.ID)
	if got.Status != convo.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if got.Summary != "Caller asked about hours." {
		t.Fatalf("expected summary, got %q", got.Summary)
	}
}

func TestOnStatusBusyFailsWithoutSummary(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	sess := f.createSession(t)

	if err := f.ctrl.OnStatus(context.Background(), sess.ID, "busy"); err != nil {
		t.Fatalf("status: %v", err)
	}
	got, _ := f.store.GetSession(context.Background(), sess.ID)
	if got.Status != convo.StatusFailed {
		t.Fatalf("expected FAILED, got %s", got.Status)
	}
	if got.Summary != "" {
		t.Fatalf("failed calls must not get a summary, got %q", got.Summary)
	}
}

func TestOnStatusNonTerminalIsNoop(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{}, nil, nil)
	sess := f.createSession(t)

	if err := f.ctrl.OnStatus(context.Background(), sess.ID, "ringing"); err != nil {
		t.Fatalf("status: %v", err)
	}
	got, _ := f.store.GetSession(context.Background(), sess.ID)
	if got.Status != convo.StatusInitiated {
		t.Fatalf("ringing must not change status, got %s", got.Status)
	}
}

func TestOnStatusTerminalIsSticky(t *testing.T) {
	f := newFixture(t, mock.LLMConfig{ResponseText: "Summary."}, nil, nil)
	sess := f.createSession(t)
	f.ctrl.OnAnswer(context.Background(), sess.ID)
	_ = f.ctrl.OnStatus(context.Background(), sess.ID, "completed")

	if err := f.ctrl.OnStatus(context.Background(), sess.ID, "failed"); err != nil {
		t.Fatalf("status: %v", err)
	}
	got, _ := f.store.GetSession(context.Background(), sess.ID)
	if got.Status != convo.StatusCompleted {
		t.Fatalf("terminal status must be sticky, got %s", got.Status)
	}

	if doc := f.ctrl.OnSpeech(context.Background(), sess.ID, "hello?"); doc != "<Response></Response>" {
		t.Fatalf("finished call must answer empty, got %s", doc)
	}
}
