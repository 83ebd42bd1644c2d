// Package controller drives the call lifecycle. It owns the session state
// machine and turns each provider webhook into exactly one markup response,
// delegating text generation and speech synthesis to injected services.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/voxcall/pkg/convo"
	"github.com/harunnryd/voxcall/pkg/errorsx"
	"github.com/harunnryd/voxcall/pkg/generator"
	"github.com/harunnryd/voxcall/pkg/metrics"
	"github.com/harunnryd/voxcall/pkg/redact"
	"github.com/harunnryd/voxcall/pkg/resilience"
	"github.com/harunnryd/voxcall/pkg/store"
	"github.com/harunnryd/voxcall/pkg/tts"
	"github.com/harunnryd/voxcall/pkg/twiml"
	"github.com/harunnryd/voxcall/pkg/voices"
)

const gatherPrompt = "Please speak after the beep."

// Dialer places the outbound call for a session.
type Dialer interface {
	Dial(ctx context.Context, to, sessionID string) (string, error)
}

// VoiceResolver looks up a cloned voice profile by name.
type VoiceResolver interface {
	Get(name string) (voices.Profile, error)
}

type Config struct {
	// SpeechURL builds the absolute gather action URL for a session.
	SpeechURL func(sessionID string) string
	// AppendRetry guards transcript writes against transient store failures.
	AppendRetry resilience.RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.SpeechURL == nil {
		c.SpeechURL = func(sessionID string) string { return "/twilio/speech?call_id=" + sessionID }
	}
	if c.AppendRetry.MaxRetries == 0 {
		c.AppendRetry = resilience.NewRetryPolicy(2, 100*time.Millisecond)
	}
	return c
}

// Controller is the conversation core behind the webhook handlers.
type Controller struct {
	cfg    Config
	store  store.Store
	gen    *generator.Generator
	synth  tts.Synthesizer
	voices VoiceResolver
	dialer Dialer
	log    *slog.Logger
	obs    metrics.Observer
}

func New(cfg Config, st store.Store, gen *generator.Generator, synth tts.Synthesizer, vr VoiceResolver, dialer Dialer, log *slog.Logger, obs metrics.Observer) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Controller{
		cfg:    cfg.withDefaults(),
		store:  st,
		gen:    gen,
		synth:  synth,
		voices: vr,
		dialer: dialer,
		log:    log,
		obs:    obs,
	}
}

// Create registers a new session and places the outbound call. The session
// is persisted before dialing so the answer webhook always finds it.
func (c *Controller) Create(ctx context.Context, destination, voiceName, openingMessage string) (convo.Session, error) {
	if destination == "" {
		return convo.Session{}, errors.New("destination required")
	}
	if voiceName != "" {
		if _, err := c.voices.Get(voiceName); err != nil {
			return convo.Session{}, errorsx.Wrap(err, errorsx.ReasonVoiceNotFound)
		}
	}
	now := time.Now()
	sess := convo.Session{
		ID:             uuid.NewString(),
		Destination:    destination,
		VoiceName:      voiceName,
		OpeningMessage: openingMessage,
		Status:         convo.StatusInitiated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.store.CreateSession(ctx, sess); err != nil {
		return convo.Session{}, err
	}

	sid, err := c.dialer.Dial(ctx, destination, sess.ID)
	if err != nil {
		failed, uerr := c.store.UpdateSession(ctx, sess.ID, func(s *convo.Session) error {
			s.Status = convo.StatusFailed
			return nil
		})
		if uerr == nil {
			sess = failed
		}
		c.log.Error("dial_failed",
			slog.String("session_id", sess.ID),
			slog.String("destination", redact.Destination(destination)),
			slog.String("error", err.Error()))
		return sess, err
	}

	sess, err = c.store.UpdateSession(ctx, sess.ID, func(s *convo.Session) error {
		s.ProviderSID = sid
		return nil
	})
	if err != nil {
		return convo.Session{}, err
	}
	c.log.Info("call_created",
		slog.String("session_id", sess.ID),
		slog.String("provider_sid", sid),
		slog.String("destination", redact.Destination(destination)),
		slog.String("voice", voiceName))
	return sess, nil
}

// OnAnswer handles the callee picking up: speak the opening message and
// start listening. Unknown sessions get the neutral empty document.
func (c *Controller) OnAnswer(ctx context.Context, sessionID string) string {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		c.log.Warn("answer_unknown_session", slog.String("session_id", sessionID))
		return twiml.Empty()
	}
	answered, err := c.transition(ctx, sessionID, convo.StatusAnswered)
	if err != nil {
		c.log.Warn("answer_invalid_state",
			slog.String("session_id", sessionID),
			slog.String("status", sess.Status.String()))
		return twiml.Empty()
	}
	sess = answered

	doc := twiml.New()
	// No opening message means the call goes straight to listening.
	if sess.OpeningMessage != "" {
		opening, _ := c.speak(ctx, doc, sess, sess.OpeningMessage)
		c.appendAssistantTurn(ctx, opening)
	}

	if _, err := c.transition(ctx, sessionID, convo.StatusListening); err != nil {
		c.log.Warn("listen_invalid_state", slog.String("session_id", sessionID))
		return twiml.Empty()
	}
	doc.Capture(twiml.Gather{Action: c.cfg.SpeechURL(sessionID), Prompt: gatherPrompt})
	return doc.String()
}

// OnSpeech handles one recognized caller utterance: record it, generate a
// reply, speak it, and listen again.
func (c *Controller) OnSpeech(ctx context.Context, sessionID, text string) string {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		c.log.Warn("speech_unknown_session", slog.String("session_id", sessionID))
		return twiml.Empty()
	}
	if sess.Status.Terminal() {
		return twiml.Empty()
	}
	if text == "" {
		return twiml.New().
			Capture(twiml.Gather{Action: c.cfg.SpeechURL(sessionID), Prompt: gatherPrompt}).
			String()
	}

	if updated, err := c.transition(ctx, sessionID, convo.StatusListening); err == nil {
		sess = updated
	}
	c.log.Info("speech_received",
		slog.String("session_id", sessionID),
		slog.String("text", redact.Text(text)))

	userTurn := convo.Turn{
		SessionID: sessionID,
		Role:      convo.RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := c.appendWithRetry(ctx, userTurn); err != nil {
		// The store is down; keep the call alive with a deterministic
		// acknowledgement instead of dead air.
		c.log.Error("transcript_append_failed",
			slog.String("session_id", sessionID),
			slog.String("reason_code", string(errorsx.ReasonStoreAppend)),
			slog.String("error", err.Error()))
		return twiml.New().
			Say(generator.FallbackReply([]convo.Turn{userTurn})).
			Capture(twiml.Gather{Action: c.cfg.SpeechURL(sessionID), Prompt: gatherPrompt}).
			String()
	}

	turns, err := c.store.Transcript(ctx, sessionID)
	if err != nil {
		turns = []convo.Turn{userTurn}
	}
	reply := c.gen.Reply(ctx, turns)

	doc := twiml.New()
	assistant, _ := c.speak(ctx, doc, sess, reply.Text)
	c.appendAssistantTurn(ctx, assistant)
	doc.Capture(twiml.Gather{Action: c.cfg.SpeechURL(sessionID), Prompt: ""})
	return doc.String()
}

// OnStatus applies a provider call status update. Non-terminal statuses and
// updates for already finished sessions are no-ops.
func (c *Controller) OnStatus(ctx context.Context, sessionID, rawStatus string) error {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		c.log.Warn("status_unknown_session",
			slog.String("session_id", sessionID),
			slog.String("call_status", rawStatus))
		return nil
	}
	outcome := convo.NormalizeCallStatus(rawStatus)
	if !outcome.Terminal() {
		return nil
	}
	if sess.Status.Terminal() {
		return nil
	}

	if outcome.Completed() {
		summary := c.summarize(ctx, sessionID)
		_, err = c.store.UpdateSession(ctx, sessionID, func(s *convo.Session) error {
			if s.Status.Terminal() {
				return nil
			}
			s.Status = convo.StatusCompleted
			s.Summary = summary
			return nil
		})
		if err != nil {
			return err
		}
		c.obs.RecordEvent(metrics.Count(metrics.EventCallCompleted, map[string]string{"status": rawStatus}))
		c.log.Info("call_completed", slog.String("session_id", sessionID))
		return nil
	}

	_, err = c.store.UpdateSession(ctx, sessionID, func(s *convo.Session) error {
		if s.Status.Terminal() {
			return nil
		}
		s.Status = convo.StatusFailed
		return nil
	})
	if err != nil {
		return err
	}
	c.obs.RecordEvent(metrics.Count(metrics.EventCallFailed, map[string]string{"status": rawStatus}))
	c.log.Info("call_failed",
		slog.String("session_id", sessionID),
		slog.String("call_status", rawStatus))
	return nil
}

func (c *Controller) summarize(ctx context.Context, sessionID string) string {
	turns, err := c.store.Transcript(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.log.Warn("summary_transcript_unavailable",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
	}
	return c.gen.Summarize(ctx, turns).Text
}

// speak renders text into the document, preferring the cloned voice and
// degrading to provider-native speech when synthesis is unavailable.
func (c *Controller) speak(ctx context.Context, doc *twiml.Document, sess convo.Session, text string) (convo.Turn, bool) {
	turn := convo.Turn{
		SessionID: sess.ID,
		Role:      convo.RoleAssistant,
		Text:      text,
		CreatedAt: time.Now(),
	}
	profile, err := c.resolveVoice(sess.VoiceName)
	if err != nil {
		doc.Say(text)
		return turn, false
	}

	start := time.Now()
	artifact, err := c.synth.Synthesize(ctx, tts.Request{
		Text:            text,
		ReferenceWAV:    profile.ReferenceWAV,
		ProviderVoiceID: profile.ProviderVoiceID,
	})
	c.obs.RecordEvent(metrics.Timing(metrics.EventSynthesisLatency, start, map[string]string{"provider": c.synth.Name()}))
	if err != nil {
		c.log.Warn("synthesis_degraded",
			slog.String("session_id", sess.ID),
			slog.String("voice", sess.VoiceName),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("error", err.Error()))
		doc.Say(text)
		return turn, false
	}

	turn.AudioPath = artifact.LocalPath
	turn.AudioURL = artifact.PublicURL
	doc.Play(artifact.PublicURL)
	return turn, true
}

func (c *Controller) resolveVoice(name string) (voices.Profile, error) {
	if name == "" {
		return voices.Profile{}, voices.ErrNotFound
	}
	return c.voices.Get(name)
}

func (c *Controller) appendAssistantTurn(ctx context.Context, turn convo.Turn) {
	if err := c.appendWithRetry(ctx, turn); err != nil {
		c.log.Error("transcript_append_failed",
			slog.String("session_id", turn.SessionID),
			slog.String("reason_code", string(errorsx.ReasonStoreAppend)),
			slog.String("error", err.Error()))
	}
}

func (c *Controller) appendWithRetry(ctx context.Context, turn convo.Turn) error {
	attempt := 0
	err := c.cfg.AppendRetry.DoContext(ctx, func() error {
		if attempt > 0 {
			c.obs.RecordEvent(metrics.Count(metrics.EventStoreRetry, map[string]string{"session_id": turn.SessionID}))
		}
		attempt++
		_, err := c.store.Append(ctx, turn)
		return err
	})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonStoreAppend)
	}
	return nil
}

func (c *Controller) transition(ctx context.Context, sessionID string, to convo.Status) (convo.Session, error) {
	return c.store.UpdateSession(ctx, sessionID, func(s *convo.Session) error {
		next, err := convo.Transition(s.Status, to)
		if err != nil {
			return err
		}
		s.Status = next
		return nil
	})
}
