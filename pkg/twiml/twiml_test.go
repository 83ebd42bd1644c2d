package twiml

import (
	"strings"
	"testing"
)

func TestEmptyDocument(t *testing.T) {
	if got := New().String(); got != "<Response></Response>" {
		t.Fatalf("unexpected empty document %q", got)
	}
	if Empty() != "<Response></Response>" {
		t.Fatalf("unexpected Empty()")
	}
}

func TestPlayThenCapture(t *testing.T) {
	doc := New().
		Play("https://example.com/static/audio/tts_abc.wav").
		Capture(Gather{Action: "https://example.com/twilio/speech?call_id=s1"}).
		String()

	wantPlay := "<Play>https://example.com/static/audio/tts_abc.wav</Play>"
	if !strings.Contains(doc, wantPlay) {
		t.Fatalf("missing play verb in %q", doc)
	}
	if !strings.Contains(doc, `<Gather input="speech" action="https://example.com/twilio/speech?call_id=s1" method="POST" speechTimeout="auto">`) {
		t.Fatalf("missing gather verb in %q", doc)
	}
	if strings.Index(doc, "<Play>") > strings.Index(doc, "<Gather") {
		t.Fatalf("verbs out of order in %q", doc)
	}
}

func TestCapturePrompt(t *testing.T) {
	doc := New().Capture(Gather{Action: "/twilio/speech", Prompt: "Please speak after the beep."}).String()
	if !strings.Contains(doc, "<Say>Please speak after the beep.</Say></Gather>") {
		t.Fatalf("missing gather prompt in %q", doc)
	}
}

func TestEscaping(t *testing.T) {
	doc := New().Say(`Tom & Jerry <say> "hi"`).String()
	if strings.Contains(doc, "Tom & Jerry") {
		t.Fatalf("unescaped ampersand in %q", doc)
	}
	if !strings.Contains(doc, "Tom &amp; Jerry &lt;say&gt; &quot;hi&quot;") {
		t.Fatalf("unexpected escaping in %q", doc)
	}

	action := "https://example.com/speech?call_id=a&retry=1"
	gatherDoc := New().Capture(Gather{Action: action}).String()
	if !strings.Contains(gatherDoc, "call_id=a&amp;retry=1") {
		t.Fatalf("unescaped attribute in %q", gatherDoc)
	}
}
