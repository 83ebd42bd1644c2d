// Package twiml builds the outbound telephony markup consumed by the
// provider. Every webhook handler must answer with a well-formed document,
// including error paths; an empty <Response/> is the neutral instruction.
package twiml

import "strings"

// Gather describes a speech-capture instruction: listen for one caller
// utterance and POST the recognized text to Action.
type Gather struct {
	Action        string
	Prompt        string
	SpeechTimeout string
}

// Document accumulates verbs in play order.
type Document struct {
	verbs []string
}

func New() *Document {
	return &Document{}
}

// Play appends an audio playback instruction for a provider-fetchable URL.
func (d *Document) Play(url string) *Document {
	d.verbs = append(d.verbs, "<Play>"+Escape(url)+"</Play>")
	return d
}

// Say appends a provider-native speech instruction (the no-cloned-voice path).
func (d *Document) Say(text string) *Document {
	d.verbs = append(d.verbs, "<Say>"+Escape(text)+"</Say>")
	return d
}

// Capture appends a speech-capture instruction.
func (d *Document) Capture(g Gather) *Document {
	timeout := g.SpeechTimeout
	if timeout == "" {
		timeout = "auto"
	}
	var b strings.Builder
	b.WriteString(`<Gather input="speech" action="` + Escape(g.Action) + `" method="POST" speechTimeout="` + Escape(timeout) + `">`)
	if g.Prompt != "" {
		b.WriteString("<Say>" + Escape(g.Prompt) + "</Say>")
	}
	b.WriteString("</Gather>")
	d.verbs = append(d.verbs, b.String())
	return d
}

// String renders the document.
func (d *Document) String() string {
	if len(d.verbs) == 0 {
		return Empty()
	}
	return "<Response>" + strings.Join(d.verbs, "") + "</Response>"
}

// Empty is the neutral no-op instruction, valid for unknown sessions.
func Empty() string {
	return "<Response></Response>"
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// Escape makes text safe for element content and attribute values.
func Escape(in string) string {
	return escaper.Replace(in)
}
