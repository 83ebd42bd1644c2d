// Package generator turns transcript context into assistant replies and call
// summaries. Both operations route to one text-generation backend and differ
// only in the system instruction. Backend failure or timeout never escapes:
// the result degrades to a deterministic, content-derived fallback.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/voxcall/pkg/convo"
	"github.com/harunnryd/voxcall/pkg/errorsx"
	"github.com/harunnryd/voxcall/pkg/llm"
	"github.com/harunnryd/voxcall/pkg/metrics"
)

const (
	replyPersona   = "You are a friendly helpful assistant for short phone calls. Keep replies under 15 words."
	summaryPersona = "You are an assistant creating concise call summaries."

	fallbackMaxRunes = 120
)

// Result is the outcome of a generation: either backend text or the
// deterministic fallback, with the cause attached when the backend failed.
type Result struct {
	Text     string
	Fallback bool
	Err      error
}

type Config struct {
	ReplyTimeout   time.Duration
	SummaryTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = 6 * time.Second
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = 10 * time.Second
	}
	return c
}

// Generator wraps an llm.Adapter with personas, timeouts, and fallbacks.
type Generator struct {
	adapter llm.Adapter
	cfg     Config
	log     *slog.Logger
	obs     metrics.Observer
}

func New(adapter llm.Adapter, cfg Config, log *slog.Logger, obs metrics.Observer) *Generator {
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Generator{adapter: adapter, cfg: cfg.withDefaults(), log: log, obs: obs}
}

// Reply produces the next assistant utterance for the conversation so far.
func (g *Generator) Reply(ctx context.Context, turns []convo.Turn) Result {
	genCtx, cancel := context.WithTimeout(ctx, g.cfg.ReplyTimeout)
	defer cancel()

	start := time.Now()
	resp, err := g.adapter.Generate(genCtx, llm.Request{
		System:   replyPersona,
		Messages: messagesFromTurns(turns),
	})
	g.obs.RecordEvent(metrics.Timing(metrics.EventReplyLatency, start, map[string]string{"provider": g.adapter.Name()}))
	if err != nil || resp.Text == "" {
		if err == nil {
			err = fmt.Errorf("empty generation")
		}
		g.log.Warn("reply_fallback",
			slog.String("provider", g.adapter.Name()),
			slog.String("reason_code", string(errorsx.ReasonLLMGenerate)),
			slog.String("error", err.Error()))
		g.obs.RecordEvent(metrics.Count(metrics.EventFallbackReply, map[string]string{"provider": g.adapter.Name()}))
		return Result{Text: FallbackReply(turns), Fallback: true, Err: errorsx.Wrap(err, errorsx.ReasonLLMGenerate)}
	}
	return Result{Text: resp.Text}
}

// Summarize produces a closing summary for a finished call.
func (g *Generator) Summarize(ctx context.Context, turns []convo.Turn) Result {
	genCtx, cancel := context.WithTimeout(ctx, g.cfg.SummaryTimeout)
	defer cancel()

	start := time.Now()
	resp, err := g.adapter.Generate(genCtx, llm.Request{
		System: summaryPersona,
		Messages: []llm.Message{{
			Role:    "user",
			Content: "Summarize the call:\n\n" + convo.RenderTranscript(turns),
		}},
	})
	g.obs.RecordEvent(metrics.Timing(metrics.EventSummaryLatency, start, map[string]string{"provider": g.adapter.Name()}))
	if err != nil || resp.Text == "" {
		if err == nil {
			err = fmt.Errorf("empty generation")
		}
		g.log.Warn("summary_fallback",
			slog.String("provider", g.adapter.Name()),
			slog.String("reason_code", string(errorsx.ReasonLLMGenerate)),
			slog.String("error", err.Error()))
		g.obs.RecordEvent(metrics.Count(metrics.EventFallbackSummary, map[string]string{"provider": g.adapter.Name()}))
		return Result{Text: FallbackSummary(turns), Fallback: true, Err: errorsx.Wrap(err, errorsx.ReasonLLMGenerate)}
	}
	return Result{Text: resp.Text}
}

// FallbackReply acknowledges the caller's last utterance. Deterministic and
// length-bounded so the spoken line stays short.
func FallbackReply(turns []convo.Turn) string {
	last := convo.LastUserText(turns)
	if last == "" {
		return "I'm listening."
	}
	return truncateRunes("Noted: "+last, fallbackMaxRunes)
}

// FallbackSummary derives a summary from the transcript alone. Identical
// transcripts always yield identical summaries.
func FallbackSummary(turns []convo.Turn) string {
	var userTurns, assistantTurns int
	for _, t := range turns {
		switch t.Role {
		case convo.RoleUser:
			userTurns++
		case convo.RoleAssistant:
			assistantTurns++
		}
	}
	if userTurns == 0 && assistantTurns == 0 {
		return "Call ended before any conversation took place."
	}
	summary := fmt.Sprintf("Call with %d caller and %d assistant turns.", userTurns, assistantTurns)
	if last := convo.LastUserText(turns); last != "" {
		summary += " Last caller utterance: " + truncateRunes(last, fallbackMaxRunes)
	}
	return summary
}

func messagesFromTurns(turns []convo.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: t.Role.String(), Content: t.Text})
	}
	return out
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
