package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harunnryd/voxcall/pkg/convo"
	"github.com/harunnryd/voxcall/pkg/metrics"
	"github.com/harunnryd/voxcall/pkg/providers/mock"
)

func TestReplyUsesBackendText(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "Sunny all week."})
	g := New(adapter, Config{}, nil, nil)

	res := g.Reply(context.Background(), []convo.Turn{
		{Role: convo.RoleUser, Text: "What's the weather"},
	})
	if res.Fallback {
		t.Fatalf("expected backend reply, got fallback: %v", res.Err)
	}
	if res.Text != "Sunny all week." {
		t.Fatalf("unexpected reply %q", res.Text)
	}

	reqs := adapter.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one generation request, got %d", len(reqs))
	}
	if !strings.Contains(reqs[0].System, "short phone calls") {
		t.Fatalf("expected brevity persona, got %q", reqs[0].System)
	}
	if len(reqs[0].Messages) != 1 || reqs[0].Messages[0].Role != "user" {
		t.Fatalf("expected transcript carried as messages, got %+v", reqs[0].Messages)
	}
}

func TestReplyFallsBackDeterministically(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Err: errors.New("backend down")})
	obs := metrics.NewMemoryObserver()
	g := New(adapter, Config{}, nil, obs)

	turns := []convo.Turn{{Role: convo.RoleUser, Text: "What's the weather"}}
	first := g.Reply(context.Background(), turns)
	second := g.Reply(context.Background(), turns)

	if !first.Fallback || first.Err == nil {
		t.Fatalf("expected fallback result with cause")
	}
	if first.Text != "Noted: What's the weather" {
		t.Fatalf("unexpected fallback %q", first.Text)
	}
	if first.Text != second.Text {
		t.Fatalf("fallback not deterministic: %q vs %q", first.Text, second.Text)
	}
	if len(obs.Named(metrics.EventFallbackReply)) != 2 {
		t.Fatalf("expected fallback events recorded")
	}
}

func TestFallbackReplyLengthBound(t *testing.T) {
	long := strings.Repeat("weather ", 40)
	turns := []convo.Turn{{Role: convo.RoleUser, Text: long}}
	got := FallbackReply(turns)
	if len([]rune(got)) > 120 {
		t.Fatalf("fallback too long: %d runes", len([]rune(got)))
	}
	if !strings.HasPrefix(got, "Noted: ") {
		t.Fatalf("unexpected prefix in %q", got)
	}
}

func TestFallbackReplyNoUserTurn(t *testing.T) {
	got := FallbackReply([]convo.Turn{{Role: convo.RoleAssistant, Text: "Hello!"}})
	if got != "I'm listening." {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestSummarizeFallsBackDeterministically(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{Err: errors.New("backend down")})
	g := New(adapter, Config{}, nil, nil)

	turns := []convo.Turn{
		{Role: convo.RoleAssistant, Text: "Hello!"},
		{Role: convo.RoleUser, Text: "What's the weather"},
		{Role: convo.RoleAssistant, Text: "Noted: What's the weather"},
	}
	first := g.Summarize(context.Background(), turns)
	second := g.Summarize(context.Background(), turns)

	if !first.Fallback {
		t.Fatalf("expected fallback summary")
	}
	if first.Text == "" {
		t.Fatalf("expected non-empty summary")
	}
	if first.Text != second.Text {
		t.Fatalf("fallback summary not deterministic")
	}
	if !strings.Contains(first.Text, "1 caller") || !strings.Contains(first.Text, "2 assistant") {
		t.Fatalf("expected turn counts in summary, got %q", first.Text)
	}
}

func TestSummarizeUsesTranscriptPrompt(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "Caller asked about weather."})
	g := New(adapter, Config{}, nil, nil)

	res := g.Summarize(context.Background(), []convo.Turn{
		{Role: convo.RoleUser, Text: "What's the weather"},
	})
	if res.Fallback || res.Text != "Caller asked about weather." {
		t.Fatalf("unexpected result %+v", res)
	}
	reqs := adapter.Requests()
	if !strings.Contains(reqs[0].Messages[0].Content, "user: What's the weather") {
		t.Fatalf("expected rendered transcript in prompt, got %q", reqs[0].Messages[0].Content)
	}
}
