package llm

import "context"

// Message is one chat message in provider wire order.
type Message struct {
	Role    string
	Content string
}

// Request carries the system instruction and the conversation so far.
type Request struct {
	System   string
	Messages []Message
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter is a text-generation backend.
type Adapter interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}
