package llm

import "context"

// SystemPrompt is sent with every completion request.
const SystemPrompt = "You are a helpful assistant. Provide comprehensive, accurate answers."

// Provider answers a single search query with a full completion.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Result, error)
}

type Request struct {
	Query        string
	Temperature  float64
	MaxTokens    int
	EnableSearch bool
}

// Result is one completed answer plus the metadata the evaluation
// pipeline records alongside it.
type Result struct {
	Text             string
	Model            string
	FinishReason     string
	SearchUsed       bool
	CitationCount    int
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int64
}
