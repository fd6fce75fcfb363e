package domain

import "context"

// LLMProvider is the interface for any LLM backend.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "openai", "ollama").
	Name() string
}

// Prompt names understood by the structured prompt service.
const (
	PromptRouteQuestion  = "route_question"
	PromptAnswerContent  = "answer_content"
	PromptAnswerMetadata = "answer_metadata"
	PromptCasualReply    = "casual_reply"
)

// PromptService invokes a named prompt with a fixed input/output contract.
// Invoke marshals input, runs the prompt, validates the output against the
// prompt's schema and decodes it into out. Any failure is returned as an error.
type PromptService interface {
	Invoke(ctx context.Context, name string, input any, out any) error
}
