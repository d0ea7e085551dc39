package llm

import "context"

// Provider defines the interface for chat-completion backends. Implementations
// handle protocol-specific details such as request formatting, authentication,
// and response parsing. Callers must treat every call as fallible and slow.
type Provider interface {
	// Complete sends a chat completion request and returns the full response.
	Complete(ctx context.Context, messages []Message) (*Response, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
