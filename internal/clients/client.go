// Package clients implements the LM Client component: a
// messages-plus-config request executed against a provider, with hard
// timeouts, bounded retries, and a process-wide circuit breaker per
// provider.
package clients

import "context"

// Message is one turn in a chat-style request.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Config carries the per-call knobs a Client implementation needs.
type Config struct {
	Provider      string
	Model         string
	Temperature   float64
	MaxTokens     int
	TimeoutMS     int
	CorrelationID string
}

// Usage reports token accounting for a single call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of a successful client call.
type Response struct {
	CompletionText string
	Usage          Usage
}

// Client is the LM Client capability the rest of the module depends
// on: request(messages, config) -> {completion, usage} | error.
type Client interface {
	Request(ctx context.Context, messages []Message, config Config) (*Response, error)
}
