// Package llm defines the Provider interface for chat-completion backends.
//
// The summariser is the only consumer: it sends a system prompt plus a single
// user message and reads back one bounded completion. The interface is kept
// deliberately small — no streaming, no tool calling — because that is all a
// stateless map-reduce summariser needs.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message represents a single message in a chat-completion conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the model needs to produce a response.
type CompletionRequest struct {
	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation. Providers without a dedicated system slot prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. Must be non-empty.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair, when
	// the provider reports it.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Error classification: network failures and 5xx responses wrap
	// types.ErrProviderUnavailable; an empty or malformed response wraps
	// types.ErrProviderContract. Context cancellation passes through as
	// ctx.Err().
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
