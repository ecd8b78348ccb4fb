// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the prompts the summariser sends and
// to feed controlled completions without a live backend. Responses are
// consumed in call order, so map-reduce tests can script one response per
// chunk plus a final combine response.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// If Responses is non-empty, call i returns Responses[min(i, len-1)].
// Set Err to make every call fail.
type Provider struct {
	mu sync.Mutex

	// Responses is the sequence of completions returned by successive calls.
	// The last entry repeats once the sequence is exhausted.
	Responses []*llm.CompletionResponse

	// Err, if non-nil, is returned by every Complete call.
	Err error

	// Calls records every invocation of Complete in order.
	Calls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	idx := len(p.Calls)
	p.Calls = append(p.Calls, CompleteCall{Ctx: ctx, Req: req})
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	return p.Responses[idx], nil
}

// CallCount returns the number of Complete invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
