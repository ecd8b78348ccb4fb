// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to verify what audio the chunked transcription
// driver sends and to feed controlled verbose results without a live STT
// backend. Results are consumed in call order, so multi-chunk tests can
// script one result per chunk.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
//
// If Results is non-empty, call i returns Results[min(i, len-1)]. Set Err to
// make every call fail, or ErrAtCall to fail only one specific call index.
type Provider struct {
	mu sync.Mutex

	// Results is the sequence of results returned by successive Transcribe
	// calls. The last entry repeats once the sequence is exhausted.
	Results []*stt.Result

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// ErrAtCall makes the call with this zero-based index return ErrAtCallErr.
	// Ignored when ErrAtCallErr is nil.
	ErrAtCall    int
	ErrAtCallErr error

	// MaxBytes is returned by MaxRequestBytes.
	MaxBytes int64

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	idx := len(p.Calls)
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Req: req})
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.ErrAtCallErr != nil && idx == p.ErrAtCall {
		return nil, p.ErrAtCallErr
	}
	if len(p.Results) == 0 {
		return &stt.Result{}, nil
	}
	if idx >= len(p.Results) {
		idx = len(p.Results) - 1
	}
	return p.Results[idx], nil
}

// MaxRequestBytes implements stt.Provider.
func (p *Provider) MaxRequestBytes() int64 { return p.MaxBytes }

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
