package resilience

import (
	"context"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple STT backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
//
// Chunks of one recording may land on different backends after a mid-run
// failure. That is fine: the normalizer only depends on the Result contract,
// not on which backend produced it.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the request to the first healthy backend and returns its
// result. If the primary fails, subsequent fallbacks are tried in order.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (*stt.Result, error) {
		return p.Transcribe(ctx, req)
	})
}

// MaxRequestBytes returns the smallest non-zero payload cap across all
// backends, so every chunk the driver cuts fits whichever backend ends up
// serving it. Zero when no backend reports a cap.
func (f *STTFallback) MaxRequestBytes() int64 {
	var min int64
	for i := range f.group.entries {
		cap := f.group.entries[i].value.MaxRequestBytes()
		if cap > 0 && (min == 0 || cap < min) {
			min = cap
		}
	}
	return min
}
