package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	sttmock "github.com/MrWong99/meetscribe/pkg/provider/stt/mock"
	"github.com/MrWong99/meetscribe/pkg/types"
)

func sttRequest() stt.Request {
	return stt.Request{Audio: []byte{1, 2, 3}, Filename: "audio.wav"}
}

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Results: []*stt.Result{{Text: "from primary"}}}
	secondary := &sttmock.Provider{Results: []*stt.Result{{Text: "from secondary"}}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Transcribe(context.Background(), sttRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "from primary" {
		t.Errorf("Text = %q, want from primary", res.Text)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_Failover(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Results: []*stt.Result{{Text: "from secondary"}}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Transcribe(context.Background(), sttRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "from secondary" {
		t.Errorf("Text = %q, want from secondary", res.Text)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), sttRequest())
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, types.ErrProviderUnavailable) {
		t.Errorf("err = %v, want it to classify as ErrProviderUnavailable", err)
	}
}

func TestSTTFallback_CancellationSkipsFailover(t *testing.T) {
	primary := &sttmock.Provider{}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fb.Transcribe(ctx, sttRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times after cancellation, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_MaxRequestBytes(t *testing.T) {
	tests := []struct {
		name              string
		primary, fallback int64
		want              int64
	}{
		{"smallest cap wins", 100, 50, 50},
		{"zero caps ignored", 0, 80, 80},
		{"no caps known", 0, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fb := NewSTTFallback(&sttmock.Provider{MaxBytes: tc.primary}, "primary", FallbackConfig{})
			fb.AddFallback("secondary", &sttmock.Provider{MaxBytes: tc.fallback})
			if got := fb.MaxRequestBytes(); got != tc.want {
				t.Errorf("MaxRequestBytes() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSTTFallback_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Results: []*stt.Result{{Text: "ok"}}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback("secondary", secondary)

	for i := 0; i < 4; i++ {
		if _, err := fb.Transcribe(context.Background(), sttRequest()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	// After two failures the primary's breaker is open and it stops being
	// probed; the remaining calls go straight to the fallback.
	if got := primary.CallCount(); got != 2 {
		t.Errorf("primary called %d times, want 2 before the breaker opened", got)
	}
	if got := secondary.CallCount(); got != 4 {
		t.Errorf("secondary called %d times, want 4", got)
	}
}
