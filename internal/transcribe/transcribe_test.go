package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/provider/stt/mock"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// testClip builds a WAV clip of the given length at 8 kHz mono, so byte
// sizes and durations in the chunking math are exact.
func testClip(t *testing.T, seconds int) audio.Clip {
	t.Helper()
	pcm := audio.PCM{
		Data:       make([]byte, seconds*8000*2),
		SampleRate: 8000,
		Channels:   1,
	}
	clip, err := audio.Encode(pcm, audio.FormatWAV)
	if err != nil {
		t.Fatalf("encode test clip: %v", err)
	}
	return clip
}

func segResult(text string, start, end float64) *stt.Result {
	return &stt.Result{
		Text:     text,
		Segments: []types.Segment{{Text: text, Start: start, End: end}},
	}
}

func TestTranscribe(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("empty audio", func(t *testing.T) {
		d := New(&mock.Provider{}, WithLogger(quiet))
		_, err := d.Transcribe(context.Background(), audio.Clip{Format: audio.FormatWAV})
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("clip under cap is one call", func(t *testing.T) {
		p := &mock.Provider{
			Results:  []*stt.Result{segResult("hello world", 0, 2)},
			MaxBytes: 1 << 20,
		}
		d := New(p, WithLogger(quiet))
		n, err := d.Transcribe(context.Background(), testClip(t, 2))
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if p.CallCount() != 1 {
			t.Errorf("CallCount() = %d, want 1", p.CallCount())
		}
		if n.FullText != "hello world" {
			t.Errorf("FullText = %q", n.FullText)
		}
		if n.Segments[0].Start != 0 {
			t.Errorf("segment start = %v, want unshifted 0", n.Segments[0].Start)
		}
	})

	t.Run("provider cap of zero means unlimited", func(t *testing.T) {
		p := &mock.Provider{Results: []*stt.Result{segResult("x", 0, 2)}}
		d := New(p, WithLogger(quiet))
		if _, err := d.Transcribe(context.Background(), testClip(t, 2)); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if p.CallCount() != 1 {
			t.Errorf("CallCount() = %d, want 1", p.CallCount())
		}
	})

	t.Run("oversize clip splits and shifts", func(t *testing.T) {
		clip := testClip(t, 2) // 32044 bytes
		p := &mock.Provider{
			Results: []*stt.Result{
				segResult("part one", 0, 1),
				segResult("part two", 0, 1),
			},
			MaxBytes: 1 << 30,
		}
		// Cap at exactly half the payload: chunk_ms = 2000 * cap / size = 1000.
		d := New(p, WithLogger(quiet), WithWorkers(1), WithMaxBytes(clip.Size()/2))

		n, err := d.Transcribe(context.Background(), clip)
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if p.CallCount() != 2 {
			t.Fatalf("CallCount() = %d, want 2", p.CallCount())
		}
		if n.FullText != "part one part two" {
			t.Errorf("FullText = %q", n.FullText)
		}
		if len(n.Segments) != 2 {
			t.Fatalf("got %d segments, want 2", len(n.Segments))
		}
		if math.Abs(n.Segments[1].Start-1.0) > 1e-9 {
			t.Errorf("second chunk start = %v, want shifted to 1.0", n.Segments[1].Start)
		}
		// Each chunk must itself fit the cap.
		for i, c := range p.Calls {
			if int64(len(c.Req.Audio)) > clip.Size() {
				t.Errorf("chunk %d larger than original clip", i)
			}
		}
	})

	t.Run("computed chunk length under ten seconds is kept", func(t *testing.T) {
		clip := testClip(t, 4)
		p := &mock.Provider{
			Results: []*stt.Result{
				segResult("first half", 0, 2),
				segResult("second half", 0, 2),
			},
		}
		// chunk_ms = 4000 * cap / size = 2000. Clamping that to 10 s would
		// collapse the split back into one oversize chunk.
		d := New(p, WithLogger(quiet), WithWorkers(1), WithMaxBytes(clip.Size()/2))

		n, err := d.Transcribe(context.Background(), clip)
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if p.CallCount() != 2 {
			t.Fatalf("CallCount() = %d, want 2", p.CallCount())
		}
		if math.Abs(n.Segments[1].Start-2.0) > 1e-9 {
			t.Errorf("second chunk start = %v, want shifted to 2.0", n.Segments[1].Start)
		}
	})

	t.Run("degenerate cap falls back to minimum chunk length", func(t *testing.T) {
		clip := testClip(t, 2)
		p := &mock.Provider{Results: []*stt.Result{segResult("all of it", 0, 2)}}
		// chunk_ms would be 0; the driver clamps to 10 s, so one chunk covers
		// the whole 2 s clip.
		d := New(p, WithLogger(quiet), WithWorkers(1), WithMaxBytes(1))

		if _, err := d.Transcribe(context.Background(), clip); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if p.CallCount() != 1 {
			t.Errorf("CallCount() = %d, want 1", p.CallCount())
		}
	})

	t.Run("chunk failure aborts the whole call", func(t *testing.T) {
		clip := testClip(t, 2)
		p := &mock.Provider{
			Results:      []*stt.Result{segResult("part one", 0, 1)},
			ErrAtCall:    1,
			ErrAtCallErr: types.ErrProviderUnavailable,
		}
		d := New(p, WithLogger(quiet), WithWorkers(1), WithMaxBytes(clip.Size()/2))

		_, err := d.Transcribe(context.Background(), clip)
		if !errors.Is(err, types.ErrProviderUnavailable) {
			t.Errorf("error = %v, want ErrProviderUnavailable", err)
		}
	})

	t.Run("cancellation surfaces", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &mock.Provider{Results: []*stt.Result{segResult("x", 0, 2)}}
		d := New(p, WithLogger(quiet))
		_, err := d.Transcribe(ctx, testClip(t, 2))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("filename carries the clip format", func(t *testing.T) {
		p := &mock.Provider{Results: []*stt.Result{segResult("x", 0, 2)}}
		d := New(p, WithLogger(quiet))
		if _, err := d.Transcribe(context.Background(), testClip(t, 2)); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
		if got := p.Calls[0].Req.Filename; got != "audio.wav" {
			t.Errorf("Filename = %q, want audio.wav", got)
		}
	})
}
