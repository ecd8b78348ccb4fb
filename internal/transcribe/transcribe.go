// Package transcribe drives speech-to-text over audio of arbitrary size.
//
// Providers cap the request body; a long recording must be split into
// time-contiguous chunks, transcribed chunk by chunk, and the per-chunk
// timings shifted back onto the whole-recording clock before the results are
// spliced together.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

const (
	// minChunkMillis replaces a degenerate computed chunk length. It only
	// kicks in when the byte-rate estimate collapses to zero; a legitimately
	// short chunk length is kept so chunks stay under the provider cap.
	minChunkMillis = 10_000

	defaultWorkers = 4
)

// Driver transcribes a recording through an stt.Provider, chunking when the
// audio exceeds the provider's request cap.
type Driver struct {
	provider stt.Provider
	maxBytes int64
	workers  int
	language string
	prompt   string
	logger   *slog.Logger
}

// Option is a functional option for Driver.
type Option func(*Driver)

// WithMaxBytes overrides the provider's own request cap. Zero means "use the
// provider's cap"; a provider cap of zero means unlimited.
func WithMaxBytes(n int64) Option {
	return func(d *Driver) { d.maxBytes = n }
}

// WithWorkers bounds the number of chunk transcriptions in flight at once.
func WithWorkers(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithLanguage sets an ISO-639-1 language hint forwarded to the provider.
func WithLanguage(lang string) Option {
	return func(d *Driver) { d.language = lang }
}

// WithPrompt sets a provider prompt, typically domain vocabulary.
func WithPrompt(p string) Option {
	return func(d *Driver) { d.prompt = p }
}

// WithLogger sets the slog logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Driver around the given provider.
func New(provider stt.Provider, opts ...Option) *Driver {
	d := &Driver{
		provider: provider,
		workers:  defaultWorkers,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Transcribe runs speech-to-text over the clip and returns the normalized
// transcript on the whole-recording clock.
//
// When the clip exceeds the byte cap it is split into equal-duration chunks
// sized so each chunk fits the cap, the chunks are transcribed with bounded
// parallelism, and the results are spliced in time order. A failure on any
// chunk fails the whole call; partial transcripts are never returned.
func (d *Driver) Transcribe(ctx context.Context, clip audio.Clip) (*transcript.Normalized, error) {
	if len(clip.Data) == 0 {
		return nil, fmt.Errorf("transcribe: empty audio: %w", types.ErrInvalidInput)
	}

	limit := d.maxBytes
	if limit == 0 {
		limit = d.provider.MaxRequestBytes()
	}
	if limit == 0 || clip.Size() <= limit {
		return d.transcribeOne(ctx, clip, "audio", 0)
	}

	dur, err := audio.Probe(clip)
	if err != nil {
		return nil, fmt.Errorf("transcribe: probe duration: %w", err)
	}

	durMillis := dur.Milliseconds()
	chunkMillis := durMillis * limit / clip.Size()
	if chunkMillis <= 0 {
		chunkMillis = minChunkMillis
	}

	chunks, err := audio.Split(clip, time.Duration(chunkMillis)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("transcribe: split audio: %w", err)
	}
	d.logger.Debug("transcribing in chunks",
		"bytes", clip.Size(),
		"cap_bytes", limit,
		"duration_ms", durMillis,
		"chunk_ms", chunkMillis,
		"chunks", len(chunks))

	results := make([]*transcript.Normalized, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			offset := float64(int64(i)*chunkMillis) / 1000
			n, err := d.transcribeOne(gctx, chunk, fmt.Sprintf("audio_%03d", i), offset)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	return transcript.Merge(results), nil
}

func (d *Driver) transcribeOne(ctx context.Context, clip audio.Clip, name string, offset float64) (*transcript.Normalized, error) {
	res, err := d.provider.Transcribe(ctx, stt.Request{
		Audio:    clip.Data,
		Filename: clip.Filename(name),
		Language: d.language,
		Prompt:   d.prompt,
	})
	if err != nil {
		return nil, err
	}
	n, err := transcript.Normalize(res)
	if err != nil {
		return nil, err
	}
	n.Shift(offset)
	return n, nil
}
