// Package whisper provides a batch STT provider backed by the whisper.cpp
// CGO bindings, running entirely in-process. The whisper.cpp static library
// (libwhisper.a) and headers (whisper.h) must be available at link time via
// LIBRARY_PATH and C_INCLUDE_PATH.
//
// The local model returns segment-level timings but no speaker labels, so
// transcripts from this backend always take the sentence-midpoint
// diarization path.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// whisperSampleRate is the fixed input rate whisper.cpp expects.
const whisperSampleRate = 16000

// Provider implements stt.Provider using whisper.cpp Go bindings. The model
// is loaded once at construction and shared across all Transcribe calls;
// each call creates its own whisper context, which is how the bindings
// support concurrency.
type Provider struct {
	model    whisperlib.Model
	language string

	// mu serialises access during Close.
	mu     sync.RWMutex
	closed bool
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithLanguage sets the transcription language code (e.g. "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{model: model, language: "en"}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Calling Close more than once is safe.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.model == nil {
		return nil
	}
	p.closed = true
	return p.model.Close()
}

// MaxRequestBytes implements stt.Provider. Local inference has no payload
// cap; memory is bounded by the decoded audio, not the request.
func (p *Provider) MaxRequestBytes() int64 { return 0 }

// Transcribe implements stt.Provider. The audio payload is decoded and
// down-mixed to 16 kHz mono float32 before inference.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("whisper: empty audio: %w", types.ErrInvalidInput)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, errors.New("whisper: provider is closed")
	}

	format := audio.FormatMP3
	if strings.HasSuffix(strings.ToLower(req.Filename), ".wav") {
		format = audio.FormatWAV
	}
	pcm, err := audio.Decode(audio.Clip{Data: req.Audio, Format: format})
	if err != nil {
		return nil, fmt.Errorf("whisper: decode audio: %w", err)
	}
	samples := audio.ToMonoFloat32(pcm, whisperSampleRate)

	// Each context is NOT thread-safe, but the model can be shared.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	res := &stt.Result{}
	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segment, err := wctx.NextSegment()
		if err != nil {
			// The bindings signal end-of-segments with io.EOF.
			break
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		res.Segments = append(res.Segments, types.Segment{
			Text:  text,
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
		})
	}
	res.Text = strings.Join(parts, " ")

	if res.Text == "" && len(res.Segments) == 0 {
		return nil, fmt.Errorf("whisper: inference produced no segments: %w", types.ErrProviderContract)
	}
	return res, nil
}
