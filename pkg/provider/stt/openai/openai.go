// Package openai provides a batch STT provider backed by the OpenAI audio
// transcription API (Whisper), requesting verbose JSON with segment and,
// where the model supports it, word timestamps.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"

	// defaultMaxBytes is the documented Whisper API upload cap (25 MiB).
	defaultMaxBytes = 26_214_400
)

// Provider implements stt.Provider using the OpenAI transcription endpoint.
type Provider struct {
	apiKey   string
	model    string
	baseURL  string
	maxBytes int64
	words    bool
	client   *http.Client
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithModel selects the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithMaxRequestBytes overrides the provider's payload cap.
func WithMaxRequestBytes(n int64) Option {
	return func(p *Provider) { p.maxBytes = n }
}

// WithWordTimestamps additionally requests word-level timestamp granularity.
// Segment granularity is always requested.
func WithWordTimestamps(enabled bool) Option {
	return func(p *Provider) { p.words = enabled }
}

// WithHTTPClient replaces the HTTP client, e.g. to tune timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		baseURL:  defaultBaseURL,
		maxBytes: defaultMaxBytes,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// MaxRequestBytes implements stt.Provider.
func (p *Provider) MaxRequestBytes() int64 { return p.maxBytes }

// verboseResponse mirrors the verbose_json transcription response. Only the
// fields the core depends on are decoded.
type verboseResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
	Words []wireWord `json:"words"`
}

// wireWord tolerates both word-timestamp shapes seen in the wild: the plain
// Whisper shape {word, start, end} and the diarizing shape
// {type, text, start, end, speaker_id}.
type wireWord struct {
	Type      string  `json:"type"`
	Text      string  `json:"text"`
	Word      string  `json:"word"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SpeakerID string  `json:"speaker_id"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("openai: empty audio: %w", types.ErrInvalidInput)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	name := req.Filename
	if name == "" {
		name = "audio.mp3"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("openai: create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("openai: write audio: %w", err)
	}

	_ = w.WriteField("model", p.model)
	_ = w.WriteField("response_format", "verbose_json")
	_ = w.WriteField("timestamp_granularities[]", "segment")
	if p.words {
		_ = w.WriteField("timestamp_granularities[]", "word")
	}
	if req.Language != "" {
		_ = w.WriteField("language", req.Language)
	}
	if req.Prompt != "" {
		_ = w.WriteField("prompt", req.Prompt)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("openai: finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("openai: transcription request: %v: %w", err, types.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %v: %w", err, types.ErrProviderUnavailable)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("openai: transcription failed with status %d: %w", resp.StatusCode, types.ErrProviderUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("openai: transcription failed with status %d: %s: %w",
			resp.StatusCode, truncate(string(payload), 200), types.ErrProviderContract)
	}

	var vr verboseResponse
	if err := json.Unmarshal(payload, &vr); err != nil {
		return nil, fmt.Errorf("openai: decode response: %v: %w", err, types.ErrProviderContract)
	}
	if vr.Text == "" && len(vr.Segments) == 0 && len(vr.Words) == 0 {
		return nil, fmt.Errorf("openai: response carries no text, segments, or words: %w", types.ErrProviderContract)
	}

	return convert(vr), nil
}

// convert maps the wire response onto the provider-neutral Result.
func convert(vr verboseResponse) *stt.Result {
	res := &stt.Result{Text: vr.Text}
	for _, s := range vr.Segments {
		res.Segments = append(res.Segments, types.Segment{Text: s.Text, Start: s.Start, End: s.End})
	}
	for _, w := range vr.Words {
		word := types.Word{
			Kind:      types.WordKind(w.Type),
			Text:      w.Text,
			Start:     w.Start,
			End:       w.End,
			SpeakerID: w.SpeakerID,
		}
		if word.Kind == "" {
			word.Kind = types.KindWord
		}
		if word.Text == "" {
			word.Text = w.Word
		}
		res.Words = append(res.Words, word)
	}
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
