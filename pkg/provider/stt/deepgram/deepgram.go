// Package deepgram provides a batch STT provider backed by Deepgram's
// pre-recorded transcription API with speaker diarization enabled.
//
// Deepgram attaches an integer speaker label to every word, which makes it
// the preferred backend for the word-vote diarization path: the core maps the
// opaque labels onto display names from the activity log.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

const (
	defaultBaseURL = "https://api.deepgram.com/v1/listen"
	defaultModel   = "nova-2"

	// defaultMaxBytes caps pre-recorded uploads well under Deepgram's 2 GB
	// limit so a single request stays within sane memory bounds.
	defaultMaxBytes = 104_857_600
)

// Provider implements stt.Provider using Deepgram's pre-recorded API.
type Provider struct {
	apiKey   string
	model    string
	baseURL  string
	mimeType string
	maxBytes int64
	client   *http.Client
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the default Deepgram listen endpoint.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithModel selects the Deepgram model. Defaults to "nova-2".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithMimeType sets the Content-Type sent with the audio payload.
// Defaults to "audio/mpeg".
func WithMimeType(mt string) Option {
	return func(p *Provider) { p.mimeType = mt }
}

// WithMaxRequestBytes overrides the provider's payload cap.
func WithMaxRequestBytes(n int64) Option {
	return func(p *Provider) { p.maxBytes = n }
}

// WithHTTPClient replaces the HTTP client, e.g. to tune timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New constructs a new Deepgram STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		baseURL:  defaultBaseURL,
		mimeType: "audio/mpeg",
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

// listenResponse mirrors the subset of Deepgram's pre-recorded response the
// core consumes.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Word           string  `json:"word"`
					PunctuatedWord string  `json:"punctuated_word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					Speaker        *int    `json:"speaker"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("deepgram: empty audio: %w", types.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("model", p.model)
	q.Set("diarize", "true")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if req.Language != "" {
		q.Set("language", req.Language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"?"+q.Encode(), bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("deepgram: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	httpReq.Header.Set("Content-Type", p.mimeType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("deepgram: listen request: %v: %w", err, types.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("deepgram: read response: %v: %w", err, types.ErrProviderUnavailable)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("deepgram: listen failed with status %d: %w", resp.StatusCode, types.ErrProviderUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("deepgram: listen failed with status %d: %w", resp.StatusCode, types.ErrProviderContract)
	}

	var lr listenResponse
	if err := json.Unmarshal(payload, &lr); err != nil {
		return nil, fmt.Errorf("deepgram: decode response: %v: %w", err, types.ErrProviderContract)
	}
	if len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram: response carries no alternatives: %w", types.ErrProviderContract)
	}

	alt := lr.Results.Channels[0].Alternatives[0]
	res := &stt.Result{Text: alt.Transcript}
	for _, w := range alt.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		word := types.Word{
			Kind:  types.KindWord,
			Text:  text,
			Start: w.Start,
			End:   w.End,
		}
		if w.Speaker != nil {
			word.SpeakerID = "speaker_" + strconv.Itoa(*w.Speaker)
		}
		res.Words = append(res.Words, word)
	}
	return res, nil
}
