// Package pipeline wires the processing stages into the one-shot run that
// turns a finished recording into a diarized transcript: chunked
// transcription, normalization, timeline construction, speaker assignment,
// and finally the optional TL;DR.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/meetscribe/internal/diarize"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/summary"
	"github.com/MrWong99/meetscribe/internal/timeline"
	"github.com/MrWong99/meetscribe/internal/transcribe"
	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// defaultParagraphGapSeconds is the pause length that starts a new paragraph
// in the rendered full text.
const defaultParagraphGapSeconds = 0.5

// Input is the one-shot hand-off from the recorder: everything the pipeline
// needs to process one finished recording. The pipeline never mutates it.
type Input struct {
	// Clip is the recorded audio.
	Clip audio.Clip

	// RecordingStart is the instant audio capture began.
	RecordingStart time.Time

	// Duration is the recording length. Zero means unknown; the timeline
	// then closes trailing speaker blocks at the last activity event.
	Duration time.Duration

	// Activity is the speaker-activity log, ordered by timestamp.
	Activity []types.ActivityEvent

	// MeetingName is a human-readable label used only for logging and
	// persistence.
	MeetingName string
}

// Pipeline processes recordings. Safe for concurrent use; each Run works on
// its own state.
type Pipeline struct {
	driver       *transcribe.Driver
	summariser   *summary.Generator
	cfg          diarize.Config
	paragraphGap float64
	canonicalize bool
	metrics      *observe.Metrics
	logger       *slog.Logger
}

// Option is a functional option for Pipeline.
type Option func(*Pipeline)

// WithSummariser enables TL;DR generation. Without it the transcript's TLDR
// stays nil.
func WithSummariser(g *summary.Generator) Option {
	return func(p *Pipeline) { p.summariser = g }
}

// WithDiarizeConfig replaces the default diarization thresholds.
func WithDiarizeConfig(cfg diarize.Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithParagraphGap sets the pause length that starts a new paragraph in the
// rendered full text.
func WithParagraphGap(seconds float64) Option {
	return func(p *Pipeline) {
		if seconds > 0 {
			p.paragraphGap = seconds
		}
	}
}

// WithRosterCanonicalization folds near-duplicate display names in the
// activity log before the timeline is built.
func WithRosterCanonicalization() Option {
	return func(p *Pipeline) { p.canonicalize = true }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets the slog logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline around the given transcription driver.
func New(driver *transcribe.Driver, opts ...Option) *Pipeline {
	p := &Pipeline{
		driver:       driver,
		cfg:          diarize.DefaultConfig(),
		paragraphGap: defaultParagraphGapSeconds,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Run processes one recording end to end.
//
// A summariser failure is isolated: the transcript comes back with TLDR nil
// and no error. Every other stage failure aborts the run; partial transcripts
// are never returned.
func (p *Pipeline) Run(ctx context.Context, in Input) (*types.DiarizedTranscript, error) {
	if in.RecordingStart.IsZero() {
		return nil, fmt.Errorf("pipeline: recording start not set: %w", types.ErrInvalidInput)
	}
	if in.Duration < 0 {
		return nil, fmt.Errorf("pipeline: negative duration %v: %w", in.Duration, types.ErrInvalidInput)
	}
	rc := types.RecordingContext{Start: in.RecordingStart.UTC(), Duration: in.Duration}
	log := p.logger.With("meeting", in.MeetingName)

	sttStart := time.Now()
	normalized, err := p.driver.Transcribe(ctx, in.Clip)
	p.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		p.metrics.RecordRecording(ctx, observe.StatusError)
		return nil, fmt.Errorf("pipeline: transcribe: %w", err)
	}
	log.Info("transcription complete",
		"segments", len(normalized.Segments),
		"words", len(normalized.Words),
		"duration", time.Since(sttStart))

	events := in.Activity
	if p.canonicalize {
		events = timeline.NewRoster(events).Canonicalize(events)
	}
	tl, err := timeline.New(events, rc, p.cfg.SpeakerOffsetSeconds)
	if err != nil {
		p.metrics.RecordRecording(ctx, observe.StatusError)
		return nil, fmt.Errorf("pipeline: build timeline: %w", err)
	}

	assigner, err := diarize.New(tl, rc, p.cfg, p.logger)
	if err != nil {
		p.metrics.RecordRecording(ctx, observe.StatusError)
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	diarizeStart := time.Now()
	utterances, err := assigner.Assign(normalized)
	p.metrics.DiarizeDuration.Record(ctx, time.Since(diarizeStart).Seconds())
	if err != nil {
		p.metrics.RecordRecording(ctx, observe.StatusError)
		return nil, fmt.Errorf("pipeline: assign speakers: %w", err)
	}
	log.Info("diarization complete", "utterances", len(utterances), "speakers", len(tl.Speakers()))

	result := &types.DiarizedTranscript{
		Text:       p.renderText(normalized),
		Utterances: utterances,
	}

	if p.summariser != nil && len(utterances) > 0 {
		summaryStart := time.Now()
		tldr, err := p.summariser.Generate(ctx, utterances)
		p.metrics.SummaryDuration.Record(ctx, time.Since(summaryStart).Seconds())
		switch {
		case err == nil:
			result.TLDR = &tldr
		case ctx.Err() != nil:
			p.metrics.RecordRecording(ctx, observe.StatusError)
			return nil, fmt.Errorf("pipeline: summarise: %w", ctx.Err())
		default:
			// The TL;DR is best effort; the transcript itself is not.
			log.Warn("summariser failed, continuing without tldr", "error", err)
			p.metrics.RecordSummaryFailure(ctx)
		}
	}

	p.metrics.RecordRecording(ctx, observe.StatusOK)
	return result, nil
}

// renderText builds the transcript's display text. Segment timings drive
// paragraph breaks; a transcript without segments falls back to the
// provider's raw full text.
func (p *Pipeline) renderText(n *transcript.Normalized) string {
	if len(n.Segments) == 0 {
		return n.FullText
	}
	return n.FormatParagraphs(p.paragraphGap)
}
