// Package diarize attaches speaker labels to a normalized transcript using
// the activity timeline.
//
// Two strategies cover the two provider shapes. When the provider delivered
// per-word opaque speaker ids, those ids are mapped onto display names by
// sampling the activity log (the word path). Otherwise each segment is
// sentence-split and every sentence labelled from the timeline directly (the
// segment path). Both paths degrade to the literal "unknown" label instead of
// failing when the activity log is sparse or empty.
package diarize

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/MrWong99/meetscribe/internal/timeline"
	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// Config carries the diarization thresholds. Zero values are replaced by the
// defaults below, except SpeakerOffsetSeconds where zero is meaningful.
type Config struct {
	// SpeakerOffsetSeconds is the activity-clock correction already applied
	// when building the timeline. Held here only for logging.
	SpeakerOffsetSeconds float64

	// DurationRatio is the reassignment threshold of the segment path: a
	// rival speaker takes over a segment when its in-segment overlap is at
	// least DurationRatio times the assigned speaker's.
	DurationRatio float64

	// MinUtteranceSeconds drops provider-segment runs shorter than this from
	// the word path's vote sampling.
	MinUtteranceSeconds float64

	// MinSpeakerChangeGapSeconds is the maximum silence inside one
	// provider-segment run on the word path.
	MinSpeakerChangeGapSeconds float64

	// SegmentMergeGapSeconds merges consecutive same-speaker utterances on
	// the segment path.
	SegmentMergeGapSeconds float64

	// WordMergeGapSeconds merges consecutive same-speaker utterances on the
	// word path.
	WordMergeGapSeconds float64

	// ForceSegmentPath ignores word-level speaker ids and always runs the
	// segment path. Useful when a provider's ids are known to be unreliable.
	ForceSegmentPath bool
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		DurationRatio:              1.5,
		MinUtteranceSeconds:        1.0,
		MinSpeakerChangeGapSeconds: 0.5,
		SegmentMergeGapSeconds:     0.3,
		WordMergeGapSeconds:        1.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DurationRatio <= 1 {
		c.DurationRatio = d.DurationRatio
	}
	if c.MinUtteranceSeconds <= 0 {
		c.MinUtteranceSeconds = d.MinUtteranceSeconds
	}
	if c.MinSpeakerChangeGapSeconds <= 0 {
		c.MinSpeakerChangeGapSeconds = d.MinSpeakerChangeGapSeconds
	}
	if c.SegmentMergeGapSeconds <= 0 {
		c.SegmentMergeGapSeconds = d.SegmentMergeGapSeconds
	}
	if c.WordMergeGapSeconds <= 0 {
		c.WordMergeGapSeconds = d.WordMergeGapSeconds
	}
	return c
}

// Assigner labels a normalized transcript with speakers. One Assigner serves
// one recording; it is not safe for concurrent use and holds no state beyond
// its inputs.
type Assigner struct {
	tl     *timeline.Timeline
	rc     types.RecordingContext
	cfg    Config
	logger *slog.Logger
}

// New creates an Assigner over the given timeline and recording context.
func New(tl *timeline.Timeline, rc types.RecordingContext, cfg Config, logger *slog.Logger) (*Assigner, error) {
	if tl == nil {
		return nil, fmt.Errorf("diarize: nil timeline: %w", types.ErrInvalidInput)
	}
	if rc.Start.IsZero() {
		return nil, fmt.Errorf("diarize: recording start not set: %w", types.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{tl: tl, rc: rc, cfg: cfg.withDefaults(), logger: logger}, nil
}

// Assign labels the transcript and returns the ordered utterances. The word
// path runs when per-word speaker ids are present and ForceSegmentPath is
// off; otherwise the segment path runs. Sparse or empty activity data never
// fails the call, it only produces "unknown" labels.
func (a *Assigner) Assign(n *transcript.Normalized) ([]types.Utterance, error) {
	if n == nil {
		return nil, fmt.Errorf("diarize: nil transcript: %w", types.ErrInvalidInput)
	}

	var utterances []types.Utterance
	if n.HasWords() && !a.cfg.ForceSegmentPath {
		a.logger.Debug("diarizing via word path", "words", len(n.Words))
		utterances = a.assignWords(n.Words)
		utterances = mergeUtterances(utterances, a.cfg.WordMergeGapSeconds)
	} else {
		a.logger.Debug("diarizing via segment path", "segments", len(n.Segments))
		utterances = a.assignSegments(n.Segments)
		utterances = mergeUtterances(utterances, a.cfg.SegmentMergeGapSeconds)
	}
	return utterances, nil
}

// mergeUtterances folds consecutive utterances with the same speaker whose
// gap is below gapSeconds into one, normalising whitespace in the joined
// text. Running it on its own output is a no-op.
func mergeUtterances(us []types.Utterance, gapSeconds float64) []types.Utterance {
	if len(us) < 2 {
		return us
	}

	merged := make([]types.Utterance, 0, len(us))
	current := us[0]
	for _, next := range us[1:] {
		gap := math.Abs(next.Start.Sub(current.End).Seconds())
		if next.Speaker == current.Speaker && gap < gapSeconds {
			current.Text = transcript.CollapseWhitespace(current.Text + " " + next.Text)
			current.End = next.End
			continue
		}
		current.Text = transcript.CollapseWhitespace(current.Text)
		merged = append(merged, current)
		current = next
	}
	current.Text = transcript.CollapseWhitespace(current.Text)
	merged = append(merged, current)
	return merged
}
