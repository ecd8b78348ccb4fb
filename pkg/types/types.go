// Package types defines the shared types used across all Meetscribe packages.
//
// These types form the lingua franca between the STT providers, the activity
// timeline, the diarizer, and the summariser. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

import "time"

// SpeakerUnknown is the label assigned to utterances whose speaker could not
// be determined from the activity log.
const SpeakerUnknown = "unknown"

// RecordingContext pins a recording to the wall clock. It is created when
// audio capture begins and is immutable afterwards.
type RecordingContext struct {
	// Start is the absolute instant audio capture began.
	Start time.Time

	// Duration is the total length of the captured audio. Zero when the
	// recording was cut short and the true length is unknown.
	Duration time.Duration
}

// Abs converts a relative offset in seconds from the recording start into an
// absolute UTC instant.
func (rc RecordingContext) Abs(relSeconds float64) time.Time {
	return rc.Start.Add(time.Duration(relSeconds * float64(time.Second))).UTC()
}

// Rel converts an absolute instant into seconds elapsed since the recording
// start. Instants before the start yield negative values; callers clamp as
// appropriate.
func (rc RecordingContext) Rel(t time.Time) float64 {
	return t.Sub(rc.Start).Seconds()
}

// ActivityEvent is a timestamped snapshot of who is currently speaking,
// produced by the recorder from the meeting client's UI. An empty Speakers
// slice means silence since the previous event.
type ActivityEvent struct {
	// At is the absolute instant the snapshot was taken.
	At time.Time `json:"timestamp"`

	// Speakers lists the display names marked active at At, in UI order.
	Speakers []string `json:"speakers"`
}

// WordKind classifies a single entry in a word-level STT response.
type WordKind string

const (
	// KindWord is a spoken word with meaningful timings.
	KindWord WordKind = "word"

	// KindPunctuation is a punctuation mark attached to the previous word.
	KindPunctuation WordKind = "punctuation"

	// KindSpacing is provider-inserted whitespace with no semantic content.
	KindSpacing WordKind = "spacing"
)

// Word is a single entry of a word-level STT response. Only KindWord entries
// carry semantically meaningful timings.
type Word struct {
	Kind WordKind `json:"type"`
	Text string   `json:"text"`

	// Start and End are seconds relative to the start of the transcribed audio.
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// SpeakerID is the provider's opaque speaker label (e.g. "speaker_0").
	// Empty when the provider did not diarize.
	SpeakerID string `json:"speaker_id,omitempty"`
}

// Segment is a provider-chosen grouping of words, typically a sentence or
// clause, with timings in seconds relative to the start of the audio.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Utterance is a contiguous span of text attributed to one speaker, with
// absolute timestamps. Utterances are the atoms of a diarized transcript.
type Utterance struct {
	// Speaker is a display name from the activity log, or SpeakerUnknown.
	Speaker string `json:"speaker"`

	Text string `json:"text"`

	// Start and End are absolute UTC instants with Start < End.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DiarizedTranscript is the final artifact of the pipeline: the full
// normalized transcript text, the ordered utterance list, and an optional
// TL;DR summary.
type DiarizedTranscript struct {
	// Text is the full normalized transcript, paragraph-formatted.
	Text string `json:"text"`

	// Utterances are ordered by Start and non-overlapping.
	Utterances []Utterance `json:"diarized"`

	// TLDR is a 1–2 sentence topical summary. Nil when summarisation was
	// disabled or failed; summariser failures never fail the pipeline.
	TLDR *string `json:"tldr"`
}

// RecorderState is the lifecycle state of the surrounding recorder process.
// The core never owns this state; it is handed in and out with each recording
// so the recorder can report progress without sharing globals.
type RecorderState string

const (
	StateInitializing RecorderState = "initializing"
	StateReady        RecorderState = "ready"
	StateWaiting      RecorderState = "waiting"
	StateJoining      RecorderState = "joining"
	StateRecording    RecorderState = "recording"
	StateProcessing   RecorderState = "processing"
)

// IsValid reports whether s is a recognised recorder state.
func (s RecorderState) IsValid() bool {
	switch s {
	case StateInitializing, StateReady, StateWaiting, StateJoining, StateRecording, StateProcessing:
		return true
	}
	return false
}
