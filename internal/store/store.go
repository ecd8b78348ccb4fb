// Package store defines transcript persistence for meetscribe.
//
// The pipeline produces a [types.DiarizedTranscript] per recording; the store
// keeps these alongside recording metadata so past meetings can be listed and
// re-read. The canonical backend is PostgreSQL (see the postgres subpackage);
// the mock subpackage provides an in-memory test double.
//
// Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/meetscribe/pkg/types"
)

// ErrNotFound is returned by Get when no recording exists under the given id.
var ErrNotFound = errors.New("store: recording not found")

// Recording is a persisted meeting recording: metadata plus the finished
// diarized transcript.
type Recording struct {
	// ID is the unique identifier for this recording (a UUID).
	ID string

	// MeetingName is the human-readable meeting title.
	MeetingName string

	// StartedAt is the absolute instant audio capture began.
	StartedAt time.Time

	// Duration is the total length of the captured audio.
	Duration time.Duration

	// Transcript is the pipeline output for this recording.
	Transcript types.DiarizedTranscript

	// CreatedAt is when the recording was persisted.
	CreatedAt time.Time
}

// ListOpts filters and bounds a List call. All non-zero fields are applied
// as AND conditions.
type ListOpts struct {
	// MeetingName restricts results to recordings of a single meeting.
	// An empty string matches all meetings.
	MeetingName string

	// After filters recordings started after this instant (exclusive).
	// A zero Time disables the lower bound.
	After time.Time

	// Before filters recordings started before this instant (exclusive).
	// A zero Time disables the upper bound.
	Before time.Time

	// Limit caps the number of results returned.
	// A value of 0 means the implementation may apply its own default.
	Limit int
}

// Store persists finished recordings.
type Store interface {
	// Save persists rec. When rec.ID is empty the implementation assigns one
	// and returns it; a non-empty ID upserts.
	Save(ctx context.Context, rec Recording) (id string, err error)

	// Get returns the recording stored under id, or [ErrNotFound].
	Get(ctx context.Context, id string) (Recording, error)

	// List returns recordings matching opts, most recently started first.
	List(ctx context.Context, opts ListOpts) ([]Recording, error)

	// Delete removes the recording stored under id. Deleting a missing id
	// is not an error.
	Delete(ctx context.Context, id string) error
}
