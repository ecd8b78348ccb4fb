// Package timeline converts the recorder's raw speaker-activity event stream
// into an ordered sequence of speaker blocks and answers the point and
// interval queries the diarizer needs.
//
// An activity event is a snapshot of who is marked active in the meeting UI
// at one instant. A block is the derived maximal interval during which a
// single display name was continuously active. Blocks of the same speaker
// never overlap; blocks of different speakers may (two people talking over
// each other).
package timeline

import (
	"fmt"
	"sort"

	"github.com/MrWong99/meetscribe/pkg/types"
)

// Block is a maximal interval during which one speaker was continuously
// active, in seconds relative to the recording start.
type Block struct {
	Speaker string
	Start   float64
	End     float64
}

// Timeline holds the derived speaker blocks plus the raw events, both needed
// by the two diarization paths: the sentence-midpoint path queries blocks,
// the word-vote path queries raw events.
type Timeline struct {
	blocks []Block
	events []types.ActivityEvent
	rc     types.RecordingContext
	offset float64
}

// New validates the event stream and derives speaker blocks.
//
// offsetSeconds is an additive correction applied to all block boundaries,
// modelling a known latency between the activity-event clock and the audio
// clock. Callers that have not measured the latency pass 0.
//
// Events must be ordered by timestamp; out-of-order events wrap
// types.ErrInvalidInput. An empty event list is valid and yields an empty
// timeline (the diarizer then labels everything "unknown").
func New(events []types.ActivityEvent, rc types.RecordingContext, offsetSeconds float64) (*Timeline, error) {
	for i := 1; i < len(events); i++ {
		if events[i].At.Before(events[i-1].At) {
			return nil, fmt.Errorf("timeline: event %d at %s precedes event %d at %s: %w",
				i, events[i].At.Format("15:04:05.000"), i-1, events[i-1].At.Format("15:04:05.000"),
				types.ErrInvalidInput)
		}
	}

	tl := &Timeline{
		blocks: buildBlocks(events, rc, offsetSeconds),
		events: events,
		rc:     rc,
		offset: offsetSeconds,
	}
	return tl, nil
}

// buildBlocks walks the events in time order, opening a block when a speaker
// appears in a snapshot and closing it when the speaker disappears. Speakers
// still open at end-of-stream are closed at the recording end when the
// duration is known, otherwise at the last event.
func buildBlocks(events []types.ActivityEvent, rc types.RecordingContext, offset float64) []Block {
	active := make(map[string]float64)
	var blocks []Block
	var lastRel float64

	for _, ev := range events {
		rel := rc.Rel(ev.At)
		if rel < 0 {
			// Events delivered before capture started clamp to the start.
			rel = 0
		}
		lastRel = rel

		current := make(map[string]struct{}, len(ev.Speakers))
		for _, s := range ev.Speakers {
			current[s] = struct{}{}
		}

		// Close speakers that disappeared. Map iteration order does not
		// matter here; the final sort fixes the block order.
		for s, start := range active {
			if _, still := current[s]; !still {
				if rel > start {
					blocks = append(blocks, Block{Speaker: s, Start: start, End: rel})
				}
				delete(active, s)
			}
		}

		// Open speakers that appeared.
		for _, s := range ev.Speakers {
			if _, open := active[s]; !open {
				active[s] = rel
			}
		}
	}

	end := lastRel
	if rc.Duration > 0 {
		end = rc.Duration.Seconds()
	}
	for s, start := range active {
		if end > start {
			blocks = append(blocks, Block{Speaker: s, Start: start, End: end})
		}
	}

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })

	if offset != 0 {
		for i := range blocks {
			blocks[i].Start += offset
			blocks[i].End += offset
		}
	}
	return blocks
}

// Blocks returns the derived speaker blocks ordered by start time. The
// returned slice is shared; callers must not mutate it.
func (t *Timeline) Blocks() []Block { return t.blocks }

// Empty reports whether the timeline carries no speaker information at all.
func (t *Timeline) Empty() bool { return len(t.blocks) == 0 }

// Speakers returns the distinct display names in order of first appearance
// in the event stream. The word-vote path uses this order to break ties.
func (t *Timeline) Speakers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ev := range t.events {
		for _, s := range ev.Speakers {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}

// ActiveAt returns the first speaker of the most recent non-empty event at
// or before the given relative time, honouring the timeline's offset. The
// second return value is false when no such event exists.
func (t *Timeline) ActiveAt(rel float64) (string, bool) {
	return t.activeAt(rel, t.offset)
}

// Vote is ActiveAt without the offset correction. The word-vote path samples
// provider segments against the raw event clock: its speaker mapping is
// independent of the audio/activity clock skew, so the offset must not move
// its votes.
func (t *Timeline) Vote(rel float64) (string, bool) {
	return t.activeAt(rel, 0)
}

func (t *Timeline) activeAt(rel, offset float64) (string, bool) {
	at := t.rc.Abs(rel - offset)
	for i := len(t.events) - 1; i >= 0; i-- {
		ev := t.events[i]
		if ev.At.After(at) {
			continue
		}
		if len(ev.Speakers) > 0 {
			return ev.Speakers[0], true
		}
	}
	return "", false
}

// Overlap returns the total time the given speaker is active inside
// [start, end], summed across all of the speaker's blocks.
func (t *Timeline) Overlap(speaker string, start, end float64) float64 {
	var total float64
	for _, b := range t.blocks {
		if b.Speaker != speaker || b.End <= start || b.Start >= end {
			continue
		}
		total += min(b.End, end) - max(b.Start, start)
	}
	return total
}
