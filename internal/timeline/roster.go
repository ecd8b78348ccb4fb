package timeline

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/meetscribe/pkg/types"
)

// rosterSimilarityThreshold is the minimum Jaro-Winkler score for two
// display names to be considered the same participant.
const rosterSimilarityThreshold = 0.92

// Roster canonicalises the display names captured from a meeting client's
// UI. The same participant often appears under cosmetic variants — case
// changes, stray whitespace, a truncated surname with an ellipsis — and
// every variant would otherwise become a separate speaker in the transcript.
//
// The first spelling of a name wins; later near-duplicates are folded onto
// it. A Roster is cheap and recording-scoped; build one per activity log.
type Roster struct {
	canonical []string
}

// NewRoster builds a roster from the activity log, folding near-duplicate
// names in order of first appearance.
func NewRoster(events []types.ActivityEvent) *Roster {
	r := &Roster{}
	for _, ev := range events {
		for _, name := range ev.Speakers {
			r.resolve(name)
		}
	}
	return r
}

// Canonicalize rewrites every event's speaker list onto canonical names,
// dropping duplicates a fold may have produced within a single event. The
// input is not mutated.
func (r *Roster) Canonicalize(events []types.ActivityEvent) []types.ActivityEvent {
	out := make([]types.ActivityEvent, len(events))
	for i, ev := range events {
		mapped := make([]string, 0, len(ev.Speakers))
		seen := make(map[string]struct{}, len(ev.Speakers))
		for _, name := range ev.Speakers {
			c := r.resolve(name)
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			mapped = append(mapped, c)
		}
		out[i] = types.ActivityEvent{At: ev.At, Speakers: mapped}
	}
	return out
}

// Names returns the canonical display names in order of first appearance.
func (r *Roster) Names() []string { return r.canonical }

// resolve maps a raw display name onto its canonical spelling, registering
// it as a new canonical name when nothing similar is known yet.
func (r *Roster) resolve(raw string) string {
	name := normalizeName(raw)
	if name == "" {
		return raw
	}
	for _, c := range r.canonical {
		if strings.EqualFold(c, name) {
			return c
		}
		if matchr.JaroWinkler(strings.ToLower(c), strings.ToLower(name), false) >= rosterSimilarityThreshold {
			return c
		}
	}
	r.canonical = append(r.canonical, name)
	return name
}

// normalizeName trims whitespace and UI truncation artefacts.
func normalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimSuffix(name, "…")
	name = strings.TrimSuffix(name, "...")
	return strings.TrimSpace(name)
}
