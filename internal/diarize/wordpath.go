package diarize

import (
	"sort"
	"strings"

	"github.com/MrWong99/meetscribe/internal/transcript"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// sampleStrideSeconds sets the vote-sampling density: one sample per half
// second of run length, never fewer than minSamplesPerRun.
const (
	sampleStrideSeconds = 0.5
	minSamplesPerRun    = 3
)

// wordRun is a maximal run of consecutive words sharing one provider speaker
// id with no long internal silence.
type wordRun struct {
	speakerID  string
	start, end float64
}

// assignWords resolves the provider's opaque speaker ids to display names by
// voting against the activity log, then walks the word stream emitting an
// utterance per stretch of one display name. Every word ends up in exactly
// one utterance; ids that gather no votes map to "unknown".
func (a *Assigner) assignWords(words []types.Word) []types.Utterance {
	mapping := a.mapSpeakerIDs(words)

	var utterances []types.Utterance
	var b strings.Builder
	var start, end float64
	var current string
	open := false

	flush := func() {
		if !open {
			return
		}
		text := transcript.CollapseWhitespace(b.String())
		if text != "" {
			utterances = append(utterances, types.Utterance{
				Speaker: current,
				Text:    text,
				Start:   a.rc.Abs(start),
				End:     a.rc.Abs(end),
			})
		}
		b.Reset()
		open = false
	}

	for _, w := range words {
		switch w.Kind {
		case types.KindPunctuation:
			if open {
				b.WriteString(strings.TrimSpace(w.Text))
			}
		case types.KindSpacing:
			continue
		case types.KindWord:
			name := displayName(mapping, w.SpeakerID)
			if open && name != current {
				flush()
			}
			if !open {
				start = w.Start
				current = name
				open = true
			} else {
				b.WriteString(" ")
			}
			b.WriteString(strings.TrimSpace(w.Text))
			end = w.End
		}
	}
	flush()
	return utterances
}

// mapSpeakerIDs builds the id → display-name mapping. For every sufficiently
// long run of one id, evenly spaced sample times are looked up in the raw
// activity log; each hit is one vote for that event's first speaker. The
// name with the most votes wins, ties going to the name appearing earliest
// in the activity log.
func (a *Assigner) mapSpeakerIDs(words []types.Word) map[string]string {
	runs := extractRuns(words, a.cfg.MinSpeakerChangeGapSeconds)

	tallies := make(map[string]map[string]int)
	for _, r := range runs {
		if r.end-r.start < a.cfg.MinUtteranceSeconds {
			continue
		}
		if tallies[r.speakerID] == nil {
			tallies[r.speakerID] = make(map[string]int)
		}
		for _, t := range sampleTimes(r.start, r.end) {
			if name, ok := a.tl.Vote(t); ok {
				tallies[r.speakerID][name]++
			}
		}
	}

	rank := make(map[string]int)
	for i, name := range a.tl.Speakers() {
		rank[name] = i
	}

	mapping := make(map[string]string, len(tallies))
	for id, votes := range tallies {
		names := make([]string, 0, len(votes))
		for name := range votes {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if votes[names[i]] != votes[names[j]] {
				return votes[names[i]] > votes[names[j]]
			}
			return rank[names[i]] < rank[names[j]]
		})
		if len(names) > 0 {
			mapping[id] = names[0]
		}
	}
	return mapping
}

// extractRuns groups consecutive word entries sharing a speaker id, breaking
// a run whenever the inter-word gap reaches gapSeconds. Punctuation and
// spacing entries neither extend nor break a run.
func extractRuns(words []types.Word, gapSeconds float64) []wordRun {
	var runs []wordRun
	var r wordRun
	open := false

	for _, w := range words {
		if w.Kind != types.KindWord {
			continue
		}
		if open && (w.SpeakerID != r.speakerID || w.Start-r.end >= gapSeconds) {
			runs = append(runs, r)
			open = false
		}
		if !open {
			r = wordRun{speakerID: w.SpeakerID, start: w.Start}
			open = true
		}
		r.end = w.End
	}
	if open {
		runs = append(runs, r)
	}
	return runs
}

// sampleTimes returns max(3, ⌊duration/stride⌋) evenly spaced instants
// covering [start, end] inclusive.
func sampleTimes(start, end float64) []float64 {
	n := int((end - start) / sampleStrideSeconds)
	if n < minSamplesPerRun {
		n = minSamplesPerRun
	}
	times := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range times {
		times[i] = start + float64(i)*step
	}
	return times
}

func displayName(mapping map[string]string, id string) string {
	if name, ok := mapping[id]; ok {
		return name
	}
	return types.SpeakerUnknown
}
