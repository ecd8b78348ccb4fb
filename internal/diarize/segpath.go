package diarize

import (
	"strings"
	"unicode"

	"github.com/MrWong99/meetscribe/internal/timeline"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// sentenceSpan is one sentence of a provider segment with its proportional
// share of the segment's time interval.
type sentenceSpan struct {
	text       string
	start, end float64
}

// assignSegments labels segment-level transcripts. Each segment is split
// into sentences which get proportional sub-intervals; every sentence is
// labelled with the active speaker at its midpoint. When the midpoint lookup
// comes up empty the whole segment falls back to block matching. The
// duration-ratio check then runs over the whole segment interval: when every
// sentence landed on the same speaker and a rival dominates the segment's
// overlap, the rival takes all of them together.
func (a *Assigner) assignSegments(segments []types.Segment) []types.Utterance {
	var utterances []types.Utterance
	for _, seg := range segments {
		spans := splitSentences(seg)
		if len(spans) == 0 {
			continue
		}

		speakers := make([]string, len(spans))
		fallback := ""
		fallbackSet := false
		for i, sp := range spans {
			speaker, ok := a.tl.ActiveAt((sp.start + sp.end) / 2)
			if !ok {
				if !fallbackSet {
					fallback = a.blockFallback(seg)
					fallbackSet = true
				}
				speaker = fallback
			}
			if speaker == "" {
				speaker = types.SpeakerUnknown
			}
			speakers[i] = speaker
		}

		if s := uniformSpeaker(speakers); s != "" && s != types.SpeakerUnknown {
			if rival := a.reassign(s, seg.Start, seg.End); rival != s {
				for i := range speakers {
					speakers[i] = rival
				}
			}
		}

		for i, sp := range spans {
			utterances = append(utterances, types.Utterance{
				Speaker: speakers[i],
				Text:    sp.text,
				Start:   a.rc.Abs(sp.start),
				End:     a.rc.Abs(sp.end),
			})
		}
	}
	return utterances
}

// uniformSpeaker returns the single speaker shared by every entry, or the
// empty string when the labels are mixed. A sentence-midpoint disagreement
// inside a segment is a real speaker change; the segment-level reassignment
// must not override it.
func uniformSpeaker(speakers []string) string {
	s := speakers[0]
	for _, v := range speakers[1:] {
		if v != s {
			return ""
		}
	}
	return s
}

// blockFallback labels a segment from the speaker blocks, trying in order: a
// block fully inside the segment, a block ongoing at the segment start, a
// block starting inside the segment. Empty string means no block matched.
func (a *Assigner) blockFallback(seg types.Segment) string {
	blocks := a.tl.Blocks()
	for _, b := range blocks {
		if b.Start >= seg.Start && b.End <= seg.End {
			return b.Speaker
		}
	}
	for _, b := range blocks {
		if b.Start <= seg.Start && b.End >= seg.Start {
			return b.Speaker
		}
	}
	for _, b := range blocks {
		if b.Start >= seg.Start && b.Start <= seg.End {
			return b.Speaker
		}
	}
	return ""
}

// reassign hands the interval to a rival speaker whose total overlap inside
// it is at least DurationRatio times the assigned speaker's. Among
// qualifying rivals the longest overlap wins, ties going to the speaker
// whose block starts earliest.
func (a *Assigner) reassign(assigned string, start, end float64) string {
	assignedOverlap := a.tl.Overlap(assigned, start, end)

	best := assigned
	bestOverlap := -1.0
	bestStart := 0.0
	for _, rival := range blockSpeakers(a.tl.Blocks()) {
		if rival == assigned {
			continue
		}
		overlap := a.tl.Overlap(rival, start, end)
		if overlap <= 0 || overlap < assignedOverlap*a.cfg.DurationRatio {
			continue
		}
		start := firstBlockStart(a.tl.Blocks(), rival)
		if overlap > bestOverlap || (overlap == bestOverlap && start < bestStart) {
			best, bestOverlap, bestStart = rival, overlap, start
		}
	}
	return best
}

// blockSpeakers returns the distinct speakers in block-start order.
func blockSpeakers(blocks []timeline.Block) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range blocks {
		if _, ok := seen[b.Speaker]; !ok {
			seen[b.Speaker] = struct{}{}
			out = append(out, b.Speaker)
		}
	}
	return out
}

func firstBlockStart(blocks []timeline.Block, speaker string) float64 {
	for _, b := range blocks {
		if b.Speaker == speaker {
			return b.Start
		}
	}
	return 0
}

// splitSentences cuts a segment's text at sentence boundaries (a run of
// terminal punctuation followed by whitespace) and allocates each sentence a
// sub-interval of the segment proportional to its rune length. Text without
// internal sentence boundaries stays one span covering the whole segment.
func splitSentences(seg types.Segment) []sentenceSpan {
	sentences := sentenceTexts(seg.Text)
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) == 1 {
		return []sentenceSpan{{text: sentences[0], start: seg.Start, end: seg.End}}
	}

	total := 0
	for _, s := range sentences {
		total += len([]rune(s))
	}
	if total == 0 {
		return []sentenceSpan{{text: seg.Text, start: seg.Start, end: seg.End}}
	}

	spans := make([]sentenceSpan, 0, len(sentences))
	dur := seg.End - seg.Start
	consumed := 0
	for _, s := range sentences {
		start := seg.Start + dur*float64(consumed)/float64(total)
		consumed += len([]rune(s))
		end := seg.Start + dur*float64(consumed)/float64(total)
		spans = append(spans, sentenceSpan{text: s, start: start, end: end})
	}
	// Guard against floating point drift at the far edge.
	spans[len(spans)-1].end = seg.End
	return spans
}

// sentenceTexts splits text after each run of '.', '!' or '?' that is
// followed by whitespace. Trailing punctuation stays with its sentence.
func sentenceTexts(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(strings.TrimSpace(text))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)
		if !isTerminal(r) {
			continue
		}
		// Absorb the rest of the punctuation run.
		for i+1 < len(runes) && isTerminal(runes[i+1]) {
			i++
			b.WriteRune(runes[i])
		}
		if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }
