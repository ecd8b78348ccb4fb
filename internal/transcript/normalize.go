// Package transcript normalizes heterogeneous speech-to-text responses into
// a single internal shape the diarizer can consume.
//
// Providers deliver one of two shapes: segment-level timings (a list of
// sentence-ish units with start/end) or word-level timings with opaque
// per-word speaker ids. Both become a Normalized value; word-level input
// additionally keeps the raw words so the diarizer can use the richer path.
package transcript

import (
	"fmt"
	"strings"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// DefaultWordGroupGapSeconds is the maximum silence between two consecutive
// words that still keeps them in the same synthesised segment.
const DefaultWordGroupGapSeconds = 0.5

// Normalized is the common representation of a transcription result.
// Segments are always populated; Words only when the provider attached
// per-word speaker ids.
type Normalized struct {
	FullText string
	Segments []types.Segment
	Words    []types.Word
}

// HasWords reports whether the word-level diarization path is available.
func (n *Normalized) HasWords() bool { return len(n.Words) > 0 }

// Normalize converts a raw provider result. Word-level results get segments
// synthesised from their word stream; segment-level results pass through with
// empty segments dropped. A result carrying neither text nor timings wraps
// types.ErrProviderContract.
func Normalize(res *stt.Result) (*Normalized, error) {
	if res == nil {
		return nil, fmt.Errorf("transcript: nil provider result: %w", types.ErrProviderContract)
	}

	n := &Normalized{FullText: CollapseWhitespace(res.Text)}

	if len(res.Words) > 0 {
		n.Words = res.Words
		n.Segments = GroupWords(res.Words, DefaultWordGroupGapSeconds)
	} else {
		for _, s := range res.Segments {
			text := CollapseWhitespace(s.Text)
			if text == "" {
				continue
			}
			n.Segments = append(n.Segments, types.Segment{Text: text, Start: s.Start, End: s.End})
		}
	}

	if n.FullText == "" {
		n.FullText = joinSegments(n.Segments)
	}
	if n.FullText == "" && len(n.Segments) == 0 {
		return nil, fmt.Errorf("transcript: provider result has no text, segments or words: %w", types.ErrProviderContract)
	}
	return n, nil
}

// GroupWords synthesises segments from a word stream: consecutive word
// entries stay in one segment while the speaker id holds and the inter-word
// gap is below gapSeconds. Punctuation entries attach to the previous word
// without a space; spacing entries are skipped.
func GroupWords(words []types.Word, gapSeconds float64) []types.Segment {
	var segments []types.Segment
	var b strings.Builder
	var start, end float64
	var speaker string
	open := false

	flush := func() {
		if !open {
			return
		}
		text := CollapseWhitespace(b.String())
		if text != "" {
			segments = append(segments, types.Segment{Text: text, Start: start, End: end})
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
			if open && (w.SpeakerID != speaker || w.Start-end >= gapSeconds) {
				flush()
			}
			if !open {
				start = w.Start
				speaker = w.SpeakerID
				open = true
			} else {
				b.WriteString(" ")
			}
			b.WriteString(strings.TrimSpace(w.Text))
			end = w.End
		}
	}
	flush()
	return segments
}

// Shift adds offset seconds to every timing. Used by the chunked driver to
// move a chunk's timings back onto the whole-recording clock.
func (n *Normalized) Shift(offset float64) {
	if offset == 0 {
		return
	}
	for i := range n.Segments {
		n.Segments[i].Start += offset
		n.Segments[i].End += offset
	}
	for i := range n.Words {
		n.Words[i].Start += offset
		n.Words[i].End += offset
	}
}

// Merge splices per-chunk results, already shifted onto the recording clock,
// into one transcript. Full texts join with single spaces; segments and words
// concatenate in order.
func Merge(parts []*Normalized) *Normalized {
	out := &Normalized{}
	var texts []string
	for _, p := range parts {
		if p == nil {
			continue
		}
		if p.FullText != "" {
			texts = append(texts, p.FullText)
		}
		out.Segments = append(out.Segments, p.Segments...)
		out.Words = append(out.Words, p.Words...)
	}
	out.FullText = strings.Join(texts, " ")
	return out
}

// FormatParagraphs renders the segments as display text, starting a new
// paragraph wherever the pause before a segment is at least gapSeconds and
// the previous segment ended a sentence.
func (n *Normalized) FormatParagraphs(gapSeconds float64) string {
	var b strings.Builder
	var prevEnd float64
	for i, s := range n.Segments {
		if i > 0 {
			if s.Start-prevEnd >= gapSeconds && endsSentence(n.Segments[i-1].Text) {
				b.WriteString("\n\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(s.Text)
		prevEnd = s.End
	}
	return b.String()
}

// CollapseWhitespace trims the string and folds internal whitespace runs to
// single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func joinSegments(segments []types.Segment) string {
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	return strings.Join(texts, " ")
}

func endsSentence(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	switch t[len(t)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
