package transcript

import (
	"errors"
	"testing"

	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/types"
)

func word(text string, start, end float64, speaker string) types.Word {
	return types.Word{Kind: types.KindWord, Text: text, Start: start, End: end, SpeakerID: speaker}
}

func punct(text string, at float64) types.Word {
	return types.Word{Kind: types.KindPunctuation, Text: text, Start: at, End: at}
}

func TestNormalize(t *testing.T) {
	t.Run("nil result", func(t *testing.T) {
		_, err := Normalize(nil)
		if !errors.Is(err, types.ErrProviderContract) {
			t.Errorf("error = %v, want ErrProviderContract", err)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		_, err := Normalize(&stt.Result{})
		if !errors.Is(err, types.ErrProviderContract) {
			t.Errorf("error = %v, want ErrProviderContract", err)
		}
	})

	t.Run("segment pass-through drops empties", func(t *testing.T) {
		res := &stt.Result{
			Text: "hello world  goodbye",
			Segments: []types.Segment{
				{Text: "hello world", Start: 0, End: 3},
				{Text: "   ", Start: 3, End: 3.5},
				{Text: "goodbye", Start: 3.5, End: 5},
			},
		}
		n, err := Normalize(res)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if n.HasWords() {
			t.Error("HasWords() = true, want false")
		}
		if len(n.Segments) != 2 {
			t.Fatalf("got %d segments, want 2: %+v", len(n.Segments), n.Segments)
		}
		if n.FullText != "hello world goodbye" {
			t.Errorf("FullText = %q, want collapsed whitespace", n.FullText)
		}
	})

	t.Run("word input keeps words and synthesises segments", func(t *testing.T) {
		res := &stt.Result{
			Text: "yes no maybe so",
			Words: []types.Word{
				word("yes", 0, 0.4, "spk_0"),
				word("no", 0.5, 0.9, "spk_0"),
				word("maybe", 1.0, 1.4, "spk_1"),
				word("so", 1.5, 1.9, "spk_1"),
			},
		}
		n, err := Normalize(res)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if !n.HasWords() {
			t.Fatal("HasWords() = false, want true")
		}
		if len(n.Segments) != 2 {
			t.Fatalf("got %d segments, want 2: %+v", len(n.Segments), n.Segments)
		}
		if n.Segments[0].Text != "yes no" || n.Segments[1].Text != "maybe so" {
			t.Errorf("segments = %+v", n.Segments)
		}
	})

	t.Run("full text derived from segments when absent", func(t *testing.T) {
		res := &stt.Result{Segments: []types.Segment{
			{Text: "hello", Start: 0, End: 1},
			{Text: "there", Start: 1, End: 2},
		}}
		n, err := Normalize(res)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if n.FullText != "hello there" {
			t.Errorf("FullText = %q, want %q", n.FullText, "hello there")
		}
	})
}

func TestGroupWords(t *testing.T) {
	t.Run("splits on speaker change", func(t *testing.T) {
		words := []types.Word{
			word("one", 0, 0.3, "a"),
			word("two", 0.4, 0.7, "b"),
		}
		segs := GroupWords(words, 0.5)
		if len(segs) != 2 {
			t.Fatalf("got %d segments, want 2", len(segs))
		}
	})

	t.Run("splits on long gap", func(t *testing.T) {
		words := []types.Word{
			word("one", 0, 0.3, "a"),
			word("two", 1.0, 1.3, "a"),
		}
		segs := GroupWords(words, 0.5)
		if len(segs) != 2 {
			t.Fatalf("got %d segments, want 2: %+v", len(segs), segs)
		}
	})

	t.Run("punctuation attaches without space", func(t *testing.T) {
		words := []types.Word{
			word("hello", 0, 0.3, "a"),
			punct(",", 0.3),
			word("world", 0.4, 0.7, "a"),
			punct(".", 0.7),
		}
		segs := GroupWords(words, 0.5)
		if len(segs) != 1 {
			t.Fatalf("got %d segments, want 1", len(segs))
		}
		if segs[0].Text != "hello, world." {
			t.Errorf("Text = %q, want %q", segs[0].Text, "hello, world.")
		}
	})

	t.Run("spacing entries are skipped", func(t *testing.T) {
		words := []types.Word{
			word("hello", 0, 0.3, "a"),
			{Kind: types.KindSpacing, Text: " ", Start: 0.3, End: 0.4},
			word("world", 0.4, 0.7, "a"),
		}
		segs := GroupWords(words, 0.5)
		if len(segs) != 1 || segs[0].Text != "hello world" {
			t.Errorf("segments = %+v, want one %q", segs, "hello world")
		}
	})

	t.Run("segment timings span first to last word", func(t *testing.T) {
		words := []types.Word{
			word("a", 1.0, 1.2, "x"),
			word("b", 1.3, 1.6, "x"),
		}
		segs := GroupWords(words, 0.5)
		if segs[0].Start != 1.0 || segs[0].End != 1.6 {
			t.Errorf("segment = %+v, want [1.0,1.6]", segs[0])
		}
	})
}

func TestShift(t *testing.T) {
	n := &Normalized{
		Segments: []types.Segment{{Text: "hi", Start: 1, End: 2}},
		Words:    []types.Word{word("hi", 1, 2, "a")},
	}
	n.Shift(300)
	if n.Segments[0].Start != 301 || n.Segments[0].End != 302 {
		t.Errorf("segment = %+v, want [301,302]", n.Segments[0])
	}
	if n.Words[0].Start != 301 || n.Words[0].End != 302 {
		t.Errorf("word = %+v, want [301,302]", n.Words[0])
	}
}

func TestMerge(t *testing.T) {
	a := &Normalized{FullText: "part one", Segments: []types.Segment{{Text: "part one", Start: 0, End: 2}}}
	b := &Normalized{FullText: "part two", Segments: []types.Segment{{Text: "part two", Start: 300, End: 302}}}
	m := Merge([]*Normalized{a, b})
	if m.FullText != "part one part two" {
		t.Errorf("FullText = %q", m.FullText)
	}
	if len(m.Segments) != 2 || m.Segments[1].Start != 300 {
		t.Errorf("segments = %+v", m.Segments)
	}
}

func TestFormatParagraphs(t *testing.T) {
	t.Run("paragraph break needs gap and terminal punctuation", func(t *testing.T) {
		n := &Normalized{Segments: []types.Segment{
			{Text: "First thought.", Start: 0, End: 2},
			{Text: "Second thought", Start: 3, End: 5}, // 1s gap after "."
			{Text: "continues here", Start: 5.1, End: 7},
		}}
		got := n.FormatParagraphs(0.5)
		want := "First thought.\n\nSecond thought continues here"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("gap without punctuation joins with space", func(t *testing.T) {
		n := &Normalized{Segments: []types.Segment{
			{Text: "trailing off", Start: 0, End: 2},
			{Text: "and resuming", Start: 4, End: 6},
		}}
		if got := n.FormatParagraphs(0.5); got != "trailing off and resuming" {
			t.Errorf("got %q", got)
		}
	})
}
