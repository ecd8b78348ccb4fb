// Package summary produces the short TL;DR of a diarized transcript through
// a chat-completion provider.
//
// Long transcripts cannot fit the provider's context, so the generator runs
// map-reduce: the formatted transcript is split at line boundaries into
// chunks under a character budget derived from the token budget, each chunk
// is summarised on its own, and the partial summaries are combined in one
// final call. Short transcripts go straight to the final prompt.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	"github.com/MrWong99/meetscribe/pkg/types"
)

const (
	defaultTokenBudget   = 16_000
	defaultTokensPerChar = 0.4

	// contextFillRatio keeps headroom for the prompt and the completion.
	contextFillRatio = 0.7

	completionTemperature = 0.3
	completionMaxTokens   = 300
)

// PromptBundle carries the prompt texts. Deployments serving non-English
// meetings supply their own bundle; the core does not hard-code a locale.
type PromptBundle struct {
	// System sets the assistant's role for every call.
	System string
	// Final asks for the TL;DR of a transcript that fits in one call.
	Final string
	// Intermediate asks for a partial summary of one transcript chunk.
	Intermediate string
	// Combine asks for the TL;DR of the joined partial summaries.
	Combine string
}

// DefaultPrompts returns the English prompt bundle.
func DefaultPrompts() PromptBundle {
	return PromptBundle{
		System:       "You are an assistant that writes extremely short meeting summaries.",
		Final:        "Write a 1-2 sentence TL;DR of the following meeting transcript. Reply with the summary only.",
		Intermediate: "Summarise the key points of the following meeting transcript excerpt in 2-3 sentences. Reply with the summary only.",
		Combine:      "The following are partial summaries of one meeting. Combine them into a single 1-2 sentence TL;DR. Reply with the summary only.",
	}
}

// Generator produces TL;DRs. Safe for concurrent use.
type Generator struct {
	provider      llm.Provider
	prompts       PromptBundle
	tokenBudget   int
	tokensPerChar float64
	logger        *slog.Logger
}

// Option is a functional option for Generator.
type Option func(*Generator)

// WithPrompts replaces the default English prompt bundle.
func WithPrompts(p PromptBundle) Option {
	return func(g *Generator) { g.prompts = p }
}

// WithTokenBudget sets the provider's context size in tokens.
func WithTokenBudget(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.tokenBudget = n
		}
	}
}

// WithTokensPerChar sets the tokens-per-character estimate used to convert
// the token budget into a character budget.
func WithTokensPerChar(k float64) Option {
	return func(g *Generator) {
		if k > 0 {
			g.tokensPerChar = k
		}
	}
}

// WithLogger sets the slog logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator around the given provider.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:      provider,
		prompts:       DefaultPrompts(),
		tokenBudget:   defaultTokenBudget,
		tokensPerChar: defaultTokensPerChar,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// FormatTranscript renders utterances as "speaker: text" lines, one per
// utterance, joined by newlines.
func FormatTranscript(us []types.Utterance) string {
	lines := make([]string, 0, len(us))
	for _, u := range us {
		lines = append(lines, fmt.Sprintf("%s: %s", u.Speaker, u.Text))
	}
	return strings.Join(lines, "\n")
}

// Generate produces the TL;DR for the given utterances. An empty transcript
// wraps types.ErrInvalidInput; provider failures surface unchanged so the
// caller can decide to drop the TL;DR.
func (g *Generator) Generate(ctx context.Context, us []types.Utterance) (string, error) {
	text := FormatTranscript(us)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("summary: empty transcript: %w", types.ErrInvalidInput)
	}

	budget := g.chunkBudget()
	if len(text) <= budget {
		return g.complete(ctx, g.prompts.Final, text)
	}

	chunks := splitLines(text, budget)
	g.logger.Debug("summarising in chunks", "chars", len(text), "chunk_budget", budget, "chunks", len(chunks))

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		partial, err := g.complete(ctx, g.prompts.Intermediate, chunk)
		if err != nil {
			return "", fmt.Errorf("summary: chunk %d: %w", i, err)
		}
		partials = append(partials, partial)
	}
	return g.complete(ctx, g.prompts.Combine, strings.Join(partials, "\n\n"))
}

// chunkBudget converts the token budget into characters, keeping headroom.
func (g *Generator) chunkBudget() int {
	return int(contextFillRatio * float64(g.tokenBudget) / g.tokensPerChar)
}

func (g *Generator) complete(ctx context.Context, prompt, text string) (string, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: g.prompts.System,
		Messages: []llm.Message{
			{Role: "user", Content: prompt + "\n\n" + text},
		},
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return clean(resp.Content), nil
}

// splitLines cuts text at line boundaries into pieces of at most budget
// characters. A single line longer than the budget becomes its own piece
// rather than being cut mid-line.
func splitLines(text string, budget int) []string {
	var chunks []string
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if b.Len() > 0 && b.Len()+1+len(line) > budget {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

// clean trims the completion and strips one pair of wrapping straight
// quotes, which chat models like to add around short answers.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
