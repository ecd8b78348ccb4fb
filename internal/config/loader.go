package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "deepgram", "whisper-native"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}

	for kind, entry := range map[string]ProviderEntry{
		"stt": cfg.Providers.STT,
		"llm": cfg.Providers.LLM,
	} {
		for i, fb := range entry.Fallbacks {
			validateProviderName(kind, fb.Name)
			if fb.Name == "" {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			}
			if len(fb.Fallbacks) > 0 {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d] must not nest further fallbacks", kind, i))
			}
		}
	}

	// Transcribe
	if cfg.Transcribe.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("transcribe.max_bytes %d must not be negative", cfg.Transcribe.MaxBytes))
	}
	if cfg.Transcribe.Workers < 0 {
		errs = append(errs, fmt.Errorf("transcribe.workers %d must not be negative", cfg.Transcribe.Workers))
	}

	// Diarize
	if cfg.Diarize.DurationRatio != 0 && cfg.Diarize.DurationRatio <= 1 {
		errs = append(errs, fmt.Errorf("diarize.duration_ratio %.2f must be greater than 1", cfg.Diarize.DurationRatio))
	}
	for _, gap := range []struct {
		name  string
		value float64
	}{
		{"diarize.min_utterance_seconds", cfg.Diarize.MinUtteranceSeconds},
		{"diarize.min_speaker_change_gap_seconds", cfg.Diarize.MinSpeakerChangeGapSeconds},
		{"diarize.segment_merge_gap_seconds", cfg.Diarize.SegmentMergeGapSeconds},
		{"diarize.word_merge_gap_seconds", cfg.Diarize.WordMergeGapSeconds},
		{"diarize.paragraph_break_gap_seconds", cfg.Diarize.ParagraphBreakGapSeconds},
	} {
		if gap.value < 0 {
			errs = append(errs, fmt.Errorf("%s %.2f must not be negative", gap.name, gap.value))
		}
	}

	// Summary
	if cfg.Summary.Enabled && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("summary.enabled requires providers.llm to be configured"))
	}
	if cfg.Summary.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("summary.token_budget %d must not be negative", cfg.Summary.TokenBudget))
	}
	if cfg.Summary.TokensPerChar < 0 {
		errs = append(errs, fmt.Errorf("summary.tokens_per_char %.2f must not be negative", cfg.Summary.TokensPerChar))
	}

	// Feed
	if cfg.Feed.URL != "" && !strings.HasPrefix(cfg.Feed.URL, "ws://") && !strings.HasPrefix(cfg.Feed.URL, "wss://") {
		errs = append(errs, fmt.Errorf("feed.url %q must use the ws:// or wss:// scheme", cfg.Feed.URL))
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; transcripts will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
