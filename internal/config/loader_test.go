package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/meetscribe/internal/config"
)

func TestValidate_SummaryRequiresLLM(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
summary:
  enabled: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for summary without llm provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.llm") {
		t.Errorf("error should mention providers.llm, got: %v", err)
	}
}

func TestValidate_SummaryWithLLMIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
    api_key: sk-test
  llm:
    name: anthropic
    api_key: sk-ant
summary:
  enabled: true
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Summary.Enabled {
		t.Error("summary.enabled: got false, want true")
	}
}

func TestValidate_FeedURLScheme(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
feed:
  url: https://recorder.example.com/activity
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for non-websocket feed url, got nil")
	}
	if !strings.Contains(err.Error(), "feed.url") {
		t.Errorf("error should mention feed.url, got: %v", err)
	}
}

func TestValidate_NegativeSummaryBudget(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
summary:
  token_budget: -100
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative token_budget, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
transcribe:
  workers: -2
diarize:
  duration_ratio: 0.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation errors, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"log_level", "workers", "duration_ratio", "providers.stt.name"} {
		if !strings.Contains(msg, want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_FallbackNameRequired(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
    fallbacks:
      - model: whisper-1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for fallback without name, got nil")
	}
	if !strings.Contains(err.Error(), "providers.stt.fallbacks[0].name") {
		t.Errorf("error should mention providers.stt.fallbacks[0].name, got: %v", err)
	}
}

func TestValidate_NestedFallbacksRejected(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
  llm:
    name: openai
    fallbacks:
      - name: anthropic
        fallbacks:
          - name: ollama
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for nested fallbacks, got nil")
	}
	if !strings.Contains(err.Error(), "must not nest") {
		t.Errorf("error should mention nesting, got: %v", err)
	}
}

func TestValidate_FallbacksValid(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: openai
    fallbacks:
      - name: deepgram
        api_key: dg-test
      - name: whisper-native
        options:
          model_path: /models/ggml-base.bin
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Providers.STT.Fallbacks) != 2 {
		t.Fatalf("fallbacks: got %d, want 2", len(cfg.Providers.STT.Fallbacks))
	}
	if cfg.Providers.STT.Fallbacks[0].Name != "deepgram" {
		t.Errorf("fallbacks[0].name = %q, want deepgram", cfg.Providers.STT.Fallbacks[0].Name)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	stt, ok := config.ValidProviderNames["stt"]
	if !ok {
		t.Fatal("stt provider names missing")
	}
	for _, want := range []string{"openai", "deepgram", "whisper-native"} {
		if !slices.Contains(stt, want) {
			t.Errorf("stt names should contain %q, got %v", want, stt)
		}
	}

	llm, ok := config.ValidProviderNames["llm"]
	if !ok {
		t.Fatal("llm provider names missing")
	}
	for _, want := range []string{"openai", "anthropic", "ollama"} {
		if !slices.Contains(llm, want) {
			t.Errorf("llm names should contain %q, got %v", want, llm)
		}
	}
}
