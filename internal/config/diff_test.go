package config_test

import (
	"testing"

	"github.com/MrWong99/meetscribe/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Diarize: config.DiarizeConfig{DurationRatio: 1.5},
		Summary: config.SummaryConfig{Enabled: true, TokenBudget: 16000},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.DiarizeChanged {
		t.Error("expected DiarizeChanged=false for identical configs")
	}
	if d.SummaryChanged {
		t.Error("expected SummaryChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_DiarizeChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Diarize: config.DiarizeConfig{DurationRatio: 1.5}}
	new := &config.Config{Diarize: config.DiarizeConfig{DurationRatio: 2.0}}

	d := config.Diff(old, new)
	if !d.DiarizeChanged {
		t.Error("expected DiarizeChanged=true")
	}
	if d.SummaryChanged {
		t.Error("expected SummaryChanged=false")
	}
}

func TestDiff_SummaryPromptChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Summary: config.SummaryConfig{Prompts: config.PromptsConfig{System: "a"}}}
	new := &config.Config{Summary: config.SummaryConfig{Prompts: config.PromptsConfig{System: "b"}}}

	d := config.Diff(old, new)
	if !d.SummaryChanged {
		t.Error("expected SummaryChanged=true")
	}
	if d.DiarizeChanged {
		t.Error("expected DiarizeChanged=false")
	}
}

func TestDiff_ServerRewiringIgnored(t *testing.T) {
	t.Parallel()
	// Listen address changes need a restart and are not reported.
	old := &config.Config{Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{ListenAddr: ":9090", LogLevel: config.LogInfo}}

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.DiarizeChanged || d.SummaryChanged {
		t.Errorf("expected no hot-reloadable changes, got %+v", d)
	}
}
