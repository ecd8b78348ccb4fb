// Command meetscribe turns a finished meeting recording into a diarized
// transcript with an optional TL;DR.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/meetscribe/internal/config"
	"github.com/MrWong99/meetscribe/internal/diarize"
	"github.com/MrWong99/meetscribe/internal/feed"
	"github.com/MrWong99/meetscribe/internal/health"
	"github.com/MrWong99/meetscribe/internal/observe"
	"github.com/MrWong99/meetscribe/internal/pipeline"
	"github.com/MrWong99/meetscribe/internal/resilience"
	"github.com/MrWong99/meetscribe/internal/store"
	pgstore "github.com/MrWong99/meetscribe/internal/store/postgres"
	"github.com/MrWong99/meetscribe/internal/summary"
	"github.com/MrWong99/meetscribe/internal/transcribe"
	"github.com/MrWong99/meetscribe/pkg/audio"
	"github.com/MrWong99/meetscribe/pkg/provider/llm"
	"github.com/MrWong99/meetscribe/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/meetscribe/pkg/provider/llm/openai"
	"github.com/MrWong99/meetscribe/pkg/provider/stt"
	"github.com/MrWong99/meetscribe/pkg/provider/stt/deepgram"
	oastt "github.com/MrWong99/meetscribe/pkg/provider/stt/openai"
	"github.com/MrWong99/meetscribe/pkg/provider/stt/whisper"
	"github.com/MrWong99/meetscribe/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "path to the recorded audio file (.mp3 or .wav)")
	activityPath := flag.String("activity", "", "path to the speaker-activity JSON file (ignored when feed.url is set)")
	meetingName := flag.String("meeting", "", "human-readable meeting name")
	startStr := flag.String("start", "", "recording start as RFC 3339 (default: audio file modification time minus duration)")
	outPath := flag.String("out", "", "write the transcript JSON here instead of stdout")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "meetscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "meetscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("meetscribe starting",
		"config", *configPath,
		"audio", *audioPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Config hot-reload ─────────────────────────────────────────────────────
	// Long transcriptions and server mode outlive config edits. The log level
	// applies immediately; everything else waits for the next run.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.DiarizeChanged {
			slog.Info("diarize settings changed on disk, they apply to the next run")
		}
		if d.SummaryChanged {
			slog.Info("summary settings changed on disk, they apply to the next run")
		}
	})
	if err != nil {
		slog.Warn("config hot-reload unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	if *audioPath == "" {
		fmt.Fprintln(os.Stderr, "meetscribe: -audio is required")
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "meetscribe"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Metrics / health endpoint (optional) ──────────────────────────────────
	// The endpoint comes up before the providers so /metrics is scrapeable
	// from the start; /readyz stays 503 until the providers are constructed.
	sttReady, llmReady := func() {}, func() {}
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		var checks []health.Checker
		checks, sttReady, llmReady = readinessChecks(cfg)
		srv = newHTTPServer(cfg, metrics, checks)
		go func() {
			var err error
			if cfg.Server.TLS != nil {
				err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.Server.ListenAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttProvider, err := buildSTT(reg, cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to create stt provider", "name", cfg.Providers.STT.Name, "err", err)
		return 1
	}
	if c, ok := sttProvider.(interface{ Close() error }); ok {
		defer c.Close()
	}
	sttReady()
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name,
		"fallbacks", len(cfg.Providers.STT.Fallbacks))

	var llmProvider llm.Provider
	if cfg.Summary.Enabled {
		llmProvider, err = buildLLM(reg, cfg.Providers.LLM)
		if err != nil {
			slog.Error("failed to create llm provider", "name", cfg.Providers.LLM.Name, "err", err)
			return 1
		}
		llmReady()
		slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name,
			"fallbacks", len(cfg.Providers.LLM.Fallbacks))
	}

	// ── Assemble the pipeline ─────────────────────────────────────────────────
	p := pipeline.New(
		newDriver(cfg, sttProvider),
		pipelineOptions(cfg, llmProvider, metrics)...,
	)

	// ── Inputs ────────────────────────────────────────────────────────────────
	clip, err := loadClip(*audioPath)
	if err != nil {
		slog.Error("failed to load audio", "path", *audioPath, "err", err)
		return 1
	}

	duration, err := audio.Probe(clip)
	if err != nil {
		slog.Warn("could not probe audio duration", "err", err)
	}

	start, err := recordingStart(*startStr, *audioPath, duration)
	if err != nil {
		slog.Error("invalid -start", "err", err)
		return 1
	}

	activity, err := loadActivity(ctx, cfg, *activityPath, metrics)
	if err != nil {
		slog.Error("failed to load activity log", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	result, err := p.Run(ctx, pipeline.Input{
		Clip:           clip,
		RecordingStart: start,
		Duration:       duration,
		Activity:       activity,
		MeetingName:    *meetingName,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("cancelled")
			return 130
		}
		slog.Error("pipeline failed", "err", err)
		return 1
	}

	// ── Persist (optional) ────────────────────────────────────────────────────
	if cfg.Store.PostgresDSN != "" {
		if err := persist(ctx, cfg.Store.PostgresDSN, store.Recording{
			MeetingName: *meetingName,
			StartedAt:   start,
			Duration:    duration,
			Transcript:  *result,
		}); err != nil {
			slog.Warn("failed to persist transcript", "err", err)
		}
	}

	// ── Output ────────────────────────────────────────────────────────────────
	if err := writeResult(*outPath, result); err != nil {
		slog.Error("failed to write result", "err", err)
		return 1
	}

	slog.Info("done",
		"meeting", *meetingName,
		"utterances", len(result.Utterances),
		"tldr", result.TLDR != nil,
	)
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyLLMProviders are the chat-completion backends served through the any-llm
// multiplexer. They share the same pattern: optional APIKey + optional BaseURL.
var anyLLMProviders = []string{"anthropic", "gemini", "deepseek", "mistral", "groq"}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if optBool(entry.Options, "word_timestamps") {
			opts = append(opts, oastt.WithWordTimestamps(true))
		}
		return oastt.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if mt := optString(entry.Options, "mime_type"); mt != "" {
			opts = append(opts, deepgram.WithMimeType(mt))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range anyLLMProviders {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// buildSTT creates the configured STT provider, wrapping it in a failover
// group when fallbacks are declared.
func buildSTT(reg *config.Registry, entry config.ProviderEntry) (stt.Provider, error) {
	primary, err := reg.CreateSTT(entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}
	fb := resilience.NewSTTFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fbe := range entry.Fallbacks {
		p, err := reg.CreateSTT(fbe)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fbe.Name, err)
		}
		fb.AddFallback(fbe.Name, p)
	}
	return fb, nil
}

// buildLLM creates the configured LLM provider, wrapping it in a failover
// group when fallbacks are declared.
func buildLLM(reg *config.Registry, entry config.ProviderEntry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, err
	}
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}
	fb := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fbe := range entry.Fallbacks {
		p, err := reg.CreateLLM(fbe)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fbe.Name, err)
		}
		fb.AddFallback(fbe.Name, p)
	}
	return fb, nil
}

// newDriver builds the chunked transcription driver from config.
func newDriver(cfg *config.Config, provider stt.Provider) *transcribe.Driver {
	var opts []transcribe.Option
	if cfg.Transcribe.MaxBytes > 0 {
		opts = append(opts, transcribe.WithMaxBytes(cfg.Transcribe.MaxBytes))
	}
	if cfg.Transcribe.Workers > 0 {
		opts = append(opts, transcribe.WithWorkers(cfg.Transcribe.Workers))
	}
	if cfg.Transcribe.Language != "" {
		opts = append(opts, transcribe.WithLanguage(cfg.Transcribe.Language))
	}
	if cfg.Transcribe.Prompt != "" {
		opts = append(opts, transcribe.WithPrompt(cfg.Transcribe.Prompt))
	}
	return transcribe.New(provider, opts...)
}

// pipelineOptions assembles the pipeline options from config.
func pipelineOptions(cfg *config.Config, llmProvider llm.Provider, metrics *observe.Metrics) []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithDiarizeConfig(diarizeConfig(cfg)),
	}
	if cfg.Diarize.ParagraphBreakGapSeconds > 0 {
		opts = append(opts, pipeline.WithParagraphGap(cfg.Diarize.ParagraphBreakGapSeconds))
	}
	if cfg.Diarize.CanonicalizeNames {
		opts = append(opts, pipeline.WithRosterCanonicalization())
	}
	if llmProvider != nil {
		var sumOpts []summary.Option
		if cfg.Summary.TokenBudget > 0 {
			sumOpts = append(sumOpts, summary.WithTokenBudget(cfg.Summary.TokenBudget))
		}
		if cfg.Summary.TokensPerChar > 0 {
			sumOpts = append(sumOpts, summary.WithTokensPerChar(cfg.Summary.TokensPerChar))
		}
		if p := promptBundle(cfg.Summary.Prompts); p != (summary.PromptBundle{}) {
			sumOpts = append(sumOpts, summary.WithPrompts(p))
		}
		opts = append(opts, pipeline.WithSummariser(summary.New(llmProvider, sumOpts...)))
	}
	return opts
}

// diarizeConfig maps the YAML diarize block onto the assigner's config,
// leaving zero values to the built-in defaults.
func diarizeConfig(cfg *config.Config) diarize.Config {
	return diarize.Config{
		SpeakerOffsetSeconds:       cfg.Diarize.SpeakerOffsetSeconds,
		DurationRatio:              cfg.Diarize.DurationRatio,
		MinUtteranceSeconds:        cfg.Diarize.MinUtteranceSeconds,
		MinSpeakerChangeGapSeconds: cfg.Diarize.MinSpeakerChangeGapSeconds,
		SegmentMergeGapSeconds:     cfg.Diarize.SegmentMergeGapSeconds,
		WordMergeGapSeconds:        cfg.Diarize.WordMergeGapSeconds,
		ForceSegmentPath:           cfg.Diarize.ForceSegmentPath,
	}
}

// promptBundle maps the YAML prompts block onto the summariser's bundle.
// Empty fields keep the built-in English defaults.
func promptBundle(p config.PromptsConfig) summary.PromptBundle {
	defaults := summary.DefaultPrompts()
	out := summary.PromptBundle{}
	changed := false
	set := func(dst *string, v, def string) {
		if v != "" {
			*dst = v
			changed = true
		} else {
			*dst = def
		}
	}
	set(&out.System, p.System, defaults.System)
	set(&out.Final, p.Final, defaults.Final)
	set(&out.Intermediate, p.Intermediate, defaults.Intermediate)
	set(&out.Combine, p.Combine, defaults.Combine)
	if !changed {
		return summary.PromptBundle{}
	}
	return out
}

// ── HTTP endpoint ─────────────────────────────────────────────────────────────

// readinessChecks builds the /readyz checkers: construction gates that run()
// marks once the providers exist, plus a store connectivity probe when
// persistence is configured.
func readinessChecks(cfg *config.Config) (checks []health.Checker, sttReady, llmReady func()) {
	var sttCheck health.Checker
	sttCheck, sttReady = health.Configured("stt_provider", errors.New("stt provider not constructed"))
	checks = append(checks, sttCheck)

	llmReady = func() {}
	if cfg.Summary.Enabled {
		var llmCheck health.Checker
		llmCheck, llmReady = health.Configured("llm_provider", errors.New("llm provider not constructed"))
		checks = append(checks, llmCheck)
	}

	if dsn := cfg.Store.PostgresDSN; dsn != "" {
		checks = append(checks, health.Checker{
			Name: "store",
			Check: func(ctx context.Context) error {
				st, err := pgstore.NewStore(ctx, dsn)
				if err != nil {
					return err
				}
				st.Close()
				return nil
			},
		})
	}
	return checks, sttReady, llmReady
}

// newHTTPServer builds the /metrics + health endpoint with request metrics.
func newHTTPServer(cfg *config.Config, metrics *observe.Metrics, checks []health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checks...).Register(mux)

	return &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ── Inputs ────────────────────────────────────────────────────────────────────

// loadClip reads the audio file and wraps it in a Clip, deriving the
// container format from the file extension.
func loadClip(path string) (audio.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Clip{}, err
	}
	format := audio.Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if !format.IsValid() {
		return audio.Clip{}, fmt.Errorf("unsupported audio format %q (want .mp3 or .wav)", filepath.Ext(path))
	}
	return audio.Clip{Data: data, Format: format}, nil
}

// recordingStart resolves the recording start instant: the -start flag when
// given, otherwise the audio file's modification time minus the recording
// duration.
func recordingStart(flagValue, audioPath string, duration time.Duration) (time.Time, error) {
	if flagValue != "" {
		start, err := time.Parse(time.RFC3339, flagValue)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %q: %w", flagValue, err)
		}
		return start.UTC(), nil
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime().Add(-duration).UTC(), nil
}

// loadActivity reads the speaker-activity log: from the live feed when
// feed.url is configured, otherwise from the -activity JSON file. No source
// means an empty log; everything becomes SpeakerUnknown.
func loadActivity(ctx context.Context, cfg *config.Config, path string, metrics *observe.Metrics) ([]types.ActivityEvent, error) {
	if cfg.Feed.URL != "" {
		var opts []feed.Option
		if cfg.Feed.Token != "" {
			opts = append(opts, feed.WithToken(cfg.Feed.Token))
		}
		opts = append(opts, feed.WithMetrics(metrics))
		return feed.New(cfg.Feed.URL, opts...).Collect(ctx)
	}

	if path == "" {
		slog.Warn("no activity source configured — all speakers will be unknown")
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []types.ActivityEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	for range events {
		metrics.RecordActivityEvent(ctx)
	}
	return events, nil
}

// ── Outputs ───────────────────────────────────────────────────────────────────

// persist saves the finished recording to PostgreSQL.
func persist(ctx context.Context, dsn string, rec store.Recording) error {
	st, err := pgstore.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Save(ctx, rec)
	if err != nil {
		return err
	}
	slog.Info("transcript persisted", "id", id)
	return nil
}

// writeResult marshals the transcript as indented JSON to path or stdout.
func writeResult(path string, result *types.DiarizedTranscript) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger around a LevelVar so a config reload
// can retune the level mid-run.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optBool extracts a bool value from a provider Options map.
func optBool(opts map[string]any, key string) bool {
	if opts == nil {
		return false
	}
	v, ok := opts[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
