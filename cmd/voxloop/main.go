// Command voxloop runs a live voice conversation: audio in, recognized
// speech to a language model, synthesized reply audio out.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxloop/internal/config"
	"github.com/MrWong99/voxloop/internal/health"
	"github.com/MrWong99/voxloop/internal/observe"
	"github.com/MrWong99/voxloop/internal/pipeline"
	"github.com/MrWong99/voxloop/internal/resilience"
	"github.com/MrWong99/voxloop/internal/transcriptlog"
	"github.com/MrWong99/voxloop/pkg/audio"
	"github.com/MrWong99/voxloop/pkg/provider/llm"
	"github.com/MrWong99/voxloop/pkg/provider/llm/anyllm"
	oainative "github.com/MrWong99/voxloop/pkg/provider/llm/openai"
	"github.com/MrWong99/voxloop/pkg/provider/stt"
	sttcartesia "github.com/MrWong99/voxloop/pkg/provider/stt/cartesia"
	"github.com/MrWong99/voxloop/pkg/provider/stt/whisper"
	"github.com/MrWong99/voxloop/pkg/provider/tts"
	ttscartesia "github.com/MrWong99/voxloop/pkg/provider/tts/cartesia"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxloop: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxloop: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxloop starting",
		"config", *configPath,
		"input", cfg.Audio.InputFile,
		"output", cfg.Audio.OutputFile,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxloop"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	sttProvider, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to create stt provider", "name", cfg.Providers.STT.Name, "err", err)
		return 1
	}
	llmProvider, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	ttsProvider, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to create tts provider", "name", cfg.Providers.TTS.Name, "err", err)
		return 1
	}
	slog.Info("providers created",
		"stt", cfg.Providers.STT.Name,
		"llm", cfg.Providers.LLM.Name,
		"tts", cfg.Providers.TTS.Name,
	)

	// ── Transcript store (optional) ───────────────────────────────────────────
	var transcript pipeline.TranscriptSink
	dbCheck := health.Checker{Name: "transcript-db", Check: func(context.Context) error { return nil }}
	if dsn := cfg.Transcript.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect transcript store", "err", err)
			return 1
		}
		defer pool.Close()

		sessionID := time.Now().UTC().Format("20060102T150405Z")
		store := transcriptlog.NewStore(pool, sessionID)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to migrate transcript store", "err", err)
			return 1
		}
		transcript = store
		dbCheck.Check = pool.Ping
		slog.Info("transcript store ready", "session", sessionID)
	}

	// ── HTTP server: metrics and health ───────────────────────────────────────
	running := health.NewFlag("pipeline")
	if addr := cfg.Server.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(running.Checker(), dbCheck).Register(mux)

		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http server shutdown error", "err", err)
			}
		}()
		slog.Info("http server listening", "addr", addr)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	source := audio.NewFileSource(cfg.Audio.InputFile,
		audio.WithFrameDuration(cfg.Audio.FrameDuration.Std()),
		audio.WithRealtime(cfg.Audio.Realtime),
		audio.WithSourceLogger(logger),
	)
	sink := audio.NewFileSink(cfg.Audio.OutputFile, logger)

	p, err := pipeline.New(pipeline.Config{
		Source: source,
		Sink:   sink,
		STT:    sttProvider,
		LLM:    llmProvider,
		TTS:    ttsProvider,
		Voice: tts.VoiceProfile{
			ID:          cfg.Voice.ID,
			Name:        cfg.Voice.Name,
			Provider:    cfg.Providers.TTS.Name,
			SpeedFactor: cfg.Voice.SpeedFactor,
		},
		CaptureRate:    cfg.Audio.CaptureRate,
		Language:       cfg.Pipeline.Language,
		SilenceTimeout: cfg.Pipeline.SilenceTimeout.Std(),
		SystemPrompt:   cfg.Pipeline.SystemPrompt,
		Temperature:    cfg.Pipeline.Temperature,
		MaxTokens:      cfg.Pipeline.MaxTokens,
		Retry:          resilience.RetryConfig{Name: "llm completion", MaxRetries: cfg.Pipeline.MaxRetries},
		Transcript:     transcript,
		Playback: []pipeline.PlaybackOption{
			pipeline.WithPlaybackRate(cfg.Audio.PlaybackRate),
			pipeline.WithMinBuffer(cfg.Pipeline.MinBufferSamples),
		},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		slog.Error("failed to assemble pipeline", "err", err)
		return 1
	}

	slog.Info("conversation running — press Ctrl+C to stop")
	running.Set(true)
	err = p.Run(ctx)
	running.Set(false)

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("pipeline error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	language := cfg.Pipeline.Language
	captureRate := cfg.Audio.CaptureRate

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("cartesia", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []sttcartesia.Option{
			sttcartesia.WithLanguage(language),
			sttcartesia.WithSampleRate(captureRate),
		}
		if entry.Model != "" {
			opts = append(opts, sttcartesia.WithModel(entry.Model))
		}
		return sttcartesia.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		opts := []whisper.Option{
			whisper.WithLanguage(language),
			whisper.WithSampleRate(captureRate),
		}
		return whisper.New(modelPath, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
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

	// openai-native bypasses the any-llm bridge and talks to the OpenAI SDK
	// directly, for features the bridge does not expose.
	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oainative.Option
		if entry.BaseURL != "" {
			opts = append(opts, oainative.WithBaseURL(entry.BaseURL))
		}
		return oainative.New(entry.APIKey, entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("cartesia", func(entry config.ProviderEntry) (tts.Provider, error) {
		opts := []ttscartesia.Option{ttscartesia.WithLanguage(language)}
		if entry.Model != "" {
			opts = append(opts, ttscartesia.WithModel(entry.Model))
		}
		if cfg.Audio.PlaybackRate != 0 {
			opts = append(opts, ttscartesia.WithOutputFormat(cfg.Audio.PlaybackRate, "pcm_f32le"))
		}
		return ttscartesia.New(entry.APIKey, opts...)
	})
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
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
