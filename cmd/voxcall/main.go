package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/harunnryd/voxcall/pkg/config"
	"github.com/harunnryd/voxcall/pkg/configutil"
	"github.com/harunnryd/voxcall/pkg/controller"
	"github.com/harunnryd/voxcall/pkg/generator"
	"github.com/harunnryd/voxcall/pkg/httpapi"
	"github.com/harunnryd/voxcall/pkg/llm"
	"github.com/harunnryd/voxcall/pkg/logging"
	"github.com/harunnryd/voxcall/pkg/metrics"
	"github.com/harunnryd/voxcall/pkg/providers/elevenlabs"
	"github.com/harunnryd/voxcall/pkg/providers/mock"
	"github.com/harunnryd/voxcall/pkg/providers/openai"
	"github.com/harunnryd/voxcall/pkg/providers/xtts"
	"github.com/harunnryd/voxcall/pkg/redact"
	"github.com/harunnryd/voxcall/pkg/resilience"
	"github.com/harunnryd/voxcall/pkg/runner"
	"github.com/harunnryd/voxcall/pkg/store/memory"
	"github.com/harunnryd/voxcall/pkg/tts"
	twiliotransport "github.com/harunnryd/voxcall/pkg/transports/twilio"
	"github.com/harunnryd/voxcall/pkg/voices"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the service configuration file")
	flag.Parse()

	runner.PrintBanner()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := logging.InitLogger(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	redact.SetEnabled(cfg.Privacy.RedactPII)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audioDir := filepath.Join(cfg.Server.DataDir, "audio")
	voicesDir := filepath.Join(cfg.Server.DataDir, "voices")
	for _, dir := range []string{audioDir, voicesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	obs, flush, err := buildObserver(cfg.Observability.MetricsPath)
	if err != nil {
		return err
	}
	defer flush()

	tcfg, err := twilioConfig(cfg)
	if err != nil {
		return err
	}

	artifacts := tts.ArtifactStore{
		Dir:     audioDir,
		BaseURL: publicBase(cfg) + "/static/audio",
	}

	adapter, err := buildLLM(cfg.Vendors.LLM, obs)
	if err != nil {
		return err
	}
	synth, err := buildTTS(cfg.Vendors.TTS, artifacts)
	if err != nil {
		return err
	}

	registry, err := voices.NewRegistry(voicesDir)
	if err != nil {
		return fmt.Errorf("voice registry: %w", err)
	}

	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := synth.Warm(warmCtx); err != nil {
			log.Warn("tts_warmup_failed",
				slog.String("provider", synth.Name()),
				slog.String("error", err.Error()))
		}
	}()

	gen := generator.New(adapter, generator.Config{
		ReplyTimeout:   time.Duration(cfg.Generator.ReplyTimeoutMS) * time.Millisecond,
		SummaryTimeout: time.Duration(cfg.Generator.SummaryTimeoutMS) * time.Millisecond,
	}, logging.NewComponentLogger(log, "generator"), obs)

	st := memory.New()
	ctrl := controller.New(
		controller.Config{SpeechURL: tcfg.SpeechURL},
		st,
		gen,
		synth,
		registry,
		twiliotransport.NewDialer(tcfg),
		logging.NewComponentLogger(log, "controller"),
		obs,
	)

	srv := httpapi.New(httpapi.Config{
		Addr:       cfg.Server.Addr,
		AnswerPath: tcfg.AnswerPath,
		SpeechPath: tcfg.SpeechPath,
		StatusPath: tcfg.StatusPath,
		AudioDir:   audioDir,
	}, ctrl, st, registry, synth, twiliotransport.NewValidator(tcfg), logging.NewComponentLogger(log, "httpapi"))

	log.Info("server_starting",
		slog.String("addr", cfg.Server.Addr),
		slog.String("llm", adapter.Name()),
		slog.String("tts", synth.Name()),
		slog.Bool("signature_validation", tcfg.AuthToken != ""))
	return srv.Start(ctx)
}

func publicBase(cfg config.Config) string {
	base := strings.TrimSpace(cfg.Server.PublicURL)
	if base == "" {
		return "http://localhost" + cfg.Server.Addr
	}
	base = strings.TrimPrefix(base, "https://")
	base = strings.TrimPrefix(base, "http://")
	return "https://" + strings.TrimRight(base, "/")
}

func twilioConfig(cfg config.Config) (twiliotransport.Config, error) {
	if cfg.Transports.Provider != "twilio" {
		return twiliotransport.Config{}, fmt.Errorf("unsupported transport provider %q", cfg.Transports.Provider)
	}
	var tcfg twiliotransport.Config
	if err := configutil.DecodeSettings(cfg.Transports.Settings, &tcfg); err != nil {
		return twiliotransport.Config{}, fmt.Errorf("twilio settings: %w", err)
	}
	if tcfg.PublicURL == "" {
		tcfg.PublicURL = cfg.Server.PublicURL
	}
	if tcfg.ServerAddr == "" {
		tcfg.ServerAddr = cfg.Server.Addr
	}
	return tcfg, nil
}

func buildObserver(path string) (metrics.Observer, func(), error) {
	if path == "" {
		return metrics.NoopObserver{}, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open metrics file: %w", err)
	}
	async := metrics.NewAsyncObserver(metrics.NewJSONLObserver(f), 256)
	return async, func() {
		async.Close()
		_ = f.Close()
	}, nil
}

func buildLLM(vendor config.VendorConfig, obs metrics.Observer) (llm.Adapter, error) {
	switch vendor.Provider {
	case "openai":
		var settings struct {
			APIKey  string `mapstructure:"api_key"`
			Model   string `mapstructure:"model"`
			BaseURL string `mapstructure:"base_url"`
		}
		if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
			return nil, fmt.Errorf("openai settings: %w", err)
		}
		if err := configutil.ValidateSettings(vendor.Settings, configutil.Schema{
			Required: []string{"api_key", "model"},
			Optional: []string{"base_url"},
		}); err != nil {
			return nil, fmt.Errorf("openai settings: %w", err)
		}
		adapter := openai.NewAdapter(settings.APIKey, settings.Model)
		if settings.BaseURL != "" {
			adapter.BaseURL = settings.BaseURL
		}
		breaker := resilience.NewCircuitBreaker(5, 30*time.Second)
		retried := llm.NewRetryAdapter(adapter, llm.RetryConfig{MaxAttempts: 2, Jitter: 0.2})
		wrapped := llm.NewCircuitBreakerAdapter(retried, breaker)
		wrapped.SetObserver(obs)
		return wrapped, nil
	case "mock":
		return mock.NewLLMAdapter(mock.LLMConfig{}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", vendor.Provider)
	}
}

func buildTTS(vendor config.VendorConfig, artifacts tts.ArtifactStore) (tts.Synthesizer, error) {
	switch vendor.Provider {
	case "xtts":
		var settings struct {
			BaseURL   string `mapstructure:"base_url"`
			TimeoutMS int    `mapstructure:"timeout_ms"`
		}
		if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
			return nil, fmt.Errorf("xtts settings: %w", err)
		}
		if err := configutil.ValidateSettings(vendor.Settings, configutil.Schema{
			Required: []string{"base_url"},
			Optional: []string{"timeout_ms"},
		}); err != nil {
			return nil, fmt.Errorf("xtts settings: %w", err)
		}
		return xtts.New(xtts.Config{
			BaseURL:   settings.BaseURL,
			Artifacts: artifacts,
			Timeout:   time.Duration(settings.TimeoutMS) * time.Millisecond,
		}), nil
	case "elevenlabs":
		var settings struct {
			APIKey     string `mapstructure:"api_key"`
			ModelID    string `mapstructure:"model_id"`
			SampleRate int    `mapstructure:"sample_rate"`
			TimeoutMS  int    `mapstructure:"timeout_ms"`
		}
		if err := configutil.DecodeSettings(vendor.Settings, &settings); err != nil {
			return nil, fmt.Errorf("elevenlabs settings: %w", err)
		}
		if err := configutil.ValidateSettings(vendor.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model_id", "sample_rate", "timeout_ms"},
		}); err != nil {
			return nil, fmt.Errorf("elevenlabs settings: %w", err)
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:     settings.APIKey,
			ModelID:    settings.ModelID,
			SampleRate: settings.SampleRate,
			Artifacts:  artifacts,
			Timeout:    time.Duration(settings.TimeoutMS) * time.Millisecond,
		}), nil
	case "mock":
		return mock.NewSynthesizer(mock.TTSConfig{Artifacts: artifacts, WriteFile: true}), nil
	default:
		return nil, fmt.Errorf("unsupported tts provider %q", vendor.Provider)
	}
}
