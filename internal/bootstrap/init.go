// Package bootstrap constructs the process-scoped dependency graph at
// startup: model capabilities, the transcription pipeline, the resource
// supervisor, the session registry, and the ambient HTTP/middleware stack.
// Every dependency is built once here and passed by reference to request
// handlers — no package-level singletons.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"asr_server/config"
	"asr_server/internal/audio"
	"asr_server/internal/buffer"
	"asr_server/internal/capability"
	"asr_server/internal/logger"
	"asr_server/internal/middleware"
	"asr_server/internal/pipeline"
	"asr_server/internal/resource"
	"asr_server/internal/session"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AppDependencies holds all application dependencies. This is the root
// dependency container passed to the router and HTTP handlers.
type AppDependencies struct {
	Config        *config.Config
	Registry      *session.Registry
	Validator     *audio.Validator
	Pipeline      *pipeline.Pipeline
	Supervisor    *resource.Supervisor
	Metrics       *resource.Metrics
	MeterProvider *sdkmetric.MeterProvider
	RateLimiter   *middleware.RateLimiter
	HotReloadMgr  *config.HotReloadManager
}

// buildVAD selects the VAD capability implementation from configuration.
// "silero_vad" is the primary sherpa-onnx-go-backed implementation; any
// other configured provider (config validation admits only "ten_vad")
// resolves to the onnxruntime_go-backed alternate, demonstrating that the pipeline's
// semantics never change across capability implementations (spec §9).
func buildVAD(cfg *config.Config) (capability.VAD, error) {
	if cfg.VAD.Provider == "silero_vad" {
		if _, err := os.Stat(cfg.VAD.SileroVAD.ModelPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("silero VAD model file not found: %s", cfg.VAD.SileroVAD.ModelPath)
		}
		return capability.NewSileroVAD(capability.SileroVADConfig{
			ModelPath:          cfg.VAD.SileroVAD.ModelPath,
			Threshold:          cfg.VAD.SileroVAD.Threshold,
			MinSilenceDuration: cfg.VAD.SileroVAD.MinSilenceDuration,
			MinSpeechDuration:  cfg.VAD.SileroVAD.MinSpeechDuration,
			MaxSpeechDuration:  cfg.VAD.SileroVAD.MaxSpeechDuration,
			WindowSize:         cfg.VAD.SileroVAD.WindowSize,
			SampleRate:         cfg.Audio.SampleRate,
			BufferSizeSeconds:  cfg.VAD.SileroVAD.BufferSizeSeconds,
		})
	}

	return capability.NewOnnxVAD(capability.OnnxVADConfig{
		ModelPath:     cfg.VAD.SileroVAD.ModelPath,
		Threshold:     float64(cfg.VAD.Threshold),
		MinSpeechSecs: float64(cfg.VAD.SileroVAD.MinSpeechDuration),
		SampleRate:    cfg.Audio.SampleRate,
	})
}

func buildRecognizer(cfg *config.Config) (capability.Recognizer, error) {
	return capability.NewSherpaRecognizer(capability.RecognizerConfig{
		ModelPath:                   cfg.Recognition.ModelPath,
		TokensPath:                  cfg.Recognition.TokensPath,
		Language:                    cfg.Recognition.Language,
		SampleRate:                  cfg.Audio.SampleRate,
		FeatureDim:                  cfg.Audio.FeatureDim,
		NumThreads:                  cfg.Recognition.NumThreads,
		Provider:                    cfg.Recognition.Provider,
		Debug:                       cfg.Recognition.Debug,
		UseInverseTextNormalization: cfg.Recognition.UseInverseTextNormalization,
	})
}

func buildAligner(cfg *config.Config) capability.Aligner {
	if !cfg.Align.Enabled {
		return nil
	}
	return capability.NewHeuristicAligner()
}

func buildDiarizer(cfg *config.Config) capability.Diarizer {
	return capability.NewMatchrDiarizer(cfg.Diarize.DefaultSpeaker, cfg.Diarize.SimilarityThreshold)
}

func buildCorrector(cfg *config.Config) capability.Corrector {
	if !cfg.Correct.Enabled {
		return nil
	}
	timeout := time.Duration(cfg.Correct.TimeoutSeconds) * time.Second
	return capability.NewOpenAICorrector(cfg.Correct.Endpoint, cfg.Correct.Model, timeout)
}

// InitApp initializes all core components and returns the dependency
// container. configPath is the file the hot-reload manager watches for
// changes; it may differ from the path used to originally load cfg only in
// tests.
func InitApp(cfg *config.Config, configPath string) (*AppDependencies, error) {
	logger.Info("initializing_components")

	hotReloadMgr := config.NewHotReloadManager(cfg, configPath)
	hotReloadMgr.OnChange(func(newCfg *config.Config) {
		logger.SetLevel(newCfg.Logging.Level)
		logger.Info("configuration_reloaded",
			"log_level", newCfg.Logging.Level,
			"vad_provider", newCfg.VAD.Provider,
			"rate_limit_enabled", newCfg.RateLimit.Enabled,
		)
	})
	if err := hotReloadMgr.StartWatching(); err != nil {
		logger.Warn("failed_to_start_config_file_watching", "error", err)
	}

	if err := resource.InitSentry(os.Getenv("SENTRY_DSN"), os.Getenv("SENTRY_ENVIRONMENT"), os.Getenv("SENTRY_RELEASE")); err != nil {
		logger.Warn("sentry_init_failed", "error", err)
	}

	meterProvider, _, err := resource.InitMeterProvider()
	if err != nil {
		logger.Error("failed_to_init_meter_provider", "error", err)
		return nil, fmt.Errorf("failed to init meter provider: %w", err)
	}
	metrics, err := resource.NewMetrics(meterProvider)
	if err != nil {
		logger.Error("failed_to_init_metrics", "error", err)
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	// The recognizer and VAD models are independent, disk-bound loads; warm
	// them up concurrently.
	logger.Info("initializing_recognizer_and_vad", "vad_provider", cfg.VAD.Provider)
	var recognizer capability.Recognizer
	var vad capability.VAD
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		r, err := buildRecognizer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize recognizer: %w", err)
		}
		recognizer = r
		return nil
	})
	g.Go(func() error {
		v, err := buildVAD(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize vad: %w", err)
		}
		vad = v
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("failed_to_initialize_model_capabilities", "error", err)
		return nil, err
	}

	aligner := buildAligner(cfg)
	diarizer := buildDiarizer(cfg)
	corrector := buildCorrector(cfg)

	p := pipeline.New(vad, recognizer, aligner, diarizer, corrector, cfg.Recognition.Language)

	supervisor := resource.New(
		time.Duration(cfg.Resource.OOMCacheTTLSeconds)*time.Second,
		time.Duration(cfg.Resource.MemoryLogIntervalSeconds)*time.Second,
		metrics,
	)

	validator := audio.New(cfg.Audio.SampleRate, buffer.MaxBufferDurationSeconds)

	registry := session.NewRegistry()

	logger.Info("initializing_rate_limiter",
		"requests_per_second", cfg.RateLimit.RequestsPerSecond,
		"max_connections", cfg.RateLimit.MaxConnections,
	)
	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.Enabled,
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.BurstSize,
		cfg.RateLimit.MaxConnections,
	)

	logger.Info("all_components_initialized_successfully")
	return &AppDependencies{
		Config:        cfg,
		Registry:      registry,
		Validator:     validator,
		Pipeline:      p,
		Supervisor:    supervisor,
		Metrics:       metrics,
		MeterProvider: meterProvider,
		RateLimiter:   rateLimiter,
		HotReloadMgr:  hotReloadMgr,
	}, nil
}
