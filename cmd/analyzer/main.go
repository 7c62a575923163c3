package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "bjjanalyzer/internal/api/http"
	"bjjanalyzer/internal/app"
	"bjjanalyzer/internal/chapters"
	"bjjanalyzer/internal/dictionary"
	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
	"bjjanalyzer/internal/filename"
	"bjjanalyzer/internal/llm"
	"bjjanalyzer/internal/media/ffmpeg"
	"bjjanalyzer/internal/media/ffprobe"
	"bjjanalyzer/internal/metrics"
	"bjjanalyzer/internal/pipeline"
	"bjjanalyzer/internal/state"
	"bjjanalyzer/internal/telemetry"
	"bjjanalyzer/internal/transcribe"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "bjj-analyzer")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "bjj-analyzer"),
		slog.String("videoDir", cfg.VideoDir),
		slog.Int("workers", cfg.Workers),
		slog.Bool("llmCorrection", cfg.EnableCorrection),
		slog.Bool("audioEnhancement", cfg.EnableEnhancement),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat))

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := state.Open(filepath.Join(cfg.VideoDir, cfg.StateDirName), logger)
	if err != nil {
		logger.Error("state store open failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := store.Cleanup(); err != nil {
		logger.Warn("state cleanup failed", slog.String("error", err.Error()))
	}

	// RESET_STAGES=llm_correction,chapter_detection clears those stages from
	// every sidecar and exits; an empty value ("all") deletes the records.
	if raw, ok := os.LookupEnv("RESET_STAGES"); ok {
		runReset(cfg, store, logger, raw)
		return
	}

	dict := buildDictionary(cfg, logger)
	prober := ffprobe.New(cfg.FFProbePath, time.Duration(cfg.ProbeTimeoutSeconds)*time.Second)

	var model ports.CorrectionModel
	if cfg.EnableCorrection || cfg.LLMEndpoint != "" {
		model = llm.New(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel,
			cfg.LLMMaxTokens, cfg.LLMTemperature,
			time.Duration(cfg.LLMTimeoutSeconds)*time.Second)
	}

	srv := apihttp.New(cfg.VideoDir, store, logger, cfg.CORSAllowedOrigins)
	defer srv.Close()

	orch := &pipeline.Orchestrator{
		Store:  store,
		Prober: prober,
		Audio: &ffmpeg.Extractor{
			Binary: cfg.FFMPEGPath,
			Prober: prober,
			Logger: logger,
		},
		Transcriber: &transcribe.Whisper{
			Binary:   cfg.WhisperPath,
			Model:    cfg.WhisperModel,
			Language: cfg.Language,
			Timeout:  time.Duration(cfg.TranscribeTimeoutSeconds) * time.Second,
			Logger:   logger,
		},
		Corrector: model,
		Chapters: &chapters.Extractor{
			Fetcher: chapters.NewFetcher(time.Duration(cfg.HTTPTimeoutSeconds) * time.Second),
			Cache: &chapters.Cache{
				Dir:      cfg.ChaptersDir,
				TTLHours: cfg.CacheTTLHours,
				Logger:   logger,
			},
			Logger: logger,
		},
		Dictionary:        dict,
		Classifier:        &filename.Classifier{Model: model, Logger: logger},
		Publisher:         srv.Publisher(),
		Logger:            logger,
		Workers:           cfg.Workers,
		EnableEnhancement: cfg.EnableEnhancement,
		EnableCorrection:  cfg.EnableCorrection,
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	batch, err := orch.ProcessDirectory(rootCtx, cfg.VideoDir, cfg.OutputDir)
	exitCode := 0
	if err != nil {
		logger.Error("batch failed", slog.String("error", err.Error()))
		exitCode = 1
	} else {
		srv.SetBatchResult(batch)
		if batch.Failed > 0 {
			exitCode = 2
		}
	}

	// Keep serving status until interrupted so the UI can inspect results.
	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	os.Exit(exitCode)
}

func runReset(cfg app.Config, store *state.Store, logger *slog.Logger, raw string) {
	var stages []domain.Stage
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" || name == "all" {
			continue
		}
		stage, ok := domain.ParseStage(name)
		if !ok {
			logger.Error("unknown stage name", slog.String("stage", name))
			os.Exit(1)
		}
		stages = append(stages, stage)
	}

	orch := &pipeline.Orchestrator{Store: store, Logger: logger}
	count, err := orch.ResetStages(cfg.VideoDir, stages...)
	if err != nil {
		logger.Error("reset failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("reset complete",
		slog.Int("videos", count),
		slog.Int("stages", len(stages)))
}

func buildDictionary(cfg app.Config, logger *slog.Logger) ports.Dictionary {
	if cfg.BJJTermsFile != "" {
		dict, err := dictionary.FromFile(cfg.BJJTermsFile)
		if err == nil {
			return dict
		}
		logger.Warn("terms file load failed, using defaults",
			slog.String("path", cfg.BJJTermsFile),
			slog.String("error", err.Error()))
	}
	return dictionary.New()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
