package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sahaj-careers/sahaj/internal/config"
	"github.com/sahaj-careers/sahaj/internal/conversation"
	"github.com/sahaj-careers/sahaj/internal/httpapi"
	"github.com/sahaj-careers/sahaj/internal/llm"
	"github.com/sahaj-careers/sahaj/internal/observability"
	"github.com/sahaj-careers/sahaj/internal/session"
	"github.com/sahaj-careers/sahaj/internal/speech"
	"github.com/sahaj-careers/sahaj/internal/store"
	"github.com/sahaj-careers/sahaj/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(serve(cfg, logger))
}

// serve runs the server and returns the process exit code once every
// resource has been released and the logger flushed.
func serve(cfg config.Config, logger *zap.Logger) int {
	defer func() { _ = logger.Sync() }()
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	metrics := observability.NewMetrics(cfg.MetricsNamespace, nil)

	st, backend, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("store init: %w", err)
	}
	defer st.Close()
	logger.Info("store ready", zap.String("backend", backend))

	brain, llmName, err := llm.NewProvider(ctx, llm.Config{
		Mode:             cfg.LLMProvider,
		AWSRegion:        cfg.AWSRegion,
		BedrockModelID:   cfg.BedrockModelID,
		BedrockMaxTokens: cfg.BedrockMaxTokens,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GeminiModel:      cfg.GeminiModel,
		HTTPURL:          cfg.LLMHTTPURL,
		HTTPAPIKey:       cfg.LLMHTTPAPIKey,
		HTTPModel:        cfg.LLMHTTPModel,
		Logger:           logger.Named("llm"),
	})
	if err != nil {
		return fmt.Errorf("language model init: %w", err)
	}
	logger.Info("language model ready", zap.String("provider", llmName))

	sp, speechName, err := speech.NewProvider(speech.Config{
		Mode:       cfg.SpeechProvider,
		APIKey:     cfg.SarvamAPIKey,
		BaseURL:    cfg.SarvamBaseURL,
		STTModel:   cfg.SarvamSTTModel,
		TTSModel:   cfg.SarvamTTSModel,
		Speaker:    cfg.SarvamSpeaker,
		SampleRate: cfg.AudioSampleRate,
		Logger:     logger.Named("speech"),
	})
	if err != nil {
		return fmt.Errorf("speech init: %w", err)
	}
	logger.Info("speech provider ready", zap.String("provider", speechName))
	translator, _ := sp.(speech.Translator)

	sessions := session.NewManager(cfg.IdleTimeout)
	sessions.SetExpireHook(func(a session.Attachment) {
		metrics.SessionEvent("expired")
		logger.Info("idle voice connection expired",
			zap.String("session_id", a.SessionID),
			zap.String("user_id", a.UserID),
		)
	})

	handler := voice.NewHandler(
		voice.Config{
			ProviderTimeout: cfg.ProviderTimeout,
			DefaultLanguage: cfg.DefaultLanguage,
			Speaker:         cfg.SarvamSpeaker,
			LLMLabel:        llmName,
			SpeechLabel:     speechName,
		},
		st,
		conversation.NewOrchestrator(brain, cfg.HistoryWindow, logger.Named("conversation")),
		sp,
		sessions,
		metrics,
		logger.Named("voice"),
	)

	api := httpapi.New(cfg, st, handler, translator, metrics, logger.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}
	logger.Info("shutdown complete")
	return nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid APP_LOG_LEVEL %q: %w", level, err)
	}
	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
