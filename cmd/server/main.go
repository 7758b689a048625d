package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribehealth/dictation-gateway/internal/config"
	"github.com/scribehealth/dictation-gateway/internal/coordinator"
	"github.com/scribehealth/dictation-gateway/internal/diary"
	"github.com/scribehealth/dictation-gateway/internal/notegen"
	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("notegen_url", cfg.NoteGenURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Dictation Gateway starting")

	factory := stt.NewDeepgramFactory(cfg)
	drafter := notegen.NewClient(cfg)
	handler := coordinator.NewHandler(cfg, factory, drafter)

	var diaryStore *diary.Store
	if cfg.DiaryDBPath != "" {
		diaryStore, err = diary.Open(cfg.DiaryDBPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.DiaryDBPath).Msg("Failed to open diary database")
		}
		defer diaryStore.Close()
	}

	mux := http.NewServeMux()

	// Streaming dictation sessions
	mux.Handle("/v1/sessions/stream", handler)

	// One-shot submissions
	mux.HandleFunc("/v1/notes", handler.HandleBatch)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	checks := map[string]observability.HealthCheckFunc{
		"deepgram": func(ctx context.Context) (bool, error) {
			// Config validation only; no API call to avoid costs
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("deepgram api key not configured")
			}
			return true, nil
		},
		"notegen": func(ctx context.Context) (bool, error) {
			if cfg.NoteGenURL == "" {
				return false, fmt.Errorf("note generation endpoint not configured")
			}
			return true, nil
		},
	}
	if diaryStore != nil {
		checks["diary"] = func(ctx context.Context) (bool, error) {
			if _, err := diaryStore.Recent(ctx, 1); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		// Batch clips can take a while to transcribe
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		endpoint := fmt.Sprintf("ws://localhost:%s/v1/sessions/stream", cfg.Port)
		if cfg.GatewayURL != "" {
			endpoint = cfg.GatewayURL + "/v1/sessions/stream"
		}
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", endpoint).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
