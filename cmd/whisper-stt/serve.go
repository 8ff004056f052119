package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-stt/internal/api"
	"github.com/snarg/whisper-stt/internal/config"
	"github.com/snarg/whisper-stt/internal/engine"
	"github.com/snarg/whisper-stt/internal/metrics"
	"github.com/snarg/whisper-stt/internal/models"
	"github.com/spf13/cobra"
)

func newServeCmd(o *config.Overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the transcription API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*o)
		},
	}
}

func runServe(o config.Overrides) error {
	// Config
	cfg, err := config.Load(o)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	log := newLogger(cfg.LogLevel)
	log.Info().
		Str("version", version).
		Str("engine", cfg.Engine).
		Str("model", cfg.WhisperModel).
		Msg("whisper-stt starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model store
	modelLog := log.With().Str("component", "models").Logger()
	src, err := models.NewSource(cfg, modelLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize model source")
	}
	store := models.NewStore(models.StoreOptions{Dir: cfg.ModelsDir, Source: src, Log: log})

	// Engine
	eng, err := engine.New(cfg, store, log.With().Str("component", "engine").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}
	if err := eng.Load(ctx); err != nil {
		log.Fatal().Err(err).Str("model", cfg.WhisperModel).Msg("failed to load model")
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, eng, httpLog)
	prometheus.MustRegister(metrics.NewCollector(srv.Stats(), eng.Model(), eng.Name()))

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("whisper-stt stopped")
	return nil
}
