// Package main provides the entry point for the video overlay API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/videooverlay-api/internal/bootstrap"
	"github.com/maauso/videooverlay-api/internal/config"
	"github.com/maauso/videooverlay-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting video overlay API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("storage_dir", cfg.StorageDir),
		slog.String("ffmpeg_path", cfg.FFmpegPath),
		slog.Duration("artifact_ttl", cfg.ArtifactTTL),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("redis_enabled", cfg.RedisEnabled()),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("failed to close dependencies", slog.String("error", err.Error()))
		}
	}()

	if deps.Janitor != nil {
		go deps.Janitor.Run(ctx)
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.OverlayService, deps.Gateway, logger,
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	)
	router := server.NewRouter(handlers, logger, server.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		PublicPrefix:   cfg.PublicPrefix,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute, // large multipart uploads
		WriteTimeout:      30 * time.Minute, // /overlay blocks until ffmpeg exits
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
