// Package main provides the entry point for the Kuiper API server.
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

	"github.com/maauso/kuiper-api/internal/bootstrap"
	"github.com/maauso/kuiper-api/internal/config"
	"github.com/maauso/kuiper-api/internal/server"
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

	logger.Info("starting Kuiper API",
		slog.String("addr", cfg.Addr()),
		slog.String("environment", cfg.Environment),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.Bool("supabase_enabled", cfg.SupabaseEnabled()),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Int("max_upload_size_mb", cfg.MaxUploadSizeMB),
	)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(
		deps.Scripts,
		deps.Recordings,
		deps.Settings,
		logger,
		server.WithSynthesizer(deps.Synthesizer),
		server.WithEnvironment(cfg.Environment),
		server.WithDebug(cfg.Debug),
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	)

	rateLimit := 0
	if cfg.IsProduction() {
		rateLimit = cfg.RateLimitPerMinute
	}
	router := server.NewRouter(handlers, logger, server.Config{
		AllowedOrigins:     cfg.AllowedOrigins(),
		AdminPassword:      cfg.AdminPassword,
		RateLimitPerMinute: rateLimit,
		Verifier:           deps.Verifier,
		Metrics:            deps.Metrics,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       120 * time.Second, // Large WAV uploads on slow links
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

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
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

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
