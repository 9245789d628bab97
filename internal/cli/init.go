// Package cli provides common CLI initialization utilities shared by
// cmd/cashstash, cmd/cashstash-worker and cmd/cashstash-report.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashstash/internal/backend"
	"cashstash/internal/config"
	applog "cashstash/internal/log"
)

// SetupLogger builds the process logger at the LOG_LEVEL level and installs
// it as the slog default.
func SetupLogger() *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and runs Validate plus any extra
// checks. It exits the process on the first failing check.
func LoadAndValidateConfig(logger *applog.Logger, extra ...func(*config.Config) error) *config.Config {
	cfg := config.Load()
	checks := append([]func(*config.Config) error{(*config.Config).Validate}, extra...)
	for _, check := range checks {
		if err := check(cfg); err != nil {
			logger.Error("Configuration validation failed", "error", err)
			os.Exit(1)
		}
	}
	return cfg
}

// InitBackend opens the configured backend or exits the process.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bcfg.Type.String())
		os.Exit(1)
	}
	return res
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Shutdown starts on SIGINT/SIGTERM or when parent is cancelled. Returns a
// context that is cancelled once cleanup has run, and a channel that is
// closed after that.
func GracefulShutdown(parent context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-parent.Done():
			logger.Info("Context cancelled")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
