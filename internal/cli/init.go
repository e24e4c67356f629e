// Package cli provides common initialization shared by cmd/parceiros,
// cmd/parceiros-worker and cmd/parceiros-cli.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"parceiros/internal/backend"
	"parceiros/internal/config"
	plog "parceiros/internal/log"
	"parceiros/internal/store"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and sets
// it as the default logger. An unknown level falls back to info.
func SetupLogger(level string) *plog.Logger {
	lvl, err := plog.ParseLevel(level)
	logger := plog.New(plog.Config{Level: lvl, Output: os.Stdout})
	plog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadEnvFile loads .env files for local development. Missing files are
// ignored as they are optional in production.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the configured KV backend and loads the partner store
// over it. The cleanup func closes the backend.
func OpenStore(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...store.Option) (*store.Store, backend.CleanupFunc, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateKV(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	policy, err := cfg.Window()
	if err != nil {
		_ = res.Cleanup()
		return nil, nil, err
	}
	opts = append([]store.Option{
		store.WithWindowPolicy(policy),
		store.WithLogger(logger.With(plog.FieldComponent, plog.ComponentStore)),
	}, opts...)
	st, err := store.New(ctx, res.KV, opts...)
	if err != nil {
		_ = res.Cleanup()
		return nil, nil, err
	}
	return st, res.Cleanup, nil
}

// MustOpenStore is OpenStore exiting the process on failure.
func MustOpenStore(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...store.Option) (*store.Store, backend.CleanupFunc) {
	st, cleanup, err := OpenStore(ctx, logger, cfg, opts...)
	if err != nil {
		logger.Error("Failed to open partner store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return st, cleanup
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", plog.FieldOperation, plog.OpShutdown, "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached", plog.FieldOperation, plog.OpShutdown)
		case <-finished:
			logger.Info("Shutdown complete", plog.FieldOperation, plog.OpShutdown)
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
