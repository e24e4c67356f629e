// Command parceiros-cli manages the partner list directly against the
// configured storage backend, without the API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"parceiros/internal/backend"
	"parceiros/internal/cli"
	plog "parceiros/internal/log"
	"parceiros/internal/services"
	"parceiros/internal/store"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(slog.Default())
	// Commands write to stdout; keep logs on stderr and quiet by default.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	lvl, _ := plog.ParseLevel(level)
	base := plog.New(plog.Config{Level: lvl, Output: os.Stderr})
	plog.SetDefault(base)
	logger := base.WithComponent(plog.ComponentCLI)

	ctx := context.Background()
	st, closeKV, err := cli.OpenStore(ctx, base.Logger, cfg)
	if err != nil {
		logger.Error("Failed to open partner store", plog.FieldError, err, "backend", cfg.DataBackend)
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer closeKV()

	app := &app{
		store: st,
		out:   os.Stdout,
		in:    os.Stdin,
		now:   time.Now,
		sync: func(ctx context.Context, st *store.Store) (syncRunner, error) {
			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return nil, err
			}
			syncer, err := backend.NewFactory(base.Logger).CreateSyncer(ctx, bcfg, st)
			if err != nil {
				return nil, err
			}
			return services.NewSyncService(st, syncer), nil
		},
	}
	logger.Debug("Running command", "args", os.Args[1:])
	if err := app.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
