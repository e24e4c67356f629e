package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"parceiros/internal/amqp"
	"parceiros/internal/backend"
	"parceiros/internal/cli"
	plog "parceiros/internal/log"
	"parceiros/internal/services"
	"parceiros/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(slog.Default())
	base := cli.SetupLogger(cfg.LogLevel)
	logger := base.WithComponent(plog.ComponentWorker)

	logger.Info("Starting parceiros-worker", plog.FieldOperation, plog.OpStartup)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is not shared with the API process, the worker only sees its own empty list")
	}

	// The API process is the writer; the worker reloads before every push.
	st, closeKV := cli.MustOpenStore(context.Background(), base.Logger, cfg)
	defer func() {
		if err := closeKV(); err != nil {
			logger.Error("Storage close error", "error", err)
		}
	}()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	syncer, err := backend.NewFactory(base.Logger).CreateSyncer(context.Background(), bcfg, st)
	if err != nil {
		logger.Error("Failed to initialize sheets syncer", "error", err, "sheets_backend", cfg.SheetsBackend)
		os.Exit(1)
	}
	syncWorker := worker.NewSyncWorker(st, services.NewSyncService(st, syncer,
		services.WithSyncLogger(base.WithComponent(plog.ComponentSheets).Logger)))

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)

	// Covers messages published while the worker was down.
	logger.Info("Performing startup sync", plog.FieldOperation, plog.OpStartup)
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", "error", err)
	}

	go func() {
		if err := amqpClient.ConsumePartnerSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := syncWorker.PeriodicSync(ctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	}()

	logger.Info("Worker running", "queue", cfg.AMQPQueue, "interval", cfg.SyncInterval, "backend", cfg.DataBackend)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
