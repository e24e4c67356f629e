package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"parceiros/internal/amqp"
	"parceiros/internal/auth"
	"parceiros/internal/backend"
	"parceiros/internal/cli"
	apphttp "parceiros/internal/http"
	plog "parceiros/internal/log"
	"parceiros/internal/services"
	"parceiros/internal/store"
	"parceiros/internal/website/fake"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(slog.Default())
	base := cli.SetupLogger(cfg.LogLevel)
	logger := base.WithComponent(plog.ComponentApp)

	st, closeKV := cli.MustOpenStore(context.Background(), base.Logger, cfg)

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
	syncSvc := services.NewSyncService(st, syncer, services.WithSyncLogger(base.WithComponent(plog.ComponentSheets).Logger))

	// With a broker the worker owns the pushes; otherwise push in-process.
	var (
		processor  *services.SyncProcessor
		amqpClient *amqp.Client
		notifier   store.ChangeNotifier
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		notifier = services.NewChangePublisher(amqpClient)
		logger.Info("Publishing partner changes to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		pcfg := services.DefaultSyncProcessorConfig()
		pcfg.PollInterval = cfg.SyncInterval
		processor = services.NewSyncProcessor(syncSvc, pcfg)
		notifier = processor
		logger.Info("AMQP disabled, syncing sheet in-process", "interval", cfg.SyncInterval)
	}
	st.SetNotifier(notifier)

	var importer apphttp.Importer
	if cfg.WebsiteUsername != "" {
		site := fake.New(fake.Demo(time.Now()), fake.WithCredentials(cfg.WebsiteUsername, cfg.WebsitePassword))
		importer = services.NewWebsiteImporter(st, site, cfg.WebsiteUsername, cfg.WebsitePassword, cfg.WebsiteConcurrency)
	} else {
		logger.Info("Website import disabled - no WEBSITE_USERNAME provided")
	}

	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set, login will be rejected")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:             st,
		Sync:              syncSvc,
		Importer:          importer,
		Auth:              auth.NewStatic(cfg.AdminUsername, cfg.AdminPasswordHash),
		Logger:            base.WithComponent(plog.ComponentHTTP),
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if processor != nil {
			if err := processor.Stop(ctx); err != nil {
				logger.Error("Sync processor shutdown error", "error", err)
			}
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := closeKV(); err != nil {
			logger.Error("Storage close error", "error", err)
		}
	})

	if processor != nil {
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start sync processor", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Starting parceiros server",
		plog.FieldOperation, plog.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"sheets_backend", cfg.SheetsBackend,
		"window", st.WindowPolicy().String(),
		"partners", len(st.Partners()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
