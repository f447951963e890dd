package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/cli"
	"tally/internal/log"
	"tally/internal/storage"
	"tally/internal/worker"
)

var version = "dev"

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(slog.LevelInfo)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel())
	logger.Info("Starting tally-worker", "version", version, log.FieldOperation, log.OpStartup)

	flush := cli.InitSentry(logger, cfg, version)
	defer flush()

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the audit worker")
		os.Exit(1)
	}

	// The audit log lives in the SQLite ledger regardless of DATA_BACKEND.
	store, err := storage.Open(context.Background(), cfg.SQLiteDBPath,
		storage.WithLogger(logger.WithComponent(log.ComponentStorage)))
	if err != nil {
		logger.Error("Failed to open SQLite store", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	client, err := amqp.NewClientWithRetry(connectCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 8)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		store.Close()
		os.Exit(1)
	}

	w := worker.NewAuditWorker(store, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err.Error())
		}
		if err := store.Close(); err != nil {
			logger.Error("SQLite close error", log.FieldError, err.Error())
		}
	})

	if err := w.Run(ctx, client); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		client.Close()
		store.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	recorded, duplicates := w.Stats()
	logger.Info("Worker stopped gracefully", "recorded", recorded, "duplicates", duplicates)
}
