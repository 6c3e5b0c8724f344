package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"benta/internal/amqp"
	"benta/internal/config"
	"benta/internal/log"
	"benta/internal/sheets"
	gsheet "benta/internal/sheets/google"
	mem "benta/internal/sheets/memory"
	"benta/internal/storage"
	"benta/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	logger.Info("Starting benta-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Ledger backend: Google Sheets when configured, in-memory otherwise
	// so local development still exercises the full sync path.
	var (
		ledger  sheets.LedgerWriter
		deleter sheets.LedgerDeleter
	)
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		ledger, deleter = client, client
		logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		store := mem.New()
		ledger, deleter = store, store
		logger.Info("Google Sheets disabled - using in-memory ledger")
	}

	// AMQP consumer is optional; without it only the periodic sweep runs.
	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		consumer = amqpClient
		logger.Info("AMQP consumer initialized", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - running sweep-only mode")
	}

	syncWorker := worker.NewSyncWorker(repo, ledger, deleter, consumer, worker.Config{
		BatchSize:    cfg.SyncBatchSize,
		SyncInterval: cfg.SyncInterval,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on anything missed while the worker was down.
	if err := syncWorker.ProcessPendingTransactions(ctx); err != nil {
		logger.Error("Startup sync check failed", log.FieldError, err)
		// Don't exit - continue with normal operation
	}

	logger.Info("Worker started", "batch_size", cfg.SyncBatchSize, "interval", cfg.SyncInterval.String())
	if err := syncWorker.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
