package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashstash/internal/amqp"
	"cashstash/internal/cache"
	"cashstash/internal/cli"
	"cashstash/internal/config"
	"cashstash/internal/sheets"
	gsheet "cashstash/internal/sheets/google"
	mem "cashstash/internal/sheets/memory"
	"cashstash/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting cashstash-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateMirror)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a spreadsheet the worker still drains the queue into memory,
	// which keeps the durable queue from growing unbounded.
	var writer sheets.LedgerWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(ctx); err != nil {
			// Don't exit - rows are still appended below whatever is there
			logger.Error("Failed to write ledger header", "error", err)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	mirror := worker.NewMirrorWorker(writer, logger)
	caches := cache.NewManager(logger)
	caches.Register(mirror.Cache())
	caches.StartCleanup(10 * time.Minute)

	consumeCtx, stopConsuming := context.WithCancel(ctx)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		err := amqpClient.ConsumeWithRetry(consumeCtx, cfg.AMQPQueue, mirror.HandleChange)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			cancel()
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(ctx, logger, shutdownTimeout, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		stopConsuming()
		select {
		case <-consumed:
		case <-ctx.Done():
		}
		caches.Stop()
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
	})

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker shutdown complete")
}
