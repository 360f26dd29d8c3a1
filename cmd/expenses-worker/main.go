package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/log"
	"expenses/internal/services"
	gsheet "expenses/internal/sheets/google"
	"expenses/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger.Info("Starting expenses-worker")

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, manager, err := cli.StartStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return err
	}
	// Reading the tab up front surfaces bad credentials or a wrong sheet
	// name before the first event arrives.
	if rows, err := sheetsClient.ListExpenses(ctx); err != nil {
		logger.Warn("Expense sheet not readable", log.FieldError, err)
	} else {
		logger.Info("Google Sheets client initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			log.FieldCount, len(rows))
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer amqpClient.Close()

	// The periodic resync catches events lost while the worker was down.
	processor := services.NewSyncProcessor(store, sheetsClient, services.SyncProcessorConfig{
		Interval: cfg.SyncInterval,
		Timeout:  cfg.DBOperationTimeout,
	}, logger)
	syncWorker := worker.NewSyncWorker(processor, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return processor.Start(gctx)
	})

	g.Go(func() error {
		return amqpClient.ConsumeExpenseEvents(gctx, syncWorker.Handler())
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		processorErr := processor.Stop(shutdownCtx)
		if last, err := processor.LastResult(); !last.IsZero() {
			logger.Info("Last expense mirror resync", "finished_at", last, "ok", err == nil)
		}
		storeErr := manager.Stop(shutdownCtx)
		return errors.Join(processorErr, storeErr)
	})

	return g.Wait()
}
