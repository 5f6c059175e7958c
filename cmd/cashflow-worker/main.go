package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/dashboard"
	applog "cashflow/internal/log"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	cli.LoadAndValidateConfig(logger, cfg)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	logger.Info("Starting cashflow-worker", "export_dir", cfg.ExportDir)

	records := cli.OpenBackend(context.Background(), logger, cfg)
	defer records.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	session := dashboard.NewSession(records.Reader, cli.SessionOptions(logger, cfg)...)
	exporter := worker.NewExportWorker(session, cfg.ExportDir, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Export once on startup so the latest files exist before the first event.
	if _, err := exporter.ExportOnce(ctx); err != nil {
		logger.Error("Startup export failed", applog.FieldError, err)
	}

	go func() {
		err := amqpClient.ConsumeRecordsReloaded(ctx, exporter.HandleRecordsReloaded)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
