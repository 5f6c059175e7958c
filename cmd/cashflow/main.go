package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/dashboard"
	apphttp "cashflow/internal/http"
	applog "cashflow/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	cli.LoadAndValidateConfig(logger, cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	records := cli.OpenBackend(startupCtx, logger, cfg)
	defer func() {
		if err := records.Close(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	}()

	opts := cli.SessionOptions(logger, cfg)

	// Reload events are optional; the dashboard works without a broker.
	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without reload events", applog.FieldError, err)
		} else {
			publisher = client
			defer publisher.Close()
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			opts = append(opts, dashboard.OnReload(publishReload(logger, publisher, records.Source)))
		}
	}

	session := dashboard.NewSession(records.Reader, opts...)
	if _, err := session.Reload(startupCtx); err != nil {
		logger.Warn("Initial records load failed, dashboard starts in error state", applog.FieldError, err)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		Logger:             logger,
	}, session, records.Reader)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting cashflow server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldSource, records.Source,
		applog.FieldViewMode, session.ViewMode().String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// publishReload announces applied snapshots. Publishing runs off the request
// path and never fails a reload.
func publishReload(logger *applog.Logger, client *amqp.Client, source string) dashboard.ReloadHook {
	return func(_ context.Context, snap dashboard.Snapshot) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.PublishRecordsReloaded(ctx, snap.Generation, len(snap.Records), source); err != nil {
				logger.LogError(ctx, "Failed to publish records reloaded event", err, applog.OpPublish,
					applog.NewFields().WithSnapshot(snap.Generation, len(snap.Records)))
			}
		}()
	}
}
