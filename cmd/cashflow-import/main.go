// Command cashflow-import replaces the stored record list with the contents
// of a JSON file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cashflow/internal/cli"
	"cashflow/internal/config"
	applog "cashflow/internal/log"
	"cashflow/internal/records"
	"cashflow/internal/storage"
)

func main() {
	in := flag.String("in", "", "path to a records JSON array (required)")
	source := flag.String("source", "", "label stored with the import (defaults to the input path)")
	flag.Parse()

	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentStorage)
	cli.LoadAndValidateConfig(logger, cfg)

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: cashflow-import -in records.json [-source label]")
		os.Exit(2)
	}
	if *source == "" {
		*source = *in
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		logger.Error("Failed to read input", applog.FieldError, err, "path", *in)
		os.Exit(1)
	}
	payload, err := records.Decode(raw)
	if err != nil {
		logger.Error("Input is not a records array", applog.FieldError, err, "path", *in)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer result.Close()

	switch w := result.Writer.(type) {
	case nil:
		logger.Error("Backend is read-only", "backend", cfg.DataBackend)
		os.Exit(1)
	case *storage.SQLiteRepository:
		imp, err := w.ImportRecords(ctx, *source, payload.Raw)
		if err != nil {
			logger.LogError(ctx, "Import failed", err, applog.OpImport, nil)
			os.Exit(1)
		}
		logger.Info("Records imported",
			"import_id", imp.ID,
			applog.FieldRecords, imp.RecordCount,
			applog.FieldSource, imp.Source)
	default:
		n, err := w.ReplaceRecords(ctx, payload.Raw)
		if err != nil {
			logger.LogError(ctx, "Import failed", err, applog.OpImport, nil)
			os.Exit(1)
		}
		logger.Info("Records imported", applog.FieldRecords, n, applog.FieldSource, result.Source)
	}
}
