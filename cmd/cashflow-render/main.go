// Command cashflow-render fetches records from a running records API and
// writes the cashflow chart to a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cashflow/internal/chart"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/core"
	"cashflow/internal/dashboard"
	"cashflow/internal/fetcher"
	applog "cashflow/internal/log"
)

func main() {
	source := flag.String("source", "http://localhost:5001", "base URL of the records API")
	modeFlag := flag.String("mode", "", "daily or monthly (defaults to DEFAULT_VIEW_MODE)")
	out := flag.String("out", "cashflow.png", "output file; .svg selects SVG output")
	hide := flag.String("hide", "", "comma separated series to hide: 0 cash in, 1 cash out, 2 net flow, 3 cumulative")
	width := flag.Int("width", chart.DefaultWidth, "image width in pixels")
	height := flag.Int("height", chart.DefaultHeight, "image height in pixels")
	timeout := flag.Duration("timeout", 30*time.Second, "fetch timeout")
	flag.Parse()

	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentChart)

	if err := run(logger, cfg, *source, *modeFlag, *out, *hide, *width, *height, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "cashflow-render:", err)
		os.Exit(1)
	}
}

func run(logger *applog.Logger, cfg *config.Config, source, modeFlag, out, hide string, width, height int, timeout time.Duration) error {
	mode := cfg.ViewMode()
	if modeFlag != "" {
		m, err := core.ParseViewMode(modeFlag)
		if err != nil {
			return err
		}
		mode = m
	}

	hidden, err := chart.ParseHidden(hide)
	if err != nil {
		return err
	}

	format := chart.PNG
	if strings.EqualFold(filepath.Ext(out), ".svg") {
		format = chart.SVG
	}

	client, err := fetcher.New(source)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	session := dashboard.NewSession(client, cli.SessionOptions(logger, cfg)...)
	if _, err := session.Reload(ctx); err != nil {
		return err
	}
	series, snap, err := session.Series(mode)
	if err != nil {
		return err
	}

	img, err := chart.Render(series, chart.Options{
		Format: format,
		Width:  width,
		Height: height,
		Title:  fmt.Sprintf("Cashflow (%s)", mode),
		Hidden: hidden,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, img, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	logger.Info("Chart written",
		"path", out,
		applog.FieldFormat, string(format),
		applog.FieldViewMode, mode.String(),
		applog.FieldRecords, len(snap.Records),
		applog.FieldBuckets, len(series),
		applog.FieldBytes, len(img))
	return nil
}
