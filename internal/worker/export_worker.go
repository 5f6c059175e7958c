// Package worker renders chart exports when records are reloaded elsewhere.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/amqp"
	"cashflow/internal/chart"
	"cashflow/internal/core"
	"cashflow/internal/dashboard"
	applog "cashflow/internal/log"
)

// ExportWorker keeps its own session over the record source and writes one
// PNG per view mode after every reload:
//
//	cashflow-<mode>-<generation>.png
//	cashflow-<mode>-latest.png
type ExportWorker struct {
	session *dashboard.Session
	dir     string
	modes   []core.ViewMode
	width   int
	height  int
	logger  *applog.Logger
}

type Option func(*ExportWorker)

// WithSize sets the image size. Zero keeps the renderer default.
func WithSize(width, height int) Option {
	return func(w *ExportWorker) {
		w.width = width
		w.height = height
	}
}

func WithModes(modes ...core.ViewMode) Option {
	return func(w *ExportWorker) {
		if len(modes) > 0 {
			w.modes = modes
		}
	}
}

func NewExportWorker(session *dashboard.Session, dir string, logger *applog.Logger, opts ...Option) *ExportWorker {
	if logger == nil {
		logger = applog.NewDiscard()
	}
	w := &ExportWorker{
		session: session,
		dir:     dir,
		modes:   []core.ViewMode{core.Monthly, core.Daily},
		logger:  logger.WithComponent(applog.ComponentWorker),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleRecordsReloaded processes a single reload event from AMQP. The
// message only signals a change; records are read from the worker's source.
func (w *ExportWorker) HandleRecordsReloaded(ctx context.Context, msg *amqp.RecordsReloadedMessage) error {
	w.logger.InfoContext(ctx, "Processing records reloaded message",
		"message_id", msg.ID,
		"publisher_generation", msg.Generation,
		applog.FieldRecords, msg.Records,
		applog.FieldSource, msg.Source)

	_, err := w.ExportOnce(ctx)
	return err
}

// ExportOnce reloads records and exports every mode. A reload superseded by
// a newer one is not an error; the newer one exports.
func (w *ExportWorker) ExportOnce(ctx context.Context) ([]string, error) {
	snap, err := w.session.Reload(ctx)
	if errors.Is(err, dashboard.ErrStaleResponse) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload records for export: %w", err)
	}
	return w.Export(ctx, snap)
}

// Export renders snap in every configured mode concurrently and returns the
// written paths, versioned file first for each mode.
func (w *ExportWorker) Export(ctx context.Context, snap dashboard.Snapshot) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	paths := make([][]string, len(w.modes))
	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range w.modes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			written, err := w.exportMode(snap, mode)
			if err != nil {
				return fmt.Errorf("export %s: %w", mode, err)
			}
			paths[i] = written
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.logger.LogError(ctx, "Chart export failed", err, applog.OpExport,
			applog.NewFields().WithSnapshot(snap.Generation, len(snap.Records)))
		return nil, err
	}

	var all []string
	for _, p := range paths {
		all = append(all, p...)
	}
	w.logger.InfoContext(ctx, "Charts exported",
		applog.FieldGeneration, snap.Generation,
		applog.FieldRecords, len(snap.Records),
		"files", len(all))
	return all, nil
}

func (w *ExportWorker) exportMode(snap dashboard.Snapshot, mode core.ViewMode) ([]string, error) {
	series := w.session.Aggregate(snap, mode)
	img, err := chart.Render(series, chart.Options{
		Format: chart.PNG,
		Width:  w.width,
		Height: w.height,
		Title:  fmt.Sprintf("Cashflow (%s)", mode),
	})
	if err != nil {
		return nil, err
	}

	versioned := filepath.Join(w.dir, fmt.Sprintf("cashflow-%s-%d.png", mode, snap.Generation))
	latest := filepath.Join(w.dir, fmt.Sprintf("cashflow-%s-latest.png", mode))
	for _, path := range []string{versioned, latest} {
		if err := writeFileAtomic(path, img); err != nil {
			return nil, err
		}
	}
	return []string{versioned, latest}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
