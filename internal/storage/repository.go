package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cashflow/internal/records"

	_ "modernc.org/sqlite"
)

// ErrNoImports is returned by LatestImport on an empty database.
var ErrNoImports = errors.New("no records imported yet")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReadRecords implements records.Reader. Stored objects are reassembled into
// a JSON array in import order.
func (r *SQLiteRepository) ReadRecords(ctx context.Context) (records.Payload, error) {
	payloads, err := r.queries.ListRecordPayloads(ctx)
	if err != nil {
		return records.Payload{}, fmt.Errorf("list records: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, p := range payloads {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(p)
	}
	buf.WriteByte(']')

	return records.Decode(buf.Bytes())
}

// ReplaceRecords implements records.Writer.
func (r *SQLiteRepository) ReplaceRecords(ctx context.Context, raw json.RawMessage) (int, error) {
	imp, err := r.ImportRecords(ctx, "", raw)
	if err != nil {
		return 0, err
	}
	return int(imp.RecordCount), nil
}

// ImportRecords swaps the stored list for raw in one transaction and
// records where it came from.
func (r *SQLiteRepository) ImportRecords(ctx context.Context, source string, raw json.RawMessage) (Import, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return Import{}, fmt.Errorf("decode records: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Import{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	if err := qtx.DeleteAllRecords(ctx); err != nil {
		return Import{}, fmt.Errorf("delete records: %w", err)
	}

	imp, err := qtx.CreateImport(ctx, source, int64(len(elems)), r.now())
	if err != nil {
		return Import{}, fmt.Errorf("create import: %w", err)
	}

	for i, elem := range elems {
		var compact bytes.Buffer
		if err := json.Compact(&compact, elem); err != nil {
			return Import{}, fmt.Errorf("compact record %d: %w", i, err)
		}
		if err := qtx.InsertRecord(ctx, int64(i), compact.String(), imp.ID); err != nil {
			return Import{}, fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Import{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Records imported to SQLite",
		"import_id", imp.ID,
		"source", source,
		"records", imp.RecordCount)

	return imp, nil
}

func (r *SQLiteRepository) CountRecords(ctx context.Context) (int64, error) {
	n, err := r.queries.CountRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) LatestImport(ctx context.Context) (Import, error) {
	imp, err := r.queries.GetLatestImport(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, ErrNoImports
	}
	if err != nil {
		return Import{}, fmt.Errorf("get latest import: %w", err)
	}
	return imp, nil
}
