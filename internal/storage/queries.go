package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Import is one row of the imports table.
type Import struct {
	ID          int64
	Source      string
	RecordCount int64
	ImportedAt  time.Time
}

const createImport = `INSERT INTO imports (source, record_count, imported_at) VALUES (?, ?, ?)`

func (q *Queries) CreateImport(ctx context.Context, source string, count int64, at time.Time) (Import, error) {
	at = at.UTC().Truncate(time.Second)
	res, err := q.db.ExecContext(ctx, createImport, source, count, at.Format(time.RFC3339))
	if err != nil {
		return Import{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Import{}, err
	}
	return Import{ID: id, Source: source, RecordCount: count, ImportedAt: at}, nil
}

const deleteAllRecords = `DELETE FROM records`

func (q *Queries) DeleteAllRecords(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllRecords)
	return err
}

const insertRecord = `INSERT INTO records (position, payload, import_id) VALUES (?, ?, ?)`

func (q *Queries) InsertRecord(ctx context.Context, position int64, payload string, importID int64) error {
	_, err := q.db.ExecContext(ctx, insertRecord, position, payload, importID)
	return err
}

const listRecordPayloads = `SELECT payload FROM records ORDER BY position ASC`

func (q *Queries) ListRecordPayloads(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listRecordPayloads)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		items = append(items, payload)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countRecords = `SELECT COUNT(*) FROM records`

func (q *Queries) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countRecords).Scan(&n)
	return n, err
}

const getLatestImport = `SELECT id, source, record_count, imported_at FROM imports ORDER BY id DESC LIMIT 1`

func (q *Queries) GetLatestImport(ctx context.Context) (Import, error) {
	var (
		i  Import
		at string
	)
	if err := q.db.QueryRowContext(ctx, getLatestImport).Scan(&i.ID, &i.Source, &i.RecordCount, &at); err != nil {
		return i, err
	}
	parsed, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return i, err
	}
	i.ImportedAt = parsed
	return i, nil
}
