// Package file reads the records list from a JSON file on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"cashflow/internal/records"
)

const recordsFile = "records.json"

type Store struct {
	path  string
	group singleflight.Group
}

// New returns a store reading path on every call.
func New(path string) *Store {
	return &Store{path: path}
}

// NewFromDir resolves the records file relative to base. See ResolvePath.
func NewFromDir(base string) *Store {
	return New(ResolvePath(base))
}

// ResolvePath looks for data/records.json one level above base first and
// falls back to base/data/records.json.
func ResolvePath(base string) string {
	primary := filepath.Join(base, "..", "data", recordsFile)
	if _, err := os.Stat(primary); err == nil {
		return primary
	}
	return filepath.Join(base, "data", recordsFile)
}

func (s *Store) Path() string {
	return s.path
}

// ReadRecords reads and decodes the file. Concurrent callers share one read.
func (s *Store) ReadRecords(ctx context.Context) (records.Payload, error) {
	if err := ctx.Err(); err != nil {
		return records.Payload{}, err
	}

	v, err, _ := s.group.Do(s.path, func() (any, error) {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("records file %s: %w", s.path, err)
			}
			return nil, fmt.Errorf("read records file: %w", err)
		}
		p, err := records.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("records file %s: %w", s.path, err)
		}
		return p, nil
	})
	if err != nil {
		return records.Payload{}, err
	}
	return v.(records.Payload), nil
}

// ReplaceRecords writes raw to the file, replacing its contents atomically.
func (s *Store) ReplaceRecords(_ context.Context, raw json.RawMessage) (int, error) {
	p, err := records.Decode(raw)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return 0, fmt.Errorf("create records directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".records-*.json")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(p.Raw); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return 0, fmt.Errorf("replace records file: %w", err)
	}
	return p.Len(), nil
}
