// Package records defines where transaction records come from.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cashflow/internal/core"
)

var (
	// ErrNotArray is returned when a payload is valid JSON but not an array.
	ErrNotArray = errors.New("records payload is not a JSON array")

	// ErrEmptyPayload is returned for a body with no JSON value at all.
	ErrEmptyPayload = errors.New("records payload is empty")
)

// Payload is one snapshot of the record list as read from a source.
// Raw keeps the source bytes so /api/records can return them verbatim.
type Payload struct {
	Records []core.Record
	Raw     json.RawMessage
}

// Ports for record sources.
type (
	Reader interface {
		ReadRecords(ctx context.Context) (Payload, error)
	}

	// Writer replaces the stored record list. Used by the import command.
	Writer interface {
		ReplaceRecords(ctx context.Context, raw json.RawMessage) (int, error)
	}
)

// Decode parses a records payload. null is an empty list; a blank body is
// ErrEmptyPayload. Elements that are not objects decode as empty records and
// contribute no events.
func Decode(raw []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Payload{}, ErrEmptyPayload
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return Payload{Records: []core.Record{}, Raw: json.RawMessage("[]")}, nil
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return Payload{}, fmt.Errorf("decode records: invalid JSON")
		}
		return Payload{}, ErrNotArray
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return Payload{}, fmt.Errorf("decode records: %w", err)
	}

	out := make([]core.Record, len(elems))
	for i, elem := range elems {
		var r core.Record
		if err := json.Unmarshal(elem, &r); err == nil {
			out[i] = r
		}
	}
	return Payload{Records: out, Raw: json.RawMessage(trimmed)}, nil
}

// Len is a convenience for logging.
func (p Payload) Len() int {
	return len(p.Records)
}
