package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RecordsReloadedMessage announces that a new record snapshot was applied.
// Consumers reload from their own source; the message carries no records.
type RecordsReloadedMessage struct {
	ID         string    `json:"id"`
	Generation uint64    `json:"generation"`
	Records    int       `json:"records"`
	Source     string    `json:"source,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecordsReloadedMessage(generation uint64, records int, source string) *RecordsReloadedMessage {
	return &RecordsReloadedMessage{
		ID:         uuid.NewString(),
		Generation: generation,
		Records:    records,
		Source:     source,
		Timestamp:  time.Now(),
	}
}

func (m *RecordsReloadedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordsReloadedMessageFromJSON(data []byte) (*RecordsReloadedMessage, error) {
	var msg RecordsReloadedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
