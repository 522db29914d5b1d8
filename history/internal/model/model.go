package model

import (
	"encoding/json"
	"time"
)

// Entry is one append-only audit record. Payload keeps the event's document
// as-is; entries are never updated or deleted.
type Entry struct {
	ID         int             `json:"-" db:"id"`
	Username   string          `json:"username" db:"username"`
	EventType  string          `json:"eventType" db:"event_type"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	OccurredAt time.Time       `json:"occurredAt" db:"occurred_at"`
}
