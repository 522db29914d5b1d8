package model

import (
	"time"
)

type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "SENT"
	StatusFailed DeliveryStatus = "FAILED"
)

// Notification is one delivered (or failed) user-facing message; rows are
// append-only.
type Notification struct {
	ID        int            `json:"-" db:"id"`
	Username  string         `json:"username" db:"username"`
	Message   string         `json:"message" db:"message"`
	Status    DeliveryStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}
