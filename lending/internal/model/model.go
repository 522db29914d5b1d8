package model

import (
	"time"
)

type Book struct {
	ID      int    `json:"-" db:"id"`
	BookUid string `json:"bookUid" db:"book_uid"`
	Name    string `json:"name" db:"name"`
	Author  string `json:"author" db:"author"`
	Genre   string `json:"genre" db:"genre"`
}

// Stock is the per-book ledger of physically available copies.
// Invariant: IsAvailable == (Quantity > 0) after every mutation.
type Stock struct {
	BookID      int  `json:"-" db:"book_id"`
	Quantity    int  `json:"quantity" db:"quantity"`
	IsAvailable bool `json:"isAvailable" db:"is_available"`
}

// Adjust shifts the quantity by delta, flooring at zero, and recomputes the
// availability flag. Callers that must not hit the floor pre-validate.
func (s *Stock) Adjust(delta int) {
	q := s.Quantity + delta
	if q < 0 {
		q = 0
	}
	s.Quantity = q
	s.UpdateAvailability()
}

func (s *Stock) Increase() { s.Adjust(1) }

func (s *Stock) Decrease() { s.Adjust(-1) }

// UpdateAvailability recomputes the flag from the current quantity.
func (s *Stock) UpdateAvailability() {
	s.IsAvailable = s.Quantity > 0
}

type Loan struct {
	ID              int        `json:"-" db:"id"`
	LoanUid         string     `json:"loanUid" db:"loan_uid"`
	Username        string     `json:"username" db:"username"`
	BookUid         string     `json:"bookUid" db:"book_uid"`
	LoanDate        time.Time  `json:"loanDate" db:"loan_date"`
	DueDate         time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate      *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Fine            *float64   `json:"fine,omitempty" db:"fine"`
	ExtensionsCount int        `json:"extensionsCount" db:"extensions_count"`
}

type ReservationStatus string

const (
	StatusPending ReservationStatus = "PENDING"
	StatusReady   ReservationStatus = "READY"
)

type Reservation struct {
	ID             int               `json:"-" db:"id"`
	ReservationUid string            `json:"reservationUid" db:"reservation_uid"`
	Username       string            `json:"username" db:"username"`
	BookUid        string            `json:"bookUid" db:"book_uid"`
	Status         ReservationStatus `json:"status" db:"status"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	ReadyAt        *time.Time        `json:"readyAt,omitempty" db:"ready_at"`
}

// Hold identifies a reservation promoted to "ready" during a return; the
// holder gets notified that the copy is waiting.
type Hold struct {
	ReservationUid string `db:"reservation_uid"`
	Username       string `db:"username"`
	BookName       string `db:"book_name"`
}

// ExpiredReservation is one hold removed by the expiry cleanup.
type ExpiredReservation struct {
	ReservationUid string `db:"reservation_uid"`
	Username       string `db:"username"`
	BookUid        string `db:"book_uid"`
}

type CreateLoanRequest struct {
	BookUid string `json:"bookUid" validate:"required,uuid"`
}

type UpdateLoanRequest struct {
	DueDate *time.Time `json:"dueDate"`
	Fine    *float64   `json:"fine"`
}

type CreateReservationRequest struct {
	BookUid string `json:"bookUid" validate:"required,uuid"`
}

type UpdateReservationRequest struct {
	ReadyAt *time.Time `json:"readyAt"`
}

type CreateLoanResponse struct {
	Message string    `json:"message"`
	LoanUid string    `json:"loanUid"`
	DueDate time.Time `json:"dueDate"`
}

type ReturnLoanResponse struct {
	Message             string  `json:"message"`
	ReservationNotified bool    `json:"reservationNotified"`
	Fine                float64 `json:"fine"`
}

type ExtendLoanResponse struct {
	DueDate    time.Time `json:"dueDate"`
	Extensions int       `json:"extensions"`
}

type CleanupResponse struct {
	Message string `json:"message"`
}

type StockInfo struct {
	BookUid     string `json:"bookUid" db:"book_uid"`
	Quantity    int    `json:"quantity" db:"quantity"`
	IsAvailable bool   `json:"isAvailable" db:"is_available"`
}
