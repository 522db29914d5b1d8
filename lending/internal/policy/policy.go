package policy

import (
	"math"
	"time"
)

// Policy holds the fixed business rules for loans and reservations. It is
// read from the environment once at startup and never mutated.
type Policy struct {
	MaxActiveLoans int           `yaml:"maxActiveLoans" envconfig:"POLICY_MAX_ACTIVE_LOANS" default:"5"`
	MaxExtensions  int           `yaml:"maxExtensions" envconfig:"POLICY_MAX_EXTENSIONS" default:"2"`
	LoanDuration   time.Duration `yaml:"loanDuration" envconfig:"POLICY_LOAN_DURATION" default:"336h"`
	ReservationTTL time.Duration `yaml:"reservationTTL" envconfig:"POLICY_RESERVATION_TTL" default:"48h"`
	FinePerDay     float64       `yaml:"finePerDay" envconfig:"POLICY_FINE_PER_DAY" default:"10"`
}

// Fine computes the late fee for a loan due at dueDate and returned at
// returnedAt: whole days overdue (partial days count) times the daily rate.
func (p Policy) Fine(dueDate, returnedAt time.Time) float64 {
	overdue := returnedAt.Sub(dueDate)
	if overdue <= 0 {
		return 0
	}
	days := math.Ceil(overdue.Hours() / 24)
	return days * p.FinePerDay
}
