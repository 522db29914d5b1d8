package errs

import (
	"errors"
)

var (
	ErrBookNotFound        = errors.New("book not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrReservationNotFound = errors.New("reservation not found")

	ErrForbidden = errors.New("operation is not permitted for this user")

	ErrDuplicateReservation = errors.New("active reservation for this book already exists")

	ErrLoanLimit       = errors.New("active loan limit reached")
	ErrLoanReturned    = errors.New("loan already returned")
	ErrMaxExtensions   = errors.New("loan extension limit reached")
	ErrNoCopies        = errors.New("no copies available")
	ErrCopiesAvailable = errors.New("copies are available, borrow the book instead of reserving")
)
