package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/model"
	"github.com/bookhive/lending-service/lending/internal/policy"
	"github.com/bookhive/lending-service/lending/internal/repository"
	"github.com/bookhive/lending-service/pkg/auth"
	"github.com/bookhive/lending-service/pkg/kafka"
)

// Notifier delivers a user-facing message. Delivery failures never roll back
// the business change that triggered them; callers log and move on.
type Notifier interface {
	NotifyUser(ctx context.Context, username, message string) error
}

// HistoryRecorder appends an audit event, best effort after commit.
type HistoryRecorder interface {
	Record(ctx context.Context, event kafka.HistoryEvent) error
}

const (
	eventLoanCreated        = "LOAN_CREATED"
	eventLoanReturned       = "LOAN_RETURNED"
	eventLoanExtended       = "LOAN_EXTENDED"
	eventLoanDeleted        = "LOAN_DELETED"
	eventReservationCreated = "RESERVATION_CREATED"
	eventReservationDeleted = "RESERVATION_DELETED"
	eventReservationExpired = "RESERVATION_EXPIRED"
)

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	notifier Notifier
	history  HistoryRecorder
	policy   policy.Policy
}

func NewService(repo repository.Repository, notifier Notifier, history HistoryRecorder, p policy.Policy, log *zap.Logger) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		notifier: notifier,
		history:  history,
		policy:   p,
	}
}

func (s *Service) CreateLoan(ctx context.Context, username string, req model.CreateLoanRequest) (model.CreateLoanResponse, error) {
	loan, err := s.repo.CreateLoan(ctx, username, req.BookUid, repository.LoanTerms{
		MaxActiveLoans: s.policy.MaxActiveLoans,
		Duration:       s.policy.LoanDuration,
	})
	if err != nil {
		return model.CreateLoanResponse{}, err
	}
	s.record(ctx, username, eventLoanCreated, loan)

	return model.CreateLoanResponse{
		Message: "Book loaned.",
		LoanUid: loan.LoanUid,
		DueDate: loan.DueDate,
	}, nil
}

func (s *Service) GetLoans(ctx context.Context, username string) ([]model.Loan, error) {
	return s.repo.GetLoans(ctx, username)
}

func (s *Service) ReturnLoan(ctx context.Context, loanUid string) (model.ReturnLoanResponse, error) {
	loan, hold, err := s.repo.ReturnLoan(ctx, loanUid, s.policy.Fine)
	if err != nil {
		return model.ReturnLoanResponse{}, err
	}
	s.record(ctx, loan.Username, eventLoanReturned, loan)
	s.notifyHold(ctx, hold)

	var fine float64
	if loan.Fine != nil {
		fine = *loan.Fine
	}
	return model.ReturnLoanResponse{
		Message:             "Book returned.",
		ReservationNotified: hold != nil,
		Fine:                fine,
	}, nil
}

func (s *Service) ExtendLoan(ctx context.Context, loanUid string, caller auth.Profile) (model.ExtendLoanResponse, error) {
	loan, err := s.repo.GetLoan(ctx, loanUid)
	if err != nil {
		return model.ExtendLoanResponse{}, err
	}
	if loan.Username != caller.Username && !caller.Role.IsStaff() {
		return model.ExtendLoanResponse{}, errs.ErrForbidden
	}
	if loan.ReturnDate != nil {
		return model.ExtendLoanResponse{}, errs.ErrLoanReturned
	}
	if loan.ExtensionsCount >= s.policy.MaxExtensions {
		return model.ExtendLoanResponse{}, errs.ErrMaxExtensions
	}

	// the conditional update re-checks the counter, so a concurrent extend
	// cannot push past the limit
	extended, err := s.repo.ExtendLoan(ctx, loanUid, s.policy.LoanDuration, s.policy.MaxExtensions)
	if err != nil {
		return model.ExtendLoanResponse{}, err
	}
	s.record(ctx, loan.Username, eventLoanExtended, extended)

	return model.ExtendLoanResponse{
		DueDate:    extended.DueDate,
		Extensions: extended.ExtensionsCount,
	}, nil
}

func (s *Service) UpdateLoan(ctx context.Context, loanUid string, req model.UpdateLoanRequest) (model.Loan, error) {
	return s.repo.UpdateLoan(ctx, loanUid, req)
}

func (s *Service) DeleteLoan(ctx context.Context, loanUid string) error {
	hold, err := s.repo.DeleteLoan(ctx, loanUid)
	if err != nil {
		return err
	}
	s.record(ctx, "", eventLoanDeleted, map[string]string{"loanUid": loanUid})
	s.notifyHold(ctx, hold)
	return nil
}

func (s *Service) CreateReservation(ctx context.Context, username string, req model.CreateReservationRequest) (model.Reservation, error) {
	rsv, err := s.repo.CreateReservation(ctx, username, req.BookUid)
	if err != nil {
		return model.Reservation{}, err
	}
	s.record(ctx, username, eventReservationCreated, rsv)
	return rsv, nil
}

func (s *Service) GetReservations(ctx context.Context, username string) ([]model.Reservation, error) {
	return s.repo.GetReservations(ctx, username)
}

func (s *Service) UpdateReservation(ctx context.Context, reservationUid string, caller auth.Profile, req model.UpdateReservationRequest) (model.Reservation, error) {
	if err := s.checkReservationOwner(ctx, reservationUid, caller); err != nil {
		return model.Reservation{}, err
	}
	return s.repo.UpdateReservation(ctx, reservationUid, req)
}

func (s *Service) DeleteReservation(ctx context.Context, reservationUid string, caller auth.Profile) error {
	if err := s.checkReservationOwner(ctx, reservationUid, caller); err != nil {
		return err
	}
	hold, err := s.repo.DeleteReservation(ctx, reservationUid)
	if err != nil {
		return err
	}
	s.record(ctx, caller.Username, eventReservationDeleted, map[string]string{"reservationUid": reservationUid})
	s.notifyHold(ctx, hold)
	return nil
}

func (s *Service) checkReservationOwner(ctx context.Context, reservationUid string, caller auth.Profile) error {
	rsv, err := s.repo.GetReservation(ctx, reservationUid)
	if err != nil {
		return err
	}
	if rsv.Username != caller.Username && !caller.Role.IsStaff() {
		return errs.ErrForbidden
	}
	return nil
}

// CleanupExpiredReservations purges holds whose pickup window lapsed and
// restores their copies. Idempotent: a second run with nothing newly expired
// removes nothing.
func (s *Service) CleanupExpiredReservations(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.policy.ReservationTTL)
	removed, err := s.repo.CleanupExpiredReservations(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, exp := range removed {
		s.record(ctx, exp.Username, eventReservationExpired, exp)
	}
	return len(removed), nil
}

func (s *Service) GetStock(ctx context.Context, bookUid string) (model.StockInfo, error) {
	return s.repo.GetStock(ctx, bookUid)
}

// notifyHold tells a promoted holder their copy is waiting. The business
// change already committed; a delivery failure is logged, never propagated.
func (s *Service) notifyHold(ctx context.Context, hold *model.Hold) {
	if hold == nil {
		return
	}
	msg := fmt.Sprintf("Your reservation for %q is ready for pickup.", hold.BookName)
	if err := s.notifier.NotifyUser(ctx, hold.Username, msg); err != nil {
		s.log.Error("notify reservation holder",
			zap.String("reservationUid", hold.ReservationUid),
			zap.String("username", hold.Username),
			zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, username, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal history payload", zap.String("eventType", eventType), zap.Error(err))
		return
	}
	event := kafka.HistoryEvent{
		Username:   username,
		EventType:  eventType,
		Payload:    data,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.history.Record(ctx, event); err != nil {
		s.log.Error("record history event", zap.String("eventType", eventType), zap.Error(err))
	}
}
