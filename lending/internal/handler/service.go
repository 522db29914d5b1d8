package handler

import (
	"context"

	"github.com/bookhive/lending-service/lending/internal/model"
	"github.com/bookhive/lending-service/lending/internal/service"
	"github.com/bookhive/lending-service/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LendingService interface {
	CreateLoan(ctx context.Context, username string, req model.CreateLoanRequest) (model.CreateLoanResponse, error)
	GetLoans(ctx context.Context, username string) ([]model.Loan, error)
	ReturnLoan(ctx context.Context, loanUid string) (model.ReturnLoanResponse, error)
	ExtendLoan(ctx context.Context, loanUid string, caller auth.Profile) (model.ExtendLoanResponse, error)
	UpdateLoan(ctx context.Context, loanUid string, req model.UpdateLoanRequest) (model.Loan, error)
	DeleteLoan(ctx context.Context, loanUid string) error

	CreateReservation(ctx context.Context, username string, req model.CreateReservationRequest) (model.Reservation, error)
	GetReservations(ctx context.Context, username string) ([]model.Reservation, error)
	UpdateReservation(ctx context.Context, reservationUid string, caller auth.Profile, req model.UpdateReservationRequest) (model.Reservation, error)
	DeleteReservation(ctx context.Context, reservationUid string, caller auth.Profile) error
	CleanupExpiredReservations(ctx context.Context) (int, error)

	GetStock(ctx context.Context, bookUid string) (model.StockInfo, error)
}

var _ LendingService = (*service.Service)(nil)
