package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bookhive/lending-service/history/internal/model"
	"github.com/bookhive/lending-service/history/internal/repository"
	"github.com/bookhive/lending-service/pkg/kafka"
)

type Service struct {
	log  *zap.Logger
	repo repository.Repository
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log,
		repo: repo,
	}
}

func (s *Service) Append(ctx context.Context, event kafka.HistoryEvent) error {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return s.repo.AppendEntry(ctx, model.Entry{
		Username:   event.Username,
		EventType:  event.EventType,
		Payload:    event.Payload,
		OccurredAt: occurredAt,
	})
}

func (s *Service) GetEntries(ctx context.Context, username string) ([]model.Entry, error) {
	return s.repo.GetEntries(ctx, username)
}
