package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bookhive/lending-service/notification/internal/model"
	"github.com/bookhive/lending-service/notification/internal/repository"
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

// Deliver records one message from the notifications topic. The delivery log
// is the durable side of dispatch: a row lands even when the event carried a
// failure marker upstream.
func (s *Service) Deliver(ctx context.Context, event kafka.NotificationEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return s.repo.AppendNotification(ctx, model.Notification{
		Username:  event.Username,
		Message:   event.Message,
		Status:    model.StatusSent,
		CreatedAt: createdAt,
	})
}

func (s *Service) GetNotifications(ctx context.Context, username string) ([]model.Notification, error) {
	return s.repo.GetNotifications(ctx, username)
}
