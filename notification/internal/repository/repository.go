package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/notification/internal/model"
)

type Repository interface {
	AppendNotification(ctx context.Context, n model.Notification) error
	GetNotifications(ctx context.Context, username string) ([]model.Notification, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	notificationsTableName = `notifications`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) AppendNotification(ctx context.Context, n model.Notification) error {
	q, args, err := qb.Insert(notificationsTableName).
		Columns("username", "message", "status", "created_at").
		Values(n.Username, n.Message, n.Status, n.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		r.log.Error("AppendNotification", zap.String("q", q), zap.Any("args", args))
		return err
	}
	return nil
}

func (r *repository) GetNotifications(ctx context.Context, username string) ([]model.Notification, error) {
	q, args, err := qb.Select("id", "username", "message", "status", "created_at").
		From(notificationsTableName).
		Where(sq.Eq{"username": username}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Notification
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}
