package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/history/internal/model"
)

type Repository interface {
	AppendEntry(ctx context.Context, e model.Entry) error
	GetEntries(ctx context.Context, username string) ([]model.Entry, error)
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
	historyTableName = `history`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) AppendEntry(ctx context.Context, e model.Entry) error {
	q, args, err := qb.Insert(historyTableName).
		Columns("username", "event_type", "payload", "occurred_at").
		Values(e.Username, e.EventType, []byte(e.Payload), e.OccurredAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		r.log.Error("AppendEntry", zap.String("q", q), zap.Any("args", args))
		return err
	}
	return nil
}

func (r *repository) GetEntries(ctx context.Context, username string) ([]model.Entry, error) {
	q, args, err := qb.Select("id", "username", "event_type", "payload", "occurred_at").
		From(historyTableName).
		Where(sq.Eq{"username": username}).
		OrderBy("occurred_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Entry
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}
