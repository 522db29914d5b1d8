package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/model"
)

var reservationColumns = []string{
	"r.id", "r.reservation_uid", "r.username", "b.book_uid", "r.created_at", "r.ready_at",
	"case when r.ready_at is null then 'PENDING' else 'READY' end as status",
}

func (r *repository) CreateReservation(ctx context.Context, username, bookUid string) (model.Reservation, error) {
	var rsv model.Reservation
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var row struct {
			BookID   int `db:"id"`
			Quantity int `db:"quantity"`
		}
		q := `
	select b.id, s.quantity
	from books b
	join stock s on s.book_id = b.id
	where b.book_uid = $1`
		if err := tx.GetContext(ctx, &row, q, bookUid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrBookNotFound
			}
			return err
		}
		if row.Quantity > 0 {
			return errs.ErrCopiesAvailable
		}

		query, args, err := qb.Insert(reservationsTableName).
			Columns("reservation_uid", "username", "book_id", "created_at").
			Values(uuid.New(), username, row.BookID, time.Now().UTC()).
			Suffix("returning id, reservation_uid, created_at").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &rsv, query, args...); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return errs.ErrDuplicateReservation
			}
			r.log.Error("CreateReservation", zap.String("q", query), zap.Any("args", args))
			return err
		}
		rsv.Username = username
		rsv.BookUid = bookUid
		rsv.Status = model.StatusPending
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (r *repository) GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName + " r").
		Join(booksTableName + " b on b.id = r.book_id").
		Where(sq.Eq{"r.reservation_uid": reservationUid}).
		ToSql()
	if err != nil {
		return model.Reservation{}, err
	}
	var rsv model.Reservation
	if err := r.db.GetContext(ctx, &rsv, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, errs.ErrReservationNotFound
		}
		return model.Reservation{}, err
	}
	return rsv, nil
}

func (r *repository) GetReservations(ctx context.Context, username string) ([]model.Reservation, error) {
	query, args, err := qb.Select(reservationColumns...).
		From(reservationsTableName + " r").
		Join(booksTableName + " b on b.id = r.book_id").
		Where(sq.Eq{"r.username": username}).
		OrderBy("r.created_at").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Reservation
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateReservation(ctx context.Context, reservationUid string, req model.UpdateReservationRequest) (model.Reservation, error) {
	res, err := r.db.ExecContext(ctx,
		`update reservations set ready_at = $2 where reservation_uid = $1`,
		reservationUid, req.ReadyAt)
	if err != nil {
		return model.Reservation{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Reservation{}, err
	}
	if n == 0 {
		return model.Reservation{}, errs.ErrReservationNotFound
	}
	return r.GetReservation(ctx, reservationUid)
}

func (r *repository) DeleteReservation(ctx context.Context, reservationUid string) (*model.Hold, error) {
	var hold *model.Hold
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var row struct {
			BookID   int        `db:"book_id"`
			BookName string     `db:"book_name"`
			ReadyAt  *time.Time `db:"ready_at"`
		}
		q := `
	delete from reservations r
	using books b
	where r.reservation_uid = $1 and b.id = r.book_id
	returning r.book_id, r.ready_at, b.name as book_name`
		if err := tx.GetContext(ctx, &row, q, reservationUid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrReservationNotFound
			}
			return err
		}
		if row.ReadyAt == nil {
			return nil
		}

		// a ready hold kept one copy aside; hand it to the next waiter,
		// only otherwise put it back on the shelf
		promoted, err := promoteOldestPendingTx(ctx, tx, row.BookID, row.BookName, time.Now().UTC())
		if err != nil {
			return err
		}
		hold = promoted
		if hold == nil {
			return adjustStockTx(ctx, tx, row.BookID, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// CleanupExpiredReservations removes every hold whose pickup window lapsed
// before expiredBefore and restores one copy per hold. The single
// delete-returning statement claims each row exactly once, so concurrent
// pickups and repeated runs cannot double-process a reservation.
func (r *repository) CleanupExpiredReservations(ctx context.Context, expiredBefore time.Time) ([]model.ExpiredReservation, error) {
	q := `
	with expired as (
	    delete from reservations
	    where ready_at is not null and ready_at < $1
	    returning reservation_uid, username, book_id
	), restocked as (
	    update stock s
	    set quantity = s.quantity + e.cnt,
	        is_available = true
	    from (select book_id, count(*) as cnt from expired group by book_id) e
	    where s.book_id = e.book_id
	)
	select e.reservation_uid, e.username, b.book_uid
	from expired e
	join books b on b.id = e.book_id`

	var removed []model.ExpiredReservation
	if err := r.db.SelectContext(ctx, &removed, q, expiredBefore); err != nil {
		return nil, errors.Wrap(err, "cleanup expired reservations")
	}
	return removed, nil
}

// promoteOldestPendingTx marks the oldest pending reservation for the book
// as ready. Returns nil when nobody is waiting.
func promoteOldestPendingTx(ctx context.Context, tx *sqlx.Tx, bookID int, bookName string, readyAt time.Time) (*model.Hold, error) {
	q := `
	update reservations
	set ready_at = $2
	where id = (
	    select id from reservations
	    where book_id = $1 and ready_at is null
	    order by created_at, id
	    limit 1
	    for update skip locked
	)
	returning reservation_uid, username`

	var hold model.Hold
	if err := tx.GetContext(ctx, &hold, q, bookID, readyAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "promote reservation")
	}
	hold.BookName = bookName
	return &hold, nil
}
