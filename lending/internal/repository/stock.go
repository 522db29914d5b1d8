package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/model"
)

func (r *repository) GetStock(ctx context.Context, bookUid string) (model.StockInfo, error) {
	q := `
	select b.book_uid, s.quantity, s.is_available
	from stock s
	join books b on b.id = s.book_id
	where b.book_uid = $1`

	var info model.StockInfo
	if err := r.db.GetContext(ctx, &info, q, bookUid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StockInfo{}, errs.ErrBookNotFound
		}
		return model.StockInfo{}, err
	}
	return info, nil
}

func getBookIDTx(ctx context.Context, tx *sqlx.Tx, bookUid string) (int, error) {
	var id int
	if err := tx.QueryRowContext(ctx,
		`select id from books where book_uid = $1`, bookUid).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errs.ErrBookNotFound
		}
		return 0, err
	}
	return id, nil
}

// decrementIfAvailableTx takes one copy off the shelf iff at least one is
// left. The conditional update is what keeps two borrowers from both getting
// the last copy: only one of the concurrent statements matches the
// quantity > 0 predicate.
func decrementIfAvailableTx(ctx context.Context, tx *sqlx.Tx, bookID int) (bool, error) {
	res, err := tx.ExecContext(ctx, `
	update stock
	set quantity = quantity - 1,
	    is_available = quantity - 1 > 0
	where book_id = $1 and quantity > 0`, bookID)
	if err != nil {
		return false, errors.Wrap(err, "decrement stock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// adjustStockTx applies delta with a floor at zero and recomputes the
// availability flag in the same statement.
func adjustStockTx(ctx context.Context, tx *sqlx.Tx, bookID, delta int) error {
	_, err := tx.ExecContext(ctx, `
	update stock
	set quantity = greatest(0, quantity + $2),
	    is_available = greatest(0, quantity + $2) > 0
	where book_id = $1`, bookID, delta)
	return errors.Wrap(err, "adjust stock")
}
