package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhive/lending-service/lending/internal/errs"
	"github.com/bookhive/lending-service/lending/internal/model"
)

// LoanTerms carries the policy constants a loan is created under.
type LoanTerms struct {
	MaxActiveLoans int
	Duration       time.Duration
}

type Repository interface {
	CreateLoan(ctx context.Context, username, bookUid string, terms LoanTerms) (model.Loan, error)
	GetLoan(ctx context.Context, loanUid string) (model.Loan, error)
	GetLoans(ctx context.Context, username string) ([]model.Loan, error)
	ReturnLoan(ctx context.Context, loanUid string, fineFor func(dueDate, returnedAt time.Time) float64) (model.Loan, *model.Hold, error)
	ExtendLoan(ctx context.Context, loanUid string, extension time.Duration, maxExtensions int) (model.Loan, error)
	UpdateLoan(ctx context.Context, loanUid string, req model.UpdateLoanRequest) (model.Loan, error)
	DeleteLoan(ctx context.Context, loanUid string) (*model.Hold, error)

	CreateReservation(ctx context.Context, username, bookUid string) (model.Reservation, error)
	GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	GetReservations(ctx context.Context, username string) ([]model.Reservation, error)
	UpdateReservation(ctx context.Context, reservationUid string, req model.UpdateReservationRequest) (model.Reservation, error)
	DeleteReservation(ctx context.Context, reservationUid string) (*model.Hold, error)
	CleanupExpiredReservations(ctx context.Context, expiredBefore time.Time) ([]model.ExpiredReservation, error)

	GetStock(ctx context.Context, bookUid string) (model.StockInfo, error)
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
	booksTableName        = `books`
	stockTableName        = `stock`
	loansTableName        = `loans`
	reservationsTableName = `reservations`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("rollback", zap.Error(rbErr))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (r *repository) CreateLoan(ctx context.Context, username, bookUid string, terms LoanTerms) (model.Loan, error) {
	var loan model.Loan
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		bookID, err := getBookIDTx(ctx, tx, bookUid)
		if err != nil {
			return err
		}

		var active int
		if err := tx.QueryRowContext(ctx,
			`select count(*) from loans where username = $1 and return_date is null`,
			username).Scan(&active); err != nil {
			return errors.Wrap(err, "count active loans")
		}
		if active >= terms.MaxActiveLoans {
			return errs.ErrLoanLimit
		}

		// A ready hold for this user already keeps one copy aside: consume it
		// instead of touching the stock. The DELETE claims atomically, so the
		// expiry cleanup cannot double-process the same reservation.
		res, err := tx.ExecContext(ctx,
			`delete from reservations where username = $1 and book_id = $2 and ready_at is not null`,
			username, bookID)
		if err != nil {
			return errors.Wrap(err, "consume hold")
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if claimed == 0 {
			ok, err := decrementIfAvailableTx(ctx, tx, bookID)
			if err != nil {
				return err
			}
			if !ok {
				return errs.ErrNoCopies
			}
		}

		now := time.Now().UTC()
		q, args, err := qb.Insert(loansTableName).
			Columns("loan_uid", "username", "book_id", "loan_date", "due_date").
			Values(uuid.New(), username, bookID, now, now.Add(terms.Duration)).
			Suffix("returning id, loan_uid, loan_date, due_date, extensions_count").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &loan, q, args...); err != nil {
			r.log.Error("CreateLoan", zap.String("q", q), zap.Any("args", args))
			return err
		}
		loan.Username = username
		loan.BookUid = bookUid
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

var loanColumns = []string{
	"l.id", "l.loan_uid", "l.username", "b.book_uid",
	"l.loan_date", "l.due_date", "l.return_date", "l.fine", "l.extensions_count",
}

func getLoanTx(ctx context.Context, q sqlx.QueryerContext, loanUid string) (model.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTableName + " l").
		Join(booksTableName + " b on b.id = l.book_id").
		Where(sq.Eq{"l.loan_uid": loanUid}).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := sqlx.GetContext(ctx, q, &loan, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrLoanNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) GetLoan(ctx context.Context, loanUid string) (model.Loan, error) {
	return getLoanTx(ctx, r.db, loanUid)
}

func (r *repository) GetLoans(ctx context.Context, username string) ([]model.Loan, error) {
	query, args, err := qb.Select(loanColumns...).
		From(loansTableName + " l").
		Join(booksTableName + " b on b.id = l.book_id").
		Where(sq.Eq{"l.username": username}).
		OrderBy("l.loan_date desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) ReturnLoan(ctx context.Context, loanUid string, fineFor func(dueDate, returnedAt time.Time) float64) (model.Loan, *model.Hold, error) {
	var (
		loan model.Loan
		hold *model.Hold
	)
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var row struct {
			ID         int        `db:"id"`
			BookID     int        `db:"book_id"`
			Username   string     `db:"username"`
			BookUid    string     `db:"book_uid"`
			BookName   string     `db:"book_name"`
			LoanDate   time.Time  `db:"loan_date"`
			DueDate    time.Time  `db:"due_date"`
			ReturnDate *time.Time `db:"return_date"`
			Extensions int        `db:"extensions_count"`
		}
		q := `
	select l.id, l.book_id, l.username, b.book_uid, b.name as book_name,
	       l.loan_date, l.due_date, l.return_date, l.extensions_count
	from loans l
	join books b on b.id = l.book_id
	where l.loan_uid = $1
	for update of l`
		if err := tx.GetContext(ctx, &row, q, loanUid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrLoanNotFound
			}
			return err
		}
		if row.ReturnDate != nil {
			return errs.ErrLoanReturned
		}

		now := time.Now().UTC()
		fine := fineFor(row.DueDate, now)
		if _, err := tx.ExecContext(ctx,
			`update loans set return_date = $2, fine = $3 where id = $1`,
			row.ID, now, fine); err != nil {
			return errors.Wrap(err, "close loan")
		}

		// The returned copy goes to the oldest pending reservation if there is
		// one; only otherwise does it come back to general stock.
		promoted, err := promoteOldestPendingTx(ctx, tx, row.BookID, row.BookName, now)
		if err != nil {
			return err
		}
		hold = promoted
		if hold == nil {
			if err := adjustStockTx(ctx, tx, row.BookID, 1); err != nil {
				return err
			}
		}

		loan = model.Loan{
			ID:              row.ID,
			LoanUid:         loanUid,
			Username:        row.Username,
			BookUid:         row.BookUid,
			LoanDate:        row.LoanDate,
			DueDate:         row.DueDate,
			ReturnDate:      &now,
			Fine:            &fine,
			ExtensionsCount: row.Extensions,
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, nil, err
	}
	return loan, hold, nil
}

func (r *repository) ExtendLoan(ctx context.Context, loanUid string, extension time.Duration, maxExtensions int) (model.Loan, error) {
	q := `
	update loans
	set due_date = due_date + make_interval(hours => $2),
	    extensions_count = extensions_count + 1
	where loan_uid = $1 and return_date is null and extensions_count < $3
	returning due_date, extensions_count`

	var loan model.Loan
	err := r.db.QueryRowContext(ctx, q, loanUid, int(extension.Hours()), maxExtensions).
		Scan(&loan.DueDate, &loan.ExtensionsCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// the guarded update matches nothing for a vanished or closed
			// loan too, so re-read before blaming the limit
			current, gerr := getLoanTx(ctx, r.db, loanUid)
			if gerr != nil {
				return model.Loan{}, gerr
			}
			if current.ReturnDate != nil {
				return model.Loan{}, errs.ErrLoanReturned
			}
			return model.Loan{}, errs.ErrMaxExtensions
		}
		return model.Loan{}, err
	}
	loan.LoanUid = loanUid
	return loan, nil
}

func (r *repository) UpdateLoan(ctx context.Context, loanUid string, req model.UpdateLoanRequest) (model.Loan, error) {
	var loan model.Loan
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		upd := qb.Update(loansTableName).Where(sq.Eq{"loan_uid": loanUid})
		changed := false
		if req.DueDate != nil {
			upd = upd.Set("due_date", *req.DueDate)
			changed = true
		}
		if req.Fine != nil {
			upd = upd.Set("fine", *req.Fine)
			changed = true
		}
		if changed {
			query, args, err := upd.ToSql()
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return errs.ErrLoanNotFound
			}
		}
		var err error
		loan, err = getLoanTx(ctx, tx, loanUid)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) DeleteLoan(ctx context.Context, loanUid string) (*model.Hold, error) {
	var hold *model.Hold
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var row struct {
			BookID     int        `db:"book_id"`
			BookName   string     `db:"book_name"`
			ReturnDate *time.Time `db:"return_date"`
		}
		q := `
	delete from loans l
	using books b
	where l.loan_uid = $1 and b.id = l.book_id
	returning l.book_id, l.return_date, b.name as book_name`
		if err := tx.GetContext(ctx, &row, q, loanUid); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrLoanNotFound
			}
			return err
		}
		if row.ReturnDate != nil {
			return nil
		}

		// removing an active loan frees a copy; the oldest pending
		// reservation gets it before general stock does
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
