package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"libraryapi/internal/book"
	"libraryapi/internal/platform/database"
)

var txColumns = []any{
	"id", "book_id", "user_id", "type", "borrow_date", "due_date", "return_date", "status",
	"fine_amount", "fine_paid", "fine_paid_date", "version", "created_at", "updated_at",
}

const selectTransaction = `SELECT id, book_id, user_id, type, borrow_date, due_date, return_date,
	status, fine_amount, fine_paid, fine_paid_date, version, created_at, updated_at FROM transactions`

// SQLRepo stores the ledger next to the books table so borrow and return
// can move both in one database transaction.
type SQLRepo struct {
	db      *database.DB
	timeout time.Duration
}

func NewSQLRepo(db *database.DB, timeout time.Duration) *SQLRepo {
	return &SQLRepo{db: db, timeout: timeout}
}

func (r *SQLRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *SQLRepo) CreateBorrow(ctx context.Context, t *Transaction) (book.Book, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var b book.Book
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		b, err = book.TakeCopy(ctx, tx, t.BookID, t.CreatedAt)
		switch {
		case errors.Is(err, book.ErrNotFound):
			return ErrBookNotFound
		case errors.Is(err, book.ErrNoCopiesAvailable):
			return ErrNoCopiesAvailable
		case errors.Is(err, book.ErrNotLendable):
			return ErrBookNotLendable
		case err != nil:
			return fmt.Errorf("take copy: %w", err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO transactions (id, book_id, user_id, type,
			borrow_date, due_date, return_date, status, fine_amount, fine_paid, fine_paid_date,
			version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			t.ID, t.BookID, t.UserID, string(t.Type), t.BorrowDate, t.DueDate, t.ReturnDate,
			string(t.Status), t.FineAmount, t.FinePaid, t.FinePaidDate, t.Version, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return book.Book{}, err
	}
	return b, nil
}

func (r *SQLRepo) CloseLoan(ctx context.Context, t *Transaction) (book.Book, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		b        book.Book
		restored bool
	)
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE transactions SET type = ?, return_date = ?,
			status = ?, fine_amount = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND status IN ('active', 'overdue')`),
			string(t.Type), t.ReturnDate, string(StatusReturned), t.FineAmount, t.UpdatedAt, t.ID, t.Version)
		if err != nil {
			return fmt.Errorf("close loan: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return missedWrite(ctx, tx, t.ID)
		}

		restored, err = book.ReturnCopy(ctx, tx, t.BookID, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("return copy: %w", err)
		}
		b, err = book.Lookup(ctx, tx, t.BookID)
		if errors.Is(err, book.ErrNotFound) {
			// The title was removed from the catalog while on loan.
			b, err = book.Book{ID: t.BookID}, nil
		}
		return err
	})
	if err != nil {
		return book.Book{}, false, err
	}
	t.Status = StatusReturned
	t.Version++
	return b, restored, nil
}

func (r *SQLRepo) UpdateIfVersion(ctx context.Context, t *Transaction) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE transactions SET type = ?, due_date = ?,
		status = ?, fine_amount = ?, fine_paid = ?, fine_paid_date = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`),
		string(t.Type), t.DueDate, string(t.Status), t.FineAmount, t.FinePaid, t.FinePaidDate,
		t.UpdatedAt, t.ID, t.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := getByID(ctx, r.db, t.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	t.Version++
	return nil
}

func (r *SQLRepo) GetByID(ctx context.Context, id string) (Transaction, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return getByID(ctx, r.db, id)
}

func (r *SQLRepo) List(ctx context.Context, f Filter) ([]Transaction, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ds := r.db.Goqu().From("transactions").Prepared(true)
	if f.UserID != "" {
		ds = ds.Where(goqu.C("user_id").Eq(f.UserID))
	}
	if f.BookID != "" {
		ds = ds.Where(goqu.C("book_id").Eq(f.BookID))
	}
	switch f.Status {
	case StatusReturned:
		ds = ds.Where(goqu.C("status").Eq(string(StatusReturned)))
	case StatusOverdue:
		ds = ds.Where(goqu.Or(
			goqu.C("status").Eq(string(StatusOverdue)),
			goqu.And(goqu.C("status").Eq(string(StatusActive)), goqu.C("due_date").Lt(f.Now)),
		))
	case StatusActive:
		ds = ds.Where(goqu.C("status").Eq(string(StatusActive)), goqu.C("due_date").Gte(f.Now))
	}
	if f.DueBefore != nil {
		ds = ds.Where(
			goqu.C("status").In(string(StatusActive), string(StatusOverdue)),
			goqu.C("due_date").Lte(*f.DueBefore),
		)
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	listDS := ds.Select(txColumns...).Order(goqu.C("borrow_date").Desc(), goqu.C("id").Asc())
	if f.Limit > 0 {
		listDS = listDS.Limit(uint(f.Limit)).Offset(uint(f.Offset))
	}
	listSQL, listArgs, err := listDS.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	txs := []Transaction{}
	if err := r.db.SelectContext(ctx, &txs, listSQL, listArgs...); err != nil {
		return nil, 0, err
	}
	for i := range txs {
		txs[i].normalize()
	}
	return txs, total, nil
}

func (r *SQLRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE transactions SET status = 'overdue',
		version = version + 1, updated_at = ?
		WHERE status = 'active' AND return_date IS NULL AND due_date < ?`), now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepo) CountOpenByUser(ctx context.Context, userID string, now time.Time) (LoanCounts, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var c LoanCounts
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT
		COALESCE(SUM(CASE WHEN status = 'overdue' OR due_date < ? THEN 0 ELSE 1 END), 0) AS active,
		COALESCE(SUM(CASE WHEN status = 'overdue' OR due_date < ? THEN 1 ELSE 0 END), 0) AS overdue
		FROM transactions WHERE user_id = ? AND status IN ('active', 'overdue')`), now, now, userID)
	return c, err
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func getByID(ctx context.Context, q queryer, id string) (Transaction, error) {
	var t Transaction
	err := q.GetContext(ctx, &t, q.Rebind(selectTransaction+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	t.normalize()
	return t, nil
}

// missedWrite explains a close that matched no row.
func missedWrite(ctx context.Context, q queryer, id string) error {
	cur, err := getByID(ctx, q, id)
	if err != nil {
		return err
	}
	if !cur.Open() {
		return ErrInvalidAction
	}
	return ErrConflict
}
