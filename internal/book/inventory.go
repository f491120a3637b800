package book

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Inventory writes are the only paths that move availableCopies by one.
// They run on the caller's transaction so the copy count and the ledger
// row commit together.

const takeCopySQL = `UPDATE books SET
	available_copies = available_copies - 1,
	status = CASE WHEN available_copies - 1 = 0 THEN 'borrowed' ELSE 'available' END,
	version = version + 1,
	updated_at = ?
	WHERE id = ? AND available_copies > 0 AND status NOT IN ('maintenance', 'reserved')`

const returnCopySQL = `UPDATE books SET
	available_copies = available_copies + 1,
	status = CASE
		WHEN status IN ('maintenance', 'reserved') THEN status
		ELSE 'available' END,
	version = version + 1,
	updated_at = ?
	WHERE id = ? AND available_copies < total_copies`

// TakeCopy atomically decrements availableCopies if it is positive and the
// book is not held for maintenance or reservation (ErrNotLendable).
func TakeCopy(ctx context.Context, tx *sqlx.Tx, bookID string, now time.Time) (Book, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(takeCopySQL), now, bookID)
	if err != nil {
		return Book{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Book{}, err
	}
	b, err := getByID(ctx, tx, bookID)
	if err != nil {
		return Book{}, err
	}
	if n == 0 {
		if !b.Lendable() {
			return b, ErrNotLendable
		}
		return b, ErrNoCopiesAvailable
	}
	return b, nil
}

// ReturnCopy atomically increments availableCopies without passing
// totalCopies. It reports whether a copy was put back; a deleted book or a
// shelf that is already full leaves the inventory untouched.
func ReturnCopy(ctx context.Context, tx *sqlx.Tx, bookID string, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(returnCopySQL), now, bookID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Lookup reads a book inside the caller's transaction.
func Lookup(ctx context.Context, tx *sqlx.Tx, bookID string) (Book, error) {
	return getByID(ctx, tx, bookID)
}
