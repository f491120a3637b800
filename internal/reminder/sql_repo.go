package reminder

import (
	"context"
	"time"

	"libraryapi/internal/platform/database"
)

// SQLRepo remembers which reminders went out so repeated passes stay quiet.
type SQLRepo struct {
	db      *database.DB
	timeout time.Duration
}

func NewSQLRepo(db *database.DB, timeout time.Duration) *SQLRepo {
	return &SQLRepo{db: db, timeout: timeout}
}

// MarkSent records (transactionID, kind, key) and reports whether it was
// new. A false result means the notification was already sent.
func (r *SQLRepo) MarkSent(ctx context.Context, transactionID, kind, key string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`INSERT INTO reminder_marks (transaction_id, kind, mark_key, sent_at)
		VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, transactionID, kind, key, at.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
