package notification

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"libraryapi/internal/platform/database"
)

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

func (r *SQLRepo) Create(ctx context.Context, n *Notification) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`INSERT INTO notifications (id, user_id, kind, title, body, ref_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, string(n.Kind), n.Title, n.Body, n.RefID, n.IsRead, n.CreatedAt)
	return err
}

func (r *SQLRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ds := r.db.Goqu().From("notifications").Prepared(true).Where(goqu.C("user_id").Eq(userID))
	if unreadOnly {
		ds = ds.Where(goqu.C("is_read").Eq(false))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := ds.
		Select("id", "user_id", "kind", "title", "body", "ref_id", "is_read", "created_at").
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit)).Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}
	out := []Notification{}
	if err := r.db.SelectContext(ctx, &out, listSQL, listArgs...); err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, total, nil
}

func (r *SQLRepo) MarkRead(ctx context.Context, userID, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`), true, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *SQLRepo) UserIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var ids []string
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY id`)
	return ids, err
}
