package activity

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

func (r *SQLRepo) Insert(ctx context.Context, e Entry) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`INSERT INTO activity_logs (id, user_id, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.Action, e.EntityType, e.EntityID, e.Details, e.CreatedAt)
	return err
}

// List pages with a keyset on (created_at, id) so inserts never shift pages.
func (r *SQLRepo) List(ctx context.Context, f Filter) ([]Entry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ds := r.db.Goqu().From("activity_logs").Prepared(true).
		Select("id", "user_id", "action", "entity_type", "entity_id", "details", "created_at")
	if f.UserID != "" {
		ds = ds.Where(goqu.C("user_id").Eq(f.UserID))
	}
	if f.After.AfterID != "" {
		after, err := time.Parse(time.RFC3339Nano, f.After.CreatedAt)
		if err != nil {
			return nil, err
		}
		ds = ds.Where(goqu.Or(
			goqu.C("created_at").Lt(after.UTC()),
			goqu.And(goqu.C("created_at").Eq(after.UTC()), goqu.C("id").Lt(f.After.AfterID)),
		))
	}

	query, args, err := ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).Limit(uint(f.Limit)).ToSQL()
	if err != nil {
		return nil, err
	}
	out := []Entry{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}
