package auth

import (
	"context"
	"time"

	"libraryapi/internal/platform/database"
)

// BlacklistRepo records access tokens revoked by logout until they expire.
type BlacklistRepo struct {
	db      *database.DB
	timeout time.Duration
	now     func() time.Time
}

func NewBlacklistRepo(db *database.DB, timeout time.Duration, now func() time.Time) *BlacklistRepo {
	return &BlacklistRepo{db: db, timeout: timeout, now: now}
}

func (r *BlacklistRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *BlacklistRepo) AddToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`INSERT INTO token_blacklist (jti, user_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (jti) DO NOTHING`)
	_, err := r.db.ExecContext(ctx, query, jti, userID, expiresAt.UTC())
	return err
}

func (r *BlacklistRepo) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM token_blacklist WHERE jti = ? AND expires_at > ?`)
	err := r.db.GetContext(ctx, &n, query, jti, r.now())
	return n > 0, err
}

// CleanupExpired drops revocations whose token could no longer be used anyway.
func (r *BlacklistRepo) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM token_blacklist WHERE expires_at < ?`), r.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
