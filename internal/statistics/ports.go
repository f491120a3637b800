package statistics

import (
	"context"
	"time"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=statistics

// Repository runs the individual rollup queries. Each method is one
// independently retried and timed sub-query.
type Repository interface {
	Ping(ctx context.Context) error
	// Inventory fills the catalog fields of Overview.
	Inventory(ctx context.Context) (Overview, error)
	CountUsers(ctx context.Context) (int, error)
	CountOpenLoans(ctx context.Context, now time.Time) (LoanCounts, error)
	// LoanEvents returns loans borrowed or returned at or after since.
	LoanEvents(ctx context.Context, since time.Time) ([]LoanEvent, error)
	TopCategories(ctx context.Context, since time.Time, limit int) ([]CategoryCount, error)
	TopBorrowers(ctx context.Context, since time.Time, limit int) ([]BorrowerCount, error)
	PopularBooks(ctx context.Context, since time.Time, limit int) ([]BookCount, error)
	// Finances sums fines on loans returned at or after since.
	Finances(ctx context.Context, since time.Time) (Finances, error)
}
