package transaction

import (
	"context"
	"time"

	"libraryapi/internal/activity"
	"libraryapi/internal/book"
	"libraryapi/internal/notification"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=transaction

// Repository is the ledger store. The two inventory-moving methods commit
// the ledger row and the book's copy count in one database transaction.
type Repository interface {
	// CreateBorrow takes one copy of t.BookID and inserts t.
	CreateBorrow(ctx context.Context, t *Transaction) (book.Book, error)
	// CloseLoan persists t as returned, if it is still open at t.Version,
	// and puts the copy back. The bool reports whether the shelf count moved.
	CloseLoan(ctx context.Context, t *Transaction) (book.Book, bool, error)
	// UpdateIfVersion persists due date, status and fine fields of t only if
	// the stored version still equals t.Version.
	UpdateIfVersion(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, f Filter) ([]Transaction, int, error)
	// MarkOverdue persists active to overdue for open loans due before now.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	CountOpenByUser(ctx context.Context, userID string, now time.Time) (LoanCounts, error)
}

type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Notifier and Recorder are fire-and-forget sinks.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message)
}

type Recorder interface {
	Record(ctx context.Context, e activity.Entry)
}
