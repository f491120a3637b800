// Package reminder runs the periodic pass that reconciles overdue loans and
// nudges borrowers about upcoming and missed due dates.
package reminder

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"libraryapi/internal/book"
	"libraryapi/internal/fine"
	"libraryapi/internal/notification"
	"libraryapi/internal/platform/clock"
	"libraryapi/internal/transaction"
)

const pageSize = 200

type Loans interface {
	Reconcile(ctx context.Context, actor string) (int64, error)
	List(ctx context.Context, f transaction.Filter) ([]transaction.Transaction, int, error)
	AccruedFine(t transaction.Transaction) decimal.Decimal
}

type Books interface {
	Get(ctx context.Context, id string) (book.Book, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message)
}

// TokenPurger drops revoked tokens that have expired anyway.
type TokenPurger interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Marks records sent reminders. MarkSent reports false when the same
// (transaction, kind, key) was recorded before.
type Marks interface {
	MarkSent(ctx context.Context, transactionID, kind, key string, at time.Time) (bool, error)
}

// Result summarizes one pass. Skipped counts loans whose reminder or alert
// already went out.
type Result struct {
	Reconciled int64
	Reminders  int
	Alerts     int
	Skipped    int
	Purged     int64
}

type Worker struct {
	loans    Loans
	books    Books
	notifier Notifier
	tokens   TokenPurger
	marks    Marks
	now      clock.Clock
	interval time.Duration
	lead     time.Duration
}

// NewWorker builds the periodic pass. A due reminder goes out once per due
// date and an overdue alert at most once per UTC day per loan; with nil
// marks every pass notifies again.
func NewWorker(loans Loans, books Books, notifier Notifier, tokens TokenPurger, marks Marks, now clock.Clock, interval, lead time.Duration) *Worker {
	if now == nil {
		now = clock.Now
	}
	return &Worker{
		loans: loans, books: books, notifier: notifier, tokens: tokens, marks: marks,
		now: now, interval: interval, lead: lead,
	}
}

// Run checks once immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	res, err := w.Check(ctx)
	if err != nil {
		log.Printf("reminder pass failed err=%v", err)
		return
	}
	log.Printf("reminder pass reconciled=%d reminders=%d alerts=%d skipped=%d purged=%d",
		res.Reconciled, res.Reminders, res.Alerts, res.Skipped, res.Purged)
}

// Check runs a single pass. Notification delivery is fire-and-forget, so
// only reconcile and listing failures are returned.
func (w *Worker) Check(ctx context.Context) (Result, error) {
	var res Result
	n, err := w.loans.Reconcile(ctx, "")
	if err != nil {
		return res, err
	}
	res.Reconciled = n

	now := w.now()
	horizon := now.Add(w.lead)
	titles := map[string]string{}
	for offset := 0; ; offset += pageSize {
		loans, total, err := w.loans.List(ctx, transaction.Filter{DueBefore: &horizon, Limit: pageSize, Offset: offset})
		if err != nil {
			return res, err
		}
		for _, l := range loans {
			overdue := now.After(l.DueDate)
			switch {
			case !w.claim(ctx, l, overdue, now):
				res.Skipped++
			case overdue:
				w.alert(ctx, l, now, titles)
				res.Alerts++
			default:
				w.remind(ctx, l, titles)
				res.Reminders++
			}
		}
		if len(loans) == 0 || offset+len(loans) >= total {
			break
		}
	}

	if w.tokens != nil {
		purged, err := w.tokens.CleanupExpired(ctx)
		if err != nil {
			log.Printf("token blacklist cleanup failed err=%v", err)
		}
		res.Purged = purged
	}
	return res, nil
}

// claim records the notification about to be sent for l and reports
// whether it is still due. A failed write skips the loan until the next pass.
func (w *Worker) claim(ctx context.Context, l transaction.Transaction, overdue bool, now time.Time) bool {
	if w.marks == nil {
		return true
	}
	kind, key := notification.KindDueReminder, l.DueDate.UTC().Format(time.RFC3339)
	if overdue {
		kind, key = notification.KindOverdueAlert, now.UTC().Format(time.DateOnly)
	}
	fresh, err := w.marks.MarkSent(ctx, l.ID, string(kind), key, now)
	if err != nil {
		log.Printf("reminder mark failed transaction_id=%s kind=%s err=%v", l.ID, kind, err)
		return false
	}
	return fresh
}

func (w *Worker) alert(ctx context.Context, l transaction.Transaction, now time.Time, titles map[string]string) {
	w.notifier.Notify(ctx, notification.OverdueAlert{
		UserID:        l.UserID,
		TransactionID: l.ID,
		BookTitle:     w.title(ctx, l.BookID, titles),
		DueDate:       l.DueDate,
		DaysOverdue:   fine.DaysLate(l.DueDate, now),
		AccruedFine:   w.loans.AccruedFine(l),
	})
}

func (w *Worker) remind(ctx context.Context, l transaction.Transaction, titles map[string]string) {
	w.notifier.Notify(ctx, notification.DueReminder{
		UserID: l.UserID, TransactionID: l.ID, BookTitle: w.title(ctx, l.BookID, titles), DueDate: l.DueDate,
	})
}

func (w *Worker) title(ctx context.Context, bookID string, titles map[string]string) string {
	if t, ok := titles[bookID]; ok {
		return t
	}
	t := "book " + bookID
	if b, err := w.books.Get(ctx, bookID); err == nil {
		t = b.Title
	}
	titles[bookID] = t
	return t
}
