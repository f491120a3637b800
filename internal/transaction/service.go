package transaction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libraryapi/internal/activity"
	"libraryapi/internal/fine"
	"libraryapi/internal/notification"
	"libraryapi/internal/platform/clock"
	"libraryapi/internal/platform/retry"
)

const (
	// DefaultLoanPeriod is the time between borrow and due date.
	DefaultLoanPeriod = 14 * 24 * time.Hour
	DefaultRenewDays  = 14
	maxRenewDays      = 365

	writeAttempts = 5
)

var tracer = otel.Tracer("libraryapi/internal/transaction")

type Options struct {
	LoanPeriod time.Duration
	Fines      fine.Policy
	Policy     Policy
}

// Service is the only writer of loans and, through its repository, of the
// available copy counts they hold.
type Service struct {
	repo     Repository
	users    UserDirectory
	notifier Notifier
	recorder Recorder
	now      clock.Clock
	opts     Options
}

func NewService(repo Repository, users UserDirectory, notifier Notifier, recorder Recorder, now clock.Clock, opts Options) *Service {
	if now == nil {
		now = clock.Now
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if opts.LoanPeriod <= 0 {
		opts.LoanPeriod = DefaultLoanPeriod
	}
	if opts.Fines.RatePerDay.IsZero() {
		opts.Fines = fine.NewPolicy(fine.DefaultRatePerDay)
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy
	}
	return &Service{repo: repo, users: users, notifier: notifier, recorder: recorder, now: now, opts: opts}
}

// BorrowInput is one borrow request. Actor is the authenticated caller.
type BorrowInput struct {
	BookID  string
	UserID  string
	DueDate *time.Time
	Actor   string
}

// Borrow takes one copy of the book and opens a loan for the user.
func (s *Service) Borrow(ctx context.Context, in BorrowInput) (t Transaction, err error) {
	ctx, span := s.start(ctx, "transaction.Borrow", attribute.String("book.id", in.BookID), attribute.String("user.id", in.UserID))
	defer func() { finish(span, err) }()

	if in.BookID == "" {
		return Transaction{}, invalid("bookId", "bookId is required")
	}
	if in.UserID == "" {
		return Transaction{}, invalid("userId", "userId is required")
	}
	ok, err := s.users.Exists(ctx, in.UserID)
	if err != nil {
		return Transaction{}, fmt.Errorf("look up user: %w", err)
	}
	if !ok {
		return Transaction{}, ErrUserNotFound
	}

	now := s.now()
	due := now.Add(s.opts.LoanPeriod)
	if in.DueDate != nil {
		if !in.DueDate.After(now) {
			return Transaction{}, invalid("dueDate", "dueDate must be in the future")
		}
		due = in.DueDate.UTC()
	}

	t = Transaction{
		ID:         uuid.NewString(),
		BookID:     in.BookID,
		UserID:     in.UserID,
		Type:       TypeBorrow,
		BorrowDate: now,
		DueDate:    due,
		Status:     StatusActive,
		FineAmount: decimal.Zero,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b, err := s.repo.CreateBorrow(ctx, &t)
	if err != nil {
		return Transaction{}, err
	}

	s.notifier.Notify(ctx, notification.BorrowConfirmation{
		UserID: t.UserID, TransactionID: t.ID, BookTitle: titleOf(b.Title, b.ID), DueDate: t.DueDate,
	})
	s.record(ctx, in.Actor, activity.ActionBorrow, t.ID, fmt.Sprintf("book_id=%s user_id=%s", t.BookID, t.UserID))
	return t, nil
}

// Return closes an open loan, stores the fine for a late return and puts
// the copy back on the shelf. A nil returnDate means now.
func (s *Service) Return(ctx context.Context, id string, returnDate *time.Time, actor string) (out Transaction, err error) {
	ctx, span := s.start(ctx, "transaction.Return", attribute.String("transaction.id", id))
	defer func() { finish(span, err) }()

	var title string
	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !t.Open() {
			return ErrInvalidAction
		}

		now := s.now()
		rd := now
		if returnDate != nil {
			rd = returnDate.UTC()
		}
		if rd.Before(t.BorrowDate) {
			return invalid("returnDate", "returnDate must not be before borrowDate")
		}

		t.ReturnDate = &rd
		t.Type = TypeReturn
		t.FineAmount = fine.Accrue(t.FineAmount, s.opts.Fines.Compute(t.DueDate, rd))
		t.UpdatedAt = now

		b, restored, err := s.repo.CloseLoan(ctx, &t)
		if err != nil {
			return err
		}
		if !restored {
			log.Printf("return did not restock book_id=%s transaction_id=%s", t.BookID, t.ID)
		}
		title = titleOf(b.Title, t.BookID)
		out = t
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	s.notifier.Notify(ctx, notification.ReturnConfirmation{
		UserID: out.UserID, TransactionID: out.ID, BookTitle: title,
		ReturnDate: *out.ReturnDate, FineAmount: out.FineAmount,
	})
	if out.FineAmount.IsPositive() {
		s.notifier.Notify(ctx, notification.FineNotice{
			UserID: out.UserID, TransactionID: out.ID, BookTitle: title, Amount: out.FineAmount,
		})
	}
	s.record(ctx, actor, activity.ActionReturn, out.ID, "fine="+out.FineAmount.StringFixed(2))
	return out, nil
}

// Renew pushes the due date of an open loan out by days, overdue or not.
// Any fine already stored is kept.
func (s *Service) Renew(ctx context.Context, id string, days int, actor string) (out Transaction, err error) {
	ctx, span := s.start(ctx, "transaction.Renew", attribute.String("transaction.id", id), attribute.Int("renew.days", days))
	defer func() { finish(span, err) }()

	if days == 0 {
		days = DefaultRenewDays
	}
	if days < 1 || days > maxRenewDays {
		return Transaction{}, invalid("renewDays", fmt.Sprintf("renewDays must be between 1 and %d", maxRenewDays))
	}

	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !t.Open() {
			return ErrInvalidAction
		}
		t.DueDate = t.DueDate.AddDate(0, 0, days)
		t.Type = TypeRenew
		t.Status = StatusActive
		t.UpdatedAt = s.now()
		if err := s.repo.UpdateIfVersion(ctx, &t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, actor, activity.ActionRenew, out.ID, fmt.Sprintf("days=%d", days))
	// The renewal itself always reports active. If the extended due date is
	// still past, later reads and Reconcile derive overdue again.
	return out, nil
}

// PayFine marks the stored fine as settled, or unsettled when paid is false.
func (s *Service) PayFine(ctx context.Context, id string, paid bool, actor string) (out Transaction, err error) {
	ctx, span := s.start(ctx, "transaction.PayFine", attribute.String("transaction.id", id))
	defer func() { finish(span, err) }()

	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		t.FinePaid = paid
		t.FinePaidDate = nil
		if paid {
			t.FinePaidDate = &now
		}
		t.UpdatedAt = now
		if err := s.repo.UpdateIfVersion(ctx, &t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, actor, activity.ActionPayFine, out.ID, fmt.Sprintf("paid=%t", paid))
	return withDerivedStatus(out, s.now()), nil
}

// Get returns one transaction with its status as of now.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	return withDerivedStatus(t, s.now()), nil
}

// List returns a page of transactions with statuses as of now.
func (s *Service) List(ctx context.Context, f Filter) ([]Transaction, int, error) {
	now := s.now()
	f.Now = now
	txs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	for i := range txs {
		txs[i] = withDerivedStatus(txs[i], now)
	}
	return txs, total, nil
}

// Reconcile persists the overdue status of every open loan past due and
// reports how many rows changed. Running it twice changes nothing.
func (s *Service) Reconcile(ctx context.Context, actor string) (n int64, err error) {
	ctx, span := s.start(ctx, "transaction.Reconcile")
	defer func() {
		span.SetAttributes(attribute.Int64("rows", n))
		finish(span, err)
	}()

	n, err = s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.record(ctx, actor, activity.ActionReconcile, "*", fmt.Sprintf("rows=%d", n))
	}
	return n, nil
}

// CheckEligibility applies the borrow policy to userID's open loans.
func (s *Service) CheckEligibility(ctx context.Context, userID string) error {
	c, err := s.repo.CountOpenByUser(ctx, userID, s.now())
	if err != nil {
		return err
	}
	return s.opts.Policy.Check(c)
}

// AccruedFine estimates the fine an open loan would carry if returned now.
func (s *Service) AccruedFine(t Transaction) decimal.Decimal {
	return fine.Accrue(t.FineAmount, s.opts.Fines.Compute(t.DueDate, s.now()))
}

func (s *Service) withConflictRetry(ctx context.Context, fn retry.Func) error {
	return retry.Do(ctx, fn,
		retry.WithMaxAttempts(writeAttempts),
		retry.WithBaseDelay(10*time.Millisecond),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, ErrConflict) }),
	)
}

func (s *Service) record(ctx context.Context, actor, action, id, details string) {
	s.recorder.Record(ctx, activity.Entry{
		UserID: actor, Action: action, EntityType: "transaction", EntityID: id, Details: details,
	})
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func titleOf(title, bookID string) string {
	if title != "" {
		return title
	}
	return "book " + bookID
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notification.Message) {}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, activity.Entry) {}
