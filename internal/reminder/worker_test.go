package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"libraryapi/internal/auth"
	"libraryapi/internal/book"
	"libraryapi/internal/notification"
	"libraryapi/internal/platform/clock"
	"libraryapi/internal/testutil"
	"libraryapi/internal/transaction"
	"libraryapi/internal/user"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, msg notification.Message) {
	m.Called(ctx, msg)
}

type env struct {
	worker   *Worker
	notifier *mockNotifier
	loans    *transaction.Service
	clock    *clock.Manual
	bookID   string
	userID   string
	tokens   *auth.BlacklistRepo
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	clk := clock.NewManual(t0)

	books := book.NewService(book.NewSQLRepo(db, time.Second), clk.Now)
	b, err := books.Create(ctx, book.NewBook{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719", TotalCopies: 5})
	require.NoError(t, err)
	users := user.NewService(user.NewSQLRepo(db, time.Second), clk.Now)
	u, err := users.Register(ctx, user.NewUser{Email: "ann@example.com", Name: "Ann", Password: "Secret123!"})
	require.NoError(t, err)

	loans := transaction.NewService(transaction.NewSQLRepo(db, time.Second), users, nil, nil, clk.Now, transaction.Options{})
	notifier := &mockNotifier{}
	tokens := auth.NewBlacklistRepo(db, time.Second, clk.Now)
	w := NewWorker(loans, books, notifier, tokens, NewSQLRepo(db, time.Second), clk.Now, time.Hour, 24*time.Hour)
	return &env{worker: w, notifier: notifier, loans: loans, clock: clk, bookID: b.ID, userID: u.ID, tokens: tokens}
}

func (e *env) borrow(t *testing.T, due time.Time) transaction.Transaction {
	t.Helper()
	tx, err := e.loans.Borrow(context.Background(), transaction.BorrowInput{BookID: e.bookID, UserID: e.userID, DueDate: &due})
	require.NoError(t, err)
	return tx
}

func TestWorker_Check(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	soon := e.borrow(t, t0.Add(30*time.Hour))
	late := e.borrow(t, t0.Add(48*time.Hour))
	e.borrow(t, t0.AddDate(0, 0, 10))
	returned := e.borrow(t, t0.Add(40*time.Hour))
	_, err := e.loans.Return(ctx, returned.ID, nil, e.userID)
	require.NoError(t, err)

	require.NoError(t, e.tokens.AddToken(ctx, "old-jti", e.userID, t0.Add(time.Hour)))

	// three days on: late is a day overdue, soon is overdue too, nothing due within a day
	e.clock.Set(t0.Add(72 * time.Hour))
	e.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(m notification.OverdueAlert) bool {
		return m.TransactionID == late.ID && m.DaysOverdue == 1 && m.AccruedFine.StringFixed(2) == "0.50" && m.BookTitle == "Dune"
	})).Return().Once()
	e.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(m notification.OverdueAlert) bool {
		return m.TransactionID == soon.ID && m.DaysOverdue == 2
	})).Return().Once()

	res, err := e.worker.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Reconciled: 2, Alerts: 2, Purged: 1}, res)
	e.notifier.AssertExpectations(t)

	stored, _, err := e.loans.List(ctx, transaction.Filter{UserID: e.userID, Status: transaction.StatusOverdue})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestWorker_DueReminder(t *testing.T) {
	e := newEnv(t)
	tx := e.borrow(t, t0.Add(20*time.Hour))
	e.borrow(t, t0.Add(25*time.Hour))

	e.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(m notification.DueReminder) bool {
		return m.TransactionID == tx.ID && m.DueDate.Equal(tx.DueDate) && m.Validate() == nil
	})).Return().Once()

	res, err := e.worker.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reminders)
	assert.Zero(t, res.Alerts)
	e.notifier.AssertExpectations(t)
}

func TestWorker_OverdueAlertOncePerDay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.borrow(t, t0.Add(2*time.Hour))

	alertFor := func(days int64) any {
		return mock.MatchedBy(func(m notification.OverdueAlert) bool {
			return m.TransactionID == tx.ID && m.DaysOverdue == days
		})
	}
	e.notifier.On("Notify", mock.Anything, alertFor(3)).Return().Once()

	e.clock.Set(t0.Add(72 * time.Hour))
	for pass := 0; pass < 3; pass++ {
		res, err := e.worker.Check(ctx)
		require.NoError(t, err)
		if pass == 0 {
			assert.Equal(t, 1, res.Alerts)
		} else {
			assert.Zero(t, res.Alerts, "pass %d", pass)
			assert.Equal(t, 1, res.Skipped, "pass %d", pass)
		}
		e.clock.Advance(time.Hour)
	}
	e.notifier.AssertNumberOfCalls(t, "Notify", 1)

	e.notifier.On("Notify", mock.Anything, alertFor(4)).Return().Once()
	e.clock.Set(t0.Add(96 * time.Hour))
	res, err := e.worker.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Alerts)
	e.notifier.AssertExpectations(t)
}

func TestWorker_DueReminderOncePerDueDate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tx := e.borrow(t, t0.Add(20*time.Hour))

	e.notifier.On("Notify", mock.Anything, mock.AnythingOfType("notification.DueReminder")).Return()

	for pass := 0; pass < 2; pass++ {
		_, err := e.worker.Check(ctx)
		require.NoError(t, err)
		e.clock.Advance(time.Hour)
	}
	e.notifier.AssertNumberOfCalls(t, "Notify", 1)

	// renewal moves the due date, which earns a fresh reminder
	_, err := e.loans.Renew(ctx, tx.ID, 1, e.userID)
	require.NoError(t, err)
	e.clock.Set(t0.Add(22 * time.Hour))
	_, err = e.worker.Check(ctx)
	require.NoError(t, err)
	e.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		e.worker.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_DisabledInterval(t *testing.T) {
	w := NewWorker(nil, nil, nil, nil, nil, nil, 0, time.Hour)
	w.Run(context.Background())
}
