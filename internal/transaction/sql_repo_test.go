package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryapi/internal/book"
	"libraryapi/internal/platform/database"
	"libraryapi/internal/testutil"
)

func newTestRepo(t *testing.T) (*SQLRepo, *database.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return NewSQLRepo(db, 5*time.Second), db
}

func seedBook(t *testing.T, db *database.DB, id string, copies int) {
	t.Helper()
	repo := book.NewSQLRepo(db, 5*time.Second)
	require.NoError(t, repo.Create(context.Background(), &book.Book{
		ID: id, Title: "Title " + id, Author: "Author", ISBN: "97800000000" + id[len(id)-2:],
		TotalCopies: copies, AvailableCopies: copies, Status: book.StatusAvailable, Version: 1,
		CreatedAt: t0, UpdatedAt: t0,
	}))
}

func seedUser(t *testing.T, db *database.DB, id, role string) {
	t.Helper()
	_, err := db.Exec(db.Rebind(`INSERT INTO users (id, email, name, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, 'x', ?, ?, ?)`), id, id+"@example.com", id, role, t0, t0)
	require.NoError(t, err)
}

func getBook(t *testing.T, db *database.DB, id string) book.Book {
	t.Helper()
	b, err := book.NewSQLRepo(db, 5*time.Second).GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

func newLoan(id, bookID, userID string, borrowed time.Time) *Transaction {
	return &Transaction{
		ID: id, BookID: bookID, UserID: userID, Type: TypeBorrow,
		BorrowDate: borrowed, DueDate: borrowed.Add(DefaultLoanPeriod), Status: StatusActive,
		FineAmount: decimal.Zero, Version: 1, CreatedAt: borrowed, UpdatedAt: borrowed,
	}
}

func TestSQLRepo_CreateBorrowAndGet(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, db, "b01", 1)

	b, err := repo.CreateBorrow(ctx, newLoan("t1", "b01", "u1", t0))
	require.NoError(t, err)
	assert.Equal(t, 0, b.AvailableCopies)
	assert.Equal(t, book.StatusBorrowed, b.Status)

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.True(t, got.BorrowDate.Equal(t0))
	assert.True(t, got.DueDate.Equal(t0.Add(DefaultLoanPeriod)))
	assert.Nil(t, got.ReturnDate)
	assert.True(t, got.FineAmount.IsZero())
	assert.False(t, got.FinePaid)

	_, err = repo.CreateBorrow(ctx, newLoan("t2", "b01", "u2", t0))
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)
	_, err = repo.GetByID(ctx, "t2")
	assert.ErrorIs(t, err, ErrNotFound, "failed borrow leaves no ledger row")

	_, err = repo.CreateBorrow(ctx, newLoan("t3", "missing", "u1", t0))
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestSQLRepo_CloseLoan(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, db, "b01", 1)
	loan := newLoan("t1", "b01", "u1", t0)
	_, err := repo.CreateBorrow(ctx, loan)
	require.NoError(t, err)

	rd := loan.DueDate.Add(48 * time.Hour)
	loan.ReturnDate = &rd
	loan.Type = TypeReturn
	loan.FineAmount = decimal.RequireFromString("1.00")
	loan.UpdatedAt = rd

	b, restored, err := repo.CloseLoan(ctx, loan)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, 1, b.AvailableCopies)
	assert.Equal(t, book.StatusAvailable, b.Status)
	assert.EqualValues(t, 2, loan.Version)

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, got.Status)
	assert.Equal(t, TypeReturn, got.Type)
	require.NotNil(t, got.ReturnDate)
	assert.True(t, got.ReturnDate.Equal(rd))
	assert.True(t, got.FineAmount.Equal(decimal.RequireFromString("1")))

	// closing again never restocks a second copy
	_, _, err = repo.CloseLoan(ctx, &got)
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, 1, getBook(t, db, "b01").AvailableCopies)
}

func TestSQLRepo_CloseLoan_StaleVersion(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, db, "b01", 2)
	loan := newLoan("t1", "b01", "u1", t0)
	_, err := repo.CreateBorrow(ctx, loan)
	require.NoError(t, err)

	renewed := *loan
	renewed.DueDate = renewed.DueDate.AddDate(0, 0, 14)
	require.NoError(t, repo.UpdateIfVersion(ctx, &renewed))

	rd := t0.Add(time.Hour)
	loan.ReturnDate = &rd
	_, _, err = repo.CloseLoan(ctx, loan)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, getBook(t, db, "b01").AvailableCopies, "rolled back")
}

func TestSQLRepo_CloseLoan_BookDeleted(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, db, "b01", 1)
	loan := newLoan("t1", "b01", "u1", t0)
	_, err := repo.CreateBorrow(ctx, loan)
	require.NoError(t, err)
	require.NoError(t, book.NewSQLRepo(db, time.Second).Delete(ctx, "b01"))

	rd := t0.Add(time.Hour)
	loan.ReturnDate = &rd
	b, restored, err := repo.CloseLoan(ctx, loan)
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, "b01", b.ID)
}

func TestSQLRepo_UpdateIfVersion(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, db, "b01", 1)
	loan := newLoan("t1", "b01", "u1", t0)
	_, err := repo.CreateBorrow(ctx, loan)
	require.NoError(t, err)

	paid := t0.Add(time.Hour)
	loan.FinePaid = true
	loan.FinePaidDate = &paid
	require.NoError(t, repo.UpdateIfVersion(ctx, loan))
	assert.EqualValues(t, 2, loan.Version)

	stale := *loan
	stale.Version = 1
	assert.ErrorIs(t, repo.UpdateIfVersion(ctx, &stale), ErrConflict)

	ghost := *loan
	ghost.ID = "missing"
	assert.ErrorIs(t, repo.UpdateIfVersion(ctx, &ghost), ErrNotFound)

	got, err := repo.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.FinePaid)
	require.NotNil(t, got.FinePaidDate)
	assert.True(t, got.FinePaidDate.Equal(paid))
}

func TestSQLRepo_ListStatusSemantics(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, db, "b01", 5)

	late := newLoan("late", "b01", "u1", t0)
	fresh := newLoan("fresh", "b01", "u1", t0.Add(20*24*time.Hour))
	other := newLoan("other", "b01", "u2", t0.Add(20*24*time.Hour))
	done := newLoan("done", "b01", "u1", t0.Add(time.Hour))
	for _, l := range []*Transaction{late, fresh, other, done} {
		_, err := repo.CreateBorrow(ctx, l)
		require.NoError(t, err)
	}
	rd := t0.Add(2 * time.Hour)
	done.ReturnDate = &rd
	_, _, err := repo.CloseLoan(ctx, done)
	require.NoError(t, err)

	now := t0.Add(21 * 24 * time.Hour)
	ids := func(f Filter) []string {
		f.Now = now
		txs, _, err := repo.List(ctx, f)
		require.NoError(t, err)
		out := make([]string, 0, len(txs))
		for _, tx := range txs {
			out = append(out, tx.ID)
		}
		return out
	}

	assert.Equal(t, []string{"fresh", "done", "late"}, ids(Filter{UserID: "u1"}))
	assert.Equal(t, []string{"late"}, ids(Filter{UserID: "u1", Status: StatusOverdue}))
	assert.Equal(t, []string{"fresh"}, ids(Filter{UserID: "u1", Status: StatusActive}))
	assert.Equal(t, []string{"done"}, ids(Filter{Status: StatusReturned}))
	assert.Len(t, ids(Filter{}), 4)

	dueBefore := now.Add(24 * time.Hour)
	assert.Equal(t, []string{"late"}, ids(Filter{DueBefore: &dueBefore}))

	txs, total, err := repo.List(ctx, Filter{Now: now, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, txs, 2)
}

func TestSQLRepo_MarkOverdueAndCounts(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	seedBook(t, db, "b01", 3)
	for _, l := range []*Transaction{
		newLoan("a", "b01", "u1", t0),
		newLoan("b", "b01", "u1", t0.Add(10*24*time.Hour)),
	} {
		_, err := repo.CreateBorrow(ctx, l)
		require.NoError(t, err)
	}
	now := t0.Add(15 * 24 * time.Hour)

	c, err := repo.CountOpenByUser(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, LoanCounts{Active: 1, Overdue: 1}, c)

	n, err := repo.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = repo.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n, "idempotent")

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, got.Status)

	c, err = repo.CountOpenByUser(ctx, "nobody", now)
	require.NoError(t, err)
	assert.Equal(t, LoanCounts{}, c)
}
