package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"libraryapi/internal/platform/database"
)

// SQLRepo answers rollup queries. Timeouts come from the caller; the
// aggregator gives every sub-query its own deadline.
type SQLRepo struct {
	db *database.DB
}

func NewSQLRepo(db *database.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

func (r *SQLRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *SQLRepo) Inventory(ctx context.Context) (Overview, error) {
	var o Overview
	err := r.db.GetContext(ctx, &o, `SELECT COUNT(*) AS total_books,
		COALESCE(SUM(total_copies), 0) AS total_copies,
		COALESCE(SUM(available_copies), 0) AS available_copies
		FROM books`)
	return o, err
}

func (r *SQLRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

func (r *SQLRepo) CountOpenLoans(ctx context.Context, now time.Time) (LoanCounts, error) {
	var c LoanCounts
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT
		COALESCE(SUM(CASE WHEN status = 'overdue' OR due_date < ? THEN 0 ELSE 1 END), 0) AS active,
		COALESCE(SUM(CASE WHEN status = 'overdue' OR due_date < ? THEN 1 ELSE 0 END), 0) AS overdue
		FROM transactions WHERE status IN ('active', 'overdue')`), now, now)
	return c, err
}

func (r *SQLRepo) LoanEvents(ctx context.Context, since time.Time) ([]LoanEvent, error) {
	query, args, err := r.db.Goqu().From("transactions").Prepared(true).
		Select("borrow_date", "due_date", "return_date").
		Where(goqu.Or(
			goqu.C("borrow_date").Gte(since),
			goqu.C("return_date").Gte(since),
		)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build events query: %w", err)
	}
	events := []LoanEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, err
	}
	return events, nil
}

// borrowsSince is the ledger joined to one dimension table and limited to
// borrows in the window.
func (r *SQLRepo) borrowsSince(since time.Time, table, alias string, on exp.JoinCondition) *goqu.SelectDataset {
	return r.db.Goqu().From(goqu.T("transactions").As("t")).Prepared(true).
		LeftJoin(goqu.T(table).As(alias), on).
		Where(goqu.I("t.borrow_date").Gte(since))
}

func (r *SQLRepo) TopCategories(ctx context.Context, since time.Time, limit int) ([]CategoryCount, error) {
	category := goqu.COALESCE(goqu.I("b.category"), "")
	query, args, err := r.borrowsSince(since, "books", "b", goqu.On(goqu.I("b.id").Eq(goqu.I("t.book_id")))).
		Select(category.As("category"), goqu.COUNT("*").As("borrows")).
		GroupBy(goqu.I("b.category")).
		Order(goqu.C("borrows").Desc(), goqu.C("category").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build categories query: %w", err)
	}
	out := []CategoryCount{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepo) TopBorrowers(ctx context.Context, since time.Time, limit int) ([]BorrowerCount, error) {
	query, args, err := r.borrowsSince(since, "users", "u", goqu.On(goqu.I("u.id").Eq(goqu.I("t.user_id")))).
		Select(
			goqu.I("t.user_id").As("user_id"),
			goqu.COALESCE(goqu.I("u.name"), "").As("name"),
			goqu.COUNT("*").As("borrows"),
		).
		GroupBy(goqu.I("t.user_id"), goqu.I("u.name")).
		Order(goqu.C("borrows").Desc(), goqu.C("user_id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrowers query: %w", err)
	}
	out := []BorrowerCount{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepo) PopularBooks(ctx context.Context, since time.Time, limit int) ([]BookCount, error) {
	query, args, err := r.borrowsSince(since, "books", "b", goqu.On(goqu.I("b.id").Eq(goqu.I("t.book_id")))).
		Select(
			goqu.I("t.book_id").As("book_id"),
			goqu.COALESCE(goqu.I("b.title"), "").As("title"),
			goqu.COUNT("*").As("borrows"),
		).
		GroupBy(goqu.I("t.book_id"), goqu.I("b.title")).
		Order(goqu.C("borrows").Desc(), goqu.C("book_id").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build books query: %w", err)
	}
	out := []BookCount{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepo) Finances(ctx context.Context, since time.Time) (Finances, error) {
	var f Finances
	err := r.db.GetContext(ctx, &f, r.db.Rebind(`SELECT
		COALESCE(SUM(fine_amount), 0) AS total_fines,
		COALESCE(SUM(CASE WHEN fine_paid THEN fine_amount ELSE 0 END), 0) AS collected_fines,
		COALESCE(SUM(CASE WHEN fine_paid THEN 0 ELSE fine_amount END), 0) AS outstanding_fines,
		COALESCE(SUM(CASE WHEN fine_amount > 0 THEN 1 ELSE 0 END), 0) AS fined_loans
		FROM transactions WHERE return_date >= ?`), since)
	if err != nil {
		return Finances{}, err
	}
	f.TotalFines = f.TotalFines.Round(2)
	f.CollectedFines = f.CollectedFines.Round(2)
	f.OutstandingFines = f.OutstandingFines.Round(2)
	return f, nil
}
