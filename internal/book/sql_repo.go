package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"libraryapi/internal/platform/database"
)

var bookColumns = []any{
	"id", "title", "author", "isbn", "category", "total_copies",
	"available_copies", "status", "version", "created_at", "updated_at",
}

const selectBook = `SELECT id, title, author, isbn, category, total_copies, available_copies,
	status, version, created_at, updated_at FROM books`

// SQLRepo stores books in PostgreSQL or SQLite through sqlx.
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

func (r *SQLRepo) List(ctx context.Context, q Query) ([]Book, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ds := r.db.Goqu().From("books").Prepared(true)
	if q.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(q.Category))
	}
	if q.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(q.Status)))
	}
	if q.Q != "" {
		pattern := "%" + strings.ToLower(q.Q) + "%"
		ds = ds.Where(goqu.Or(
			goqu.Func("LOWER", goqu.C("title")).Like(pattern),
			goqu.Func("LOWER", goqu.C("author")).Like(pattern),
			goqu.C("isbn").Like(pattern),
		))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	listDS := ds.Select(bookColumns...).Order(goqu.C("title").Asc(), goqu.C("id").Asc())
	if q.Limit > 0 {
		listDS = listDS.Limit(uint(q.Limit)).Offset(uint(q.Offset))
	}
	listSQL, listArgs, err := listDS.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	books := []Book{}
	if err := r.db.SelectContext(ctx, &books, listSQL, listArgs...); err != nil {
		return nil, 0, err
	}
	for i := range books {
		normalize(&books[i])
	}
	return books, total, nil
}

func (r *SQLRepo) GetByID(ctx context.Context, id string) (Book, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return getByID(ctx, r.db, id)
}

func (r *SQLRepo) Create(ctx context.Context, b *Book) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`INSERT INTO books (id, title, author, isbn, category, total_copies,
		available_copies, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, b.ID, b.Title, b.Author, b.ISBN, b.Category,
		b.TotalCopies, b.AvailableCopies, string(b.Status), b.Version, b.CreatedAt, b.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateISBN
	}
	return err
}

func (r *SQLRepo) UpdateIfVersion(ctx context.Context, b *Book) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.Rebind(`UPDATE books SET title = ?, author = ?, category = ?, total_copies = ?,
		available_copies = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	res, err := r.db.ExecContext(ctx, query, b.Title, b.Author, b.Category, b.TotalCopies,
		b.AvailableCopies, string(b.Status), b.UpdatedAt, b.ID, b.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := getByID(ctx, r.db, b.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	b.Version++
	return nil
}

func (r *SQLRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM books WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func getByID(ctx context.Context, q queryer, id string) (Book, error) {
	var b Book
	err := q.GetContext(ctx, &b, q.Rebind(selectBook+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, err
	}
	normalize(&b)
	return b, nil
}

func normalize(b *Book) {
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	b.Status = DeriveStatus(*b)
}
