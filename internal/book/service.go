package book

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"libraryapi/internal/platform/clock"
	"libraryapi/internal/platform/retry"
)

const updateAttempts = 5

// Service provides catalog operations. It never moves availableCopies
// except when clamping after a totalCopies change.
type Service struct {
	repo Repository
	now  clock.Clock
}

// NewService creates a new book service.
func NewService(repo Repository, now clock.Clock) *Service {
	if now == nil {
		now = clock.Now
	}
	return &Service{repo: repo, now: now}
}

// NewBook is the input for adding a title to the catalog.
type NewBook struct {
	Title       string
	Author      string
	ISBN        string
	Category    string
	TotalCopies int
}

// List returns a list of books matching the query.
func (s *Service) List(ctx context.Context, q Query) ([]Book, int, error) {
	return s.repo.List(ctx, q)
}

// Get returns a book by its id.
func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	return s.repo.GetByID(ctx, id)
}

// Create adds a title with every copy on the shelf.
func (s *Service) Create(ctx context.Context, in NewBook) (Book, error) {
	now := s.now()
	b := Book{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		Category:        in.Category,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		Status:          StatusAvailable,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, &b); err != nil {
		return Book{}, err
	}
	return b, nil
}

// Update applies a partial edit as a compare-and-swap on the book's version,
// re-reading and retrying when a borrow or return lands in between.
func (s *Service) Update(ctx context.Context, id string, u Update) (Book, error) {
	var out Book
	err := retry.Do(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		u.Apply(&b)
		b.UpdatedAt = s.now()
		if err := s.repo.UpdateIfVersion(ctx, &b); err != nil {
			return err
		}
		out = b
		return nil
	},
		retry.WithMaxAttempts(updateAttempts),
		retry.WithBaseDelay(10*time.Millisecond),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, ErrConflict) }),
	)
	if err != nil {
		return Book{}, err
	}
	return out, nil
}

// Delete removes a title. Open loans on it keep their ledger rows.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
