package book

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

// Repository defines the contract for book data storage.
type Repository interface {
	List(ctx context.Context, q Query) ([]Book, int, error)
	GetByID(ctx context.Context, id string) (Book, error)
	Create(ctx context.Context, b *Book) error
	// UpdateIfVersion persists b only if the stored version still equals b.Version.
	UpdateIfVersion(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id string) error
}
