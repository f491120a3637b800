package book

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a book is not found.
	ErrNotFound = errors.New("book not found")
	// ErrNoCopiesAvailable is returned when a borrow finds every copy on loan.
	ErrNoCopiesAvailable = errors.New("no copies available")
	// ErrNotLendable is returned when staff took the book out of circulation.
	ErrNotLendable       = errors.New("book is not lendable")
	ErrDuplicateISBN     = errors.New("a book with this isbn already exists")
	// ErrConflict signals a lost compare-and-swap on the book's version.
	ErrConflict = errors.New("book was modified concurrently")
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusBorrowed    Status = "borrowed"
	StatusReserved    Status = "reserved"
	StatusMaintenance Status = "maintenance"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBorrowed, StatusReserved, StatusMaintenance:
		return true
	}
	return false
}

// Book is an inventory unit: one title with its copy counts.
type Book struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Category        string    `json:"category" db:"category"`
	TotalCopies     int       `json:"totalCopies" db:"total_copies"`
	AvailableCopies int       `json:"availableCopies" db:"available_copies"`
	Status          Status    `json:"status" db:"status"`
	Version         int64     `json:"-" db:"version"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// OnLoan is the number of copies currently checked out.
func (b Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

// Lendable reports whether the book may be borrowed at all. Maintenance and
// reserved books stay out of circulation until staff clear the status.
func (b Book) Lendable() bool {
	return b.Status != StatusMaintenance && b.Status != StatusReserved
}

// DeriveStatus computes the status from the copy counts. Statuses set by
// staff (maintenance, reserved) are not count-driven and are kept.
func DeriveStatus(b Book) Status {
	switch b.Status {
	case StatusMaintenance, StatusReserved:
		return b.Status
	}
	if b.AvailableCopies <= 0 {
		return StatusBorrowed
	}
	return StatusAvailable
}

// Update is a partial catalog edit; nil fields are left alone.
type Update struct {
	Title       *string
	Author      *string
	Category    *string
	Status      *Status
	TotalCopies *int
}

// Apply writes u onto b. A totalCopies change keeps the copies on loan
// accounted for and clamps availableCopies into [0, totalCopies].
func (u Update) Apply(b *Book) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Category != nil {
		b.Category = *u.Category
	}
	if u.TotalCopies != nil {
		onLoan := b.OnLoan()
		b.TotalCopies = *u.TotalCopies
		b.AvailableCopies = clamp(b.TotalCopies-onLoan, 0, b.TotalCopies)
	}
	if u.Status != nil {
		b.Status = *u.Status
		// staff can only set the non-derived statuses; anything else is recomputed
		if b.Status != StatusMaintenance && b.Status != StatusReserved {
			b.Status = StatusAvailable
		}
	}
	b.Status = DeriveStatus(*b)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Query defines filters and pagination for listing books.
type Query struct {
	Category string
	Status   Status
	Q        string
	Limit    int
	Offset   int
}
