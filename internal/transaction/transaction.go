package transaction

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a transaction id does not exist.
	ErrNotFound          = errors.New("transaction not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrNoCopiesAvailable = errors.New("no copies available")
	ErrBookNotLendable   = errors.New("book is not lendable")
	// ErrInvalidAction is returned for unknown actions and for actions the
	// transaction's status does not allow.
	ErrInvalidAction = errors.New("invalid action")
	// ErrConflict means a concurrent write kept winning the version check.
	ErrConflict   = errors.New("transaction was modified concurrently")
	ErrLoanLimit  = errors.New("active loan limit reached")
	ErrHasOverdue = errors.New("user has overdue loans")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type Type string

const (
	TypeBorrow Type = "borrow"
	TypeReturn Type = "return"
	TypeRenew  Type = "renew"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
	StatusOverdue  Status = "overdue"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusReturned || s == StatusOverdue
}

// Transaction is one ledger entry: a single borrow of a book by a user,
// carried through renewals to its return. Type is the last action applied.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	BookID       string          `json:"bookId" db:"book_id"`
	UserID       string          `json:"userId" db:"user_id"`
	Type         Type            `json:"type" db:"type"`
	BorrowDate   time.Time       `json:"borrowDate" db:"borrow_date"`
	DueDate      time.Time       `json:"dueDate" db:"due_date"`
	ReturnDate   *time.Time      `json:"returnDate" db:"return_date"`
	Status       Status          `json:"status" db:"status"`
	FineAmount   decimal.Decimal `json:"fineAmount" db:"fine_amount"`
	FinePaid     bool            `json:"finePaid" db:"fine_paid"`
	FinePaidDate *time.Time      `json:"finePaidDate" db:"fine_paid_date"`
	Version      int64           `json:"-" db:"version"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// MarshalJSON presents the fine as a number with two decimals.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		alias
		FineAmount jsoniter.Number `json:"fineAmount"`
	}{
		alias:      alias(t),
		FineAmount: jsoniter.Number(t.FineAmount.StringFixed(2)),
	})
}

// Open reports whether the loan can still be returned or renewed.
func (t Transaction) Open() bool {
	return t.ReturnDate == nil && t.Status != StatusReturned
}

// DeriveStatus is the status a reader should see at now: an open loan past
// its due date is overdue whether or not that was persisted yet.
func DeriveStatus(t Transaction, now time.Time) Status {
	if !t.Open() {
		return StatusReturned
	}
	if now.After(t.DueDate) {
		return StatusOverdue
	}
	return StatusActive
}

func withDerivedStatus(t Transaction, now time.Time) Transaction {
	t.Status = DeriveStatus(t, now)
	return t
}

func (t *Transaction) normalize() {
	t.BorrowDate = t.BorrowDate.UTC()
	t.DueDate = t.DueDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.ReturnDate != nil {
		rd := t.ReturnDate.UTC()
		t.ReturnDate = &rd
	}
	if t.FinePaidDate != nil {
		pd := t.FinePaidDate.UTC()
		t.FinePaidDate = &pd
	}
}

// Filter selects transactions for listing. Status uses derived semantics:
// overdue includes open loans past due, active excludes them.
type Filter struct {
	UserID    string
	BookID    string
	Status    Status
	DueBefore *time.Time
	Now       time.Time
	Limit     int
	Offset    int
}

// Policy holds the borrow rules enforced by the calling surface.
type Policy struct {
	MaxActiveLoans int
	BlockOnOverdue bool
}

// DefaultPolicy allows five open loans and none of them overdue.
var DefaultPolicy = Policy{MaxActiveLoans: 5, BlockOnOverdue: true}

// LoanCounts is a user's open loans split by derived status.
type LoanCounts struct {
	Active  int `db:"active"`
	Overdue int `db:"overdue"`
}

// Check applies p to a user's current loans.
func (p Policy) Check(c LoanCounts) error {
	if p.BlockOnOverdue && c.Overdue > 0 {
		return ErrHasOverdue
	}
	if p.MaxActiveLoans > 0 && c.Active+c.Overdue >= p.MaxActiveLoans {
		return ErrLoanLimit
	}
	return nil
}
