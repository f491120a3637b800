package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDueReminder        Kind = "due_reminder"
	KindOverdueAlert       Kind = "overdue_alert"
	KindBorrowConfirmation Kind = "borrow_confirmation"
	KindReturnConfirmation Kind = "return_confirmation"
	KindFineNotice         Kind = "fine_notice"
	KindSystemAlert        Kind = "system_alert"
)

// ErrInvalidMessage is wrapped by every Validate failure.
var ErrInvalidMessage = errors.New("invalid notification")

// Message is one notification kind. Each kind carries only the fields it
// needs and checks them in Validate.
type Message interface {
	Kind() Kind
	Recipient() string
	// RefID is the related entity, usually a transaction id.
	RefID() string
	Validate() error
	Render() (title, body string)
}

func missing(kind Kind, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrInvalidMessage, kind, field)
}

// loanFields are shared by every message about a single loan.
type loanFields struct {
	UserID        string
	TransactionID string
	BookTitle     string
}

func (l loanFields) validate(kind Kind) error {
	switch {
	case l.UserID == "":
		return missing(kind, "userId")
	case l.TransactionID == "":
		return missing(kind, "transactionId")
	case l.BookTitle == "":
		return missing(kind, "bookTitle")
	}
	return nil
}

func dateOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

type DueReminder struct {
	UserID        string
	TransactionID string
	BookTitle     string
	DueDate       time.Time
}

func (m DueReminder) Kind() Kind        { return KindDueReminder }
func (m DueReminder) Recipient() string { return m.UserID }
func (m DueReminder) RefID() string     { return m.TransactionID }

func (m DueReminder) Validate() error {
	if err := (loanFields{m.UserID, m.TransactionID, m.BookTitle}).validate(m.Kind()); err != nil {
		return err
	}
	if m.DueDate.IsZero() {
		return missing(m.Kind(), "dueDate")
	}
	return nil
}

func (m DueReminder) Render() (string, string) {
	return "Book due soon",
		fmt.Sprintf("%q is due on %s.", m.BookTitle, dateOf(m.DueDate))
}

type OverdueAlert struct {
	UserID        string
	TransactionID string
	BookTitle     string
	DueDate       time.Time
	DaysOverdue   int64
	AccruedFine   decimal.Decimal
}

func (m OverdueAlert) Kind() Kind        { return KindOverdueAlert }
func (m OverdueAlert) Recipient() string { return m.UserID }
func (m OverdueAlert) RefID() string     { return m.TransactionID }

func (m OverdueAlert) Validate() error {
	if err := (loanFields{m.UserID, m.TransactionID, m.BookTitle}).validate(m.Kind()); err != nil {
		return err
	}
	if m.DueDate.IsZero() {
		return missing(m.Kind(), "dueDate")
	}
	if m.DaysOverdue < 1 {
		return missing(m.Kind(), "daysOverdue")
	}
	return nil
}

func (m OverdueAlert) Render() (string, string) {
	return "Book overdue",
		fmt.Sprintf("%q was due on %s and is %d day(s) late. Fine so far: %s.",
			m.BookTitle, dateOf(m.DueDate), m.DaysOverdue, m.AccruedFine.StringFixed(2))
}

type BorrowConfirmation struct {
	UserID        string
	TransactionID string
	BookTitle     string
	DueDate       time.Time
}

func (m BorrowConfirmation) Kind() Kind        { return KindBorrowConfirmation }
func (m BorrowConfirmation) Recipient() string { return m.UserID }
func (m BorrowConfirmation) RefID() string     { return m.TransactionID }

func (m BorrowConfirmation) Validate() error {
	if err := (loanFields{m.UserID, m.TransactionID, m.BookTitle}).validate(m.Kind()); err != nil {
		return err
	}
	if m.DueDate.IsZero() {
		return missing(m.Kind(), "dueDate")
	}
	return nil
}

func (m BorrowConfirmation) Render() (string, string) {
	return "Book borrowed",
		fmt.Sprintf("You borrowed %q. Please return it by %s.", m.BookTitle, dateOf(m.DueDate))
}

type ReturnConfirmation struct {
	UserID        string
	TransactionID string
	BookTitle     string
	ReturnDate    time.Time
	FineAmount    decimal.Decimal
}

func (m ReturnConfirmation) Kind() Kind        { return KindReturnConfirmation }
func (m ReturnConfirmation) Recipient() string { return m.UserID }
func (m ReturnConfirmation) RefID() string     { return m.TransactionID }

func (m ReturnConfirmation) Validate() error {
	if err := (loanFields{m.UserID, m.TransactionID, m.BookTitle}).validate(m.Kind()); err != nil {
		return err
	}
	if m.ReturnDate.IsZero() {
		return missing(m.Kind(), "returnDate")
	}
	return nil
}

func (m ReturnConfirmation) Render() (string, string) {
	body := fmt.Sprintf("%q was returned on %s.", m.BookTitle, dateOf(m.ReturnDate))
	if m.FineAmount.IsPositive() {
		body += fmt.Sprintf(" A late fee of %s applies.", m.FineAmount.StringFixed(2))
	}
	return "Book returned", body
}

type FineNotice struct {
	UserID        string
	TransactionID string
	BookTitle     string
	Amount        decimal.Decimal
}

func (m FineNotice) Kind() Kind        { return KindFineNotice }
func (m FineNotice) Recipient() string { return m.UserID }
func (m FineNotice) RefID() string     { return m.TransactionID }

func (m FineNotice) Validate() error {
	if err := (loanFields{m.UserID, m.TransactionID, m.BookTitle}).validate(m.Kind()); err != nil {
		return err
	}
	if !m.Amount.IsPositive() {
		return missing(m.Kind(), "a positive amount")
	}
	return nil
}

func (m FineNotice) Render() (string, string) {
	return "Late fee charged",
		fmt.Sprintf("A fine of %s was charged for the late return of %q.", m.Amount.StringFixed(2), m.BookTitle)
}

type SystemAlert struct {
	UserID string
	Title  string
	Body   string
}

func (m SystemAlert) Kind() Kind        { return KindSystemAlert }
func (m SystemAlert) Recipient() string { return m.UserID }
func (m SystemAlert) RefID() string     { return "" }

func (m SystemAlert) Validate() error {
	switch {
	case m.UserID == "":
		return missing(m.Kind(), "userId")
	case m.Title == "":
		return missing(m.Kind(), "title")
	case m.Body == "":
		return missing(m.Kind(), "body")
	}
	return nil
}

func (m SystemAlert) Render() (string, string) {
	return m.Title, m.Body
}
