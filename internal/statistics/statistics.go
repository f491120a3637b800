// Package statistics produces read-only rollups of the catalog and the loan
// ledger over a window of days.
package statistics

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

const (
	MinPeriod     = 1
	MaxPeriod     = 365
	DefaultPeriod = 30
)

var (
	ErrInvalidPeriod = errors.New("period must be between 1 and 365 days")
	// ErrUnavailable means the database could not be reached and no cached
	// report exists for the period.
	ErrUnavailable = errors.New("statistics unavailable")
)

// Report is the full rollup for one period. Sections that could not be
// computed are zeroed and named in Degraded.
type Report struct {
	Period      int       `json:"period"`
	GeneratedAt time.Time `json:"generatedAt"`
	Overview    Overview  `json:"overview"`
	Trends      Trends    `json:"trends"`
	Insights    Insights  `json:"insights"`
	Finances    Finances  `json:"finances"`
	Degraded    []string  `json:"degraded,omitempty"`
}

type Overview struct {
	TotalBooks      int `json:"totalBooks" db:"total_books"`
	TotalCopies     int `json:"totalCopies" db:"total_copies"`
	AvailableCopies int `json:"availableCopies" db:"available_copies"`
	TotalUsers      int `json:"totalUsers"`
	ActiveLoans     int `json:"activeLoans"`
	OverdueLoans    int `json:"overdueLoans"`
	BorrowsInPeriod int `json:"borrowsInPeriod"`
	ReturnsInPeriod int `json:"returnsInPeriod"`
}

// LoanCounts is the ledger part of Overview.
type LoanCounts struct {
	Active  int `db:"active"`
	Overdue int `db:"overdue"`
}

type DailyPoint struct {
	Date    string `json:"date"`
	Borrows int    `json:"borrows"`
	Returns int    `json:"returns"`
}

type Trends struct {
	Daily []DailyPoint `json:"daily"`
}

type CategoryCount struct {
	Category string `json:"category" db:"category"`
	Borrows  int    `json:"borrows" db:"borrows"`
}

type BorrowerCount struct {
	UserID  string `json:"userId" db:"user_id"`
	Name    string `json:"name" db:"name"`
	Borrows int    `json:"borrows" db:"borrows"`
}

type BookCount struct {
	BookID  string `json:"bookId" db:"book_id"`
	Title   string `json:"title" db:"title"`
	Borrows int    `json:"borrows" db:"borrows"`
}

type Insights struct {
	TopCategories    []CategoryCount `json:"topCategories"`
	TopBorrowers     []BorrowerCount `json:"topBorrowers"`
	PopularBooks     []BookCount     `json:"popularBooks"`
	OnTimeReturnRate float64         `json:"onTimeReturnRate"`
}

type Finances struct {
	TotalFines       decimal.Decimal `json:"totalFines" db:"total_fines"`
	CollectedFines   decimal.Decimal `json:"collectedFines" db:"collected_fines"`
	OutstandingFines decimal.Decimal `json:"outstandingFines" db:"outstanding_fines"`
	FinedLoans       int             `json:"finedLoans" db:"fined_loans"`
}

// MarshalJSON presents amounts as numbers with two decimals.
func (f Finances) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		TotalFines       jsoniter.Number `json:"totalFines"`
		CollectedFines   jsoniter.Number `json:"collectedFines"`
		OutstandingFines jsoniter.Number `json:"outstandingFines"`
		FinedLoans       int         `json:"finedLoans"`
	}{
		TotalFines:       jsoniter.Number(f.TotalFines.StringFixed(2)),
		CollectedFines:   jsoniter.Number(f.CollectedFines.StringFixed(2)),
		OutstandingFines: jsoniter.Number(f.OutstandingFines.StringFixed(2)),
		FinedLoans:       f.FinedLoans,
	})
}

// LoanEvent is the slice of a ledger row the trend buckets need.
type LoanEvent struct {
	BorrowDate time.Time  `db:"borrow_date"`
	DueDate    time.Time  `db:"due_date"`
	ReturnDate *time.Time `db:"return_date"`
}

func emptyReport(period int, now time.Time) Report {
	return Report{
		Period:      period,
		GeneratedAt: now,
		Trends:      Trends{Daily: []DailyPoint{}},
		Insights: Insights{
			TopCategories: []CategoryCount{},
			TopBorrowers:  []BorrowerCount{},
			PopularBooks:  []BookCount{},
		},
		Finances: Finances{
			TotalFines:       decimal.Zero,
			CollectedFines:   decimal.Zero,
			OutstandingFines: decimal.Zero,
		},
	}
}

// bucketDaily counts borrows and returns per UTC day from since to now,
// oldest first, with a point for every day.
func bucketDaily(events []LoanEvent, since, now time.Time) []DailyPoint {
	start := since.UTC().Truncate(24 * time.Hour)
	end := now.UTC().Truncate(24 * time.Hour)
	index := make(map[string]int)
	points := []DailyPoint{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		index[key] = len(points)
		points = append(points, DailyPoint{Date: key})
	}
	for _, e := range events {
		if i, ok := index[e.BorrowDate.UTC().Format(time.DateOnly)]; ok && !e.BorrowDate.Before(since) {
			points[i].Borrows++
		}
		if e.ReturnDate != nil && !e.ReturnDate.Before(since) {
			if i, ok := index[e.ReturnDate.UTC().Format(time.DateOnly)]; ok {
				points[i].Returns++
			}
		}
	}
	return points
}

// onTimeRate is the share of returns in the window made on or before the due
// date, 0 when nothing was returned.
func onTimeRate(events []LoanEvent, since time.Time) float64 {
	var returned, onTime int
	for _, e := range events {
		if e.ReturnDate == nil || e.ReturnDate.Before(since) {
			continue
		}
		returned++
		if !e.ReturnDate.After(e.DueDate) {
			onTime++
		}
	}
	if returned == 0 {
		return 0
	}
	rate, _ := decimal.NewFromInt(int64(onTime)).Div(decimal.NewFromInt(int64(returned))).Round(4).Float64()
	return rate
}

func countInWindow(events []LoanEvent, since time.Time) (borrows, returns int) {
	for _, e := range events {
		if !e.BorrowDate.Before(since) {
			borrows++
		}
		if e.ReturnDate != nil && !e.ReturnDate.Before(since) {
			returns++
		}
	}
	return borrows, returns
}
