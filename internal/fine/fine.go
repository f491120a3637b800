// Package fine holds the late-return fee policy shared by every loan code path.
package fine

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRatePerDay is the late fee charged per started day past the due date.
var DefaultRatePerDay = decimal.RequireFromString("0.50")

const day = 24 * time.Hour

// DaysLate counts started days between due and returned; zero for on-time returns.
func DaysLate(due, returned time.Time) int64 {
	if !returned.After(due) {
		return 0
	}
	return int64(math.Ceil(float64(returned.Sub(due)) / float64(day)))
}

// Compute returns the fee for returning a loan due at due on returned.
func Compute(due, returned time.Time, ratePerDay decimal.Decimal) decimal.Decimal {
	days := DaysLate(due, returned)
	if days == 0 || ratePerDay.IsNegative() {
		return decimal.Zero
	}
	return ratePerDay.Mul(decimal.NewFromInt(days)).Round(2)
}

// Accrue never lowers a fee that was already charged.
func Accrue(existing, computed decimal.Decimal) decimal.Decimal {
	if existing.GreaterThan(computed) {
		return existing
	}
	return computed
}

// Policy binds a rate so call sites do not pass it around.
type Policy struct {
	RatePerDay decimal.Decimal
}

func NewPolicy(ratePerDay decimal.Decimal) Policy {
	return Policy{RatePerDay: ratePerDay}
}

func (p Policy) Compute(due, returned time.Time) decimal.Decimal {
	return Compute(due, returned, p.RatePerDay)
}
