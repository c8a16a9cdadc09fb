// Package fine computes overdue penalties.
//
// A fine is never stored as a cached value while it can still grow: it is a function of the
// due date, the date the obligation was settled (book returned, balance paid) and the evaluation time.
package fine

import (
	"math"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// DaysOverdue returns the number of started days between due and the effective end date.
// The effective end date is settled when set, else now. A zero due date is never overdue.
func DaysOverdue(due time.Time, settled *time.Time, now time.Time) int {
	if due.IsZero() {
		return 0
	}
	end := now
	if settled != nil && !settled.IsZero() {
		end = *settled
	}
	if !end.After(due) {
		return 0
	}
	return int(math.Ceil(end.Sub(due).Hours() / 24))
}

// Calculate returns `ceil(days overdue) * rate`.
func Calculate(due time.Time, settled *time.Time, now time.Time, rate decimal.Decimal) decimal.Decimal {
	days := DaysOverdue(due, settled, now)
	if days == 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(days)))
}

// IsOverdue reports whether an unsettled obligation is past its due date.
func IsOverdue(due time.Time, settled *time.Time, now time.Time) bool {
	return (settled == nil || settled.IsZero()) && !due.IsZero() && now.After(due)
}

// Calculator binds a daily rate.
type Calculator struct {
	rate decimal.Decimal
}

// NewCalculator returns a Calculator charging rate per overdue day. rate cannot be negative.
func NewCalculator(rate decimal.Decimal) (*Calculator, error) {
	if err := vala.BeginValidation().Validate(
		vala.Not(vala.Equals(rate.IsNegative(), true, "rate.IsNegative")),
	).Check(); err != nil {
		return nil, errors.Wrap(err, "invalid fine rate")
	}
	return &Calculator{rate: rate}, nil
}

func (c *Calculator) Rate() decimal.Decimal { return c.rate }

// Fine returns the fine for the given dates at c's rate.
func (c *Calculator) Fine(due time.Time, settled *time.Time, now time.Time) decimal.Decimal {
	return Calculate(due, settled, now, c.rate)
}
