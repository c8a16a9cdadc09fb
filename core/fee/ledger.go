package fee

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/fine"
)

// Ledger is an amount owed and the part of it already paid. 0 <= Paid <= Total.
type Ledger struct {
	Total  decimal.Decimal
	Paid   decimal.Decimal
	DueAt  *time.Time
	PaidAt *time.Time
}

// Balance returns what remains to be paid, never negative.
func (l Ledger) Balance() decimal.Decimal {
	if bal := l.Total.Sub(l.Paid); bal.IsPositive() {
		return bal
	}
	return decimal.Zero
}

func (l Ledger) IsSettled() bool {
	return !l.Balance().IsPositive()
}

// LateFine returns the fine accrued by an unsettled balance past its due date.
// It stops growing at PaidAt, the date the balance was cleared.
func (l Ledger) LateFine(calc *fine.Calculator, now time.Time) decimal.Decimal {
	if l.DueAt == nil || calc == nil {
		return decimal.Zero
	}
	if !l.Total.IsPositive() {
		return decimal.Zero
	}
	return calc.Fine(*l.DueAt, l.PaidAt, now)
}

// Pay applies a payment of amount made at `at`. Clearing the balance stamps PaidAt.
func (l *Ledger) Pay(amount decimal.Decimal, at time.Time) error {
	if !amount.IsPositive() {
		return core.NewFieldError("amount", "amount must be greater than 0")
	}
	if l.IsSettled() {
		return core.NewInvalidStateError("fee", "balance already settled")
	}
	if amount.GreaterThan(l.Balance()) {
		return core.NewFieldError("amount", "amount cannot exceed the balance of "+l.Balance().StringFixed(2))
	}
	l.Paid = l.Paid.Add(amount)
	if l.IsSettled() {
		l.PaidAt = &at
	}
	return nil
}
