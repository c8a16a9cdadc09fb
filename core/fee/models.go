// Package fee manages the amounts students owe and the payments made against them.
package fee

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
)

// Categories
const (
	CategoryTuition   = "tuition"
	CategoryExam      = "exam"
	CategoryHostel    = "hostel"
	CategoryTransport = "transport"
	CategoryLibrary   = "library"
	CategoryOther     = "other"
)

// Payment methods
const (
	MethodCash   = "cash"
	MethodCard   = "card"
	MethodBank   = "bank"
	MethodOnline = "online"
)

type Fee struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	AmountTotal decimal.Decimal `json:"amount_total"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Balance     decimal.Decimal `json:"balance"`
	LateFine    decimal.Decimal `json:"late_fine"`
	DueAt       time.Time       `json:"due_at"`
	PaidAt      *time.Time      `json:"paid_at"`
	Version     int             `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (f Fee) Ledger() Ledger {
	due := f.DueAt
	return Ledger{Total: f.AmountTotal, Paid: f.AmountPaid, DueAt: &due, PaidAt: f.PaidAt}
}

func (f *Fee) setLedger(l Ledger) {
	f.AmountTotal = l.Total
	f.AmountPaid = l.Paid
	f.PaidAt = l.PaidAt
}

type Payment struct {
	ID         string          `json:"id"`
	FeeID      string          `json:"fee_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference"`
	RecordedBy string          `json:"recorded_by"`
	PaidAt     time.Time       `json:"paid_at"`
}

type NewFee struct {
	StudentID   string          `json:"student_id" validate:"required"`
	Title       string          `json:"title" validate:"required,notblank"`
	Category    string          `json:"category" validate:"required,oneof=tuition exam hostel transport library other"`
	AmountTotal decimal.Decimal `json:"amount_total" validate:"gt=0"`
	DueAt       time.Time       `json:"due_at" validate:"required"`
}

func (nf *NewFee) Clean() {
	nf.StudentID = core.CleanString(nf.StudentID)
	nf.Title = core.CleanString(nf.Title)
	nf.Category = core.CleanString(nf.Category, true /* lower */)
}

type UpdateFee struct {
	Title       string           `json:"title"`
	AmountTotal *decimal.Decimal `json:"amount_total"`
	DueAt       *time.Time       `json:"due_at"`
}

type NewPayment struct {
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Method    string          `json:"method" validate:"required,oneof=cash card bank online"`
	Reference string          `json:"reference" validate:"max=100"`
}

func (np *NewPayment) Clean() {
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.Reference = core.CleanString(np.Reference)
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	Category  string `query:"category"`
	Unpaid    bool   `query:"unpaid"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
}
