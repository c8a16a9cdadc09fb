package library

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
)

// Issue statuses. StatusOverdue is never stored: it is derived on read from an issued loan past its due date.
const (
	StatusIssued   = "issued"
	StatusReturned = "returned"
	StatusOverdue  = "overdue"
	StatusLost     = "lost"
)

var issueStates = map[string]capacity.State{
	StatusIssued:   capacity.StateActive,
	StatusReturned: capacity.StateReturned,
	StatusLost:     capacity.StateLost,
}

type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Category        string    `json:"category"`
	TotalCopies     int       `json:"total_copies"`
	IssuedCopies    int       `json:"issued_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Copies returns the copies counter of b.
func (b Book) Copies() capacity.Counter {
	return capacity.Counter{Resource: "book", Total: b.TotalCopies, Used: b.IssuedCopies}
}

type Issue struct {
	ID         string          `json:"id"`
	BookID     string          `json:"book_id"`
	BorrowerID string          `json:"borrower_id"`
	IssuedAt   time.Time       `json:"issued_at"`
	DueAt      time.Time       `json:"due_at"`
	ReturnedAt *time.Time      `json:"returned_at"`
	LostAt     *time.Time      `json:"lost_at"`
	Status     string          `json:"status"`
	Fine       decimal.Decimal `json:"fine"`
	FinePaid   bool            `json:"fine_paid"`

	// FrozenFine is the fine recorded when the loan was settled.
	FrozenFine decimal.Decimal `json:"-"`
}

// SettledAt returns the date the loan stopped accruing fines, if any.
func (is Issue) SettledAt() *time.Time {
	if is.ReturnedAt != nil {
		return is.ReturnedAt
	}
	return is.LostAt
}

func (is Issue) State() capacity.State {
	if is.Status == StatusOverdue {
		return capacity.StateActive
	}
	return issueStates[is.Status]
}

type NewBook struct {
	Title       string `json:"title" validate:"required,notblank"`
	Author      string `json:"author" validate:"required,notblank"`
	ISBN        string `json:"isbn" validate:"omitempty,max=20"`
	Category    string `json:"category"`
	TotalCopies int    `json:"total_copies" validate:"gte=0"`
}

func (nb *NewBook) Clean() {
	nb.Title = core.CleanString(nb.Title)
	nb.Author = core.CleanString(nb.Author)
	nb.ISBN = core.CleanString(nb.ISBN)
	nb.Category = core.CleanString(nb.Category, true /* lower */)
}

type UpdateBook struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn" validate:"omitempty,max=20"`
	Category    string `json:"category"`
	TotalCopies *int   `json:"total_copies" validate:"omitempty,gte=0"`
}

type NewIssue struct {
	BookID     string    `json:"book_id" validate:"required"`
	BorrowerID string    `json:"borrower_id" validate:"required"`
	DueAt      time.Time `json:"due_at"`
}

type BookFilter struct {
	Search        string `query:"search"`
	Category      string `query:"category"`
	AvailableOnly bool   `query:"available"`
}

func (bf *BookFilter) Clean() {
	bf.Search = core.CleanString(bf.Search)
	bf.Category = core.CleanString(bf.Category, true /* lower */)
}

type IssueFilter struct {
	BookID     string `query:"book_id"`
	BorrowerID string `query:"borrower_id"`
	Status     string `query:"status"`
	Overdue    bool   `query:"overdue"`
}

func (f *IssueFilter) Clean() {
	f.Status = core.CleanString(f.Status, true /* lower */)
	// overdue loans are stored as issued
	if f.Status == StatusOverdue {
		f.Status = StatusIssued
		f.Overdue = true
	}
}
