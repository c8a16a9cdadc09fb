package hostel

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/fee"
)

// Kinds
const (
	KindBoys  = "boys"
	KindGirls = "girls"
	KindMixed = "mixed"
)

type Hostel struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	Warden        string          `json:"warden"`
	TotalBeds     int             `json:"total_beds"`
	OccupiedBeds  int             `json:"occupied_beds"`
	AvailableBeds int             `json:"available_beds"`
	FeePerTerm    decimal.Decimal `json:"fee_per_term"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Beds returns the beds counter of h.
func (h Hostel) Beds() capacity.Counter {
	return capacity.Counter{Resource: "hostel", Total: h.TotalBeds, Used: h.OccupiedBeds}
}

type Allocation struct {
	ID          string          `json:"id"`
	HostelID    string          `json:"hostel_id"`
	StudentID   string          `json:"student_id"`
	RoomNumber  string          `json:"room_number"`
	Status      capacity.State  `json:"status"`
	FeeTotal    decimal.Decimal `json:"fee_total"`
	FeePaid     decimal.Decimal `json:"fee_paid"`
	Balance     decimal.Decimal `json:"balance"`
	Fine        decimal.Decimal `json:"fine"`
	DueAt       *time.Time      `json:"due_at"`
	PaidAt      *time.Time      `json:"paid_at"`
	RequestedAt time.Time       `json:"requested_at"`
	AllocatedAt *time.Time      `json:"allocated_at"`
	EndedAt     *time.Time      `json:"ended_at"`
	Version     int             `json:"-"`
}

func (a Allocation) Ledger() fee.Ledger {
	return fee.Ledger{Total: a.FeeTotal, Paid: a.FeePaid, DueAt: a.DueAt, PaidAt: a.PaidAt}
}

type NewHostel struct {
	Name       string          `json:"name" validate:"required,notblank"`
	Kind       string          `json:"kind" validate:"required,oneof=boys girls mixed"`
	Warden     string          `json:"warden"`
	TotalBeds  int             `json:"total_beds" validate:"gte=0"`
	FeePerTerm decimal.Decimal `json:"fee_per_term" validate:"gte=0"`
}

func (nh *NewHostel) Clean() {
	nh.Name = core.CleanString(nh.Name)
	nh.Kind = core.CleanString(nh.Kind, true /* lower */)
	nh.Warden = core.CleanString(nh.Warden)
}

type UpdateHostel struct {
	Name       string           `json:"name"`
	Kind       string           `json:"kind" validate:"omitempty,oneof=boys girls mixed"`
	Warden     string           `json:"warden"`
	TotalBeds  *int             `json:"total_beds" validate:"omitempty,gte=0"`
	FeePerTerm *decimal.Decimal `json:"fee_per_term"`
}

type NewAllocation struct {
	HostelID   string     `json:"hostel_id" validate:"required"`
	StudentID  string     `json:"student_id"`
	RoomNumber string     `json:"room_number" validate:"max=20"`
	DueAt      *time.Time `json:"due_at"`
}

func (na *NewAllocation) Clean() {
	na.HostelID = core.CleanString(na.HostelID)
	na.StudentID = core.CleanString(na.StudentID)
	na.RoomNumber = core.CleanString(na.RoomNumber)
}

type NewPayment struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type HostelFilter struct {
	Search        string `query:"search"`
	Kind          string `query:"kind"`
	AvailableOnly bool   `query:"available"`
}

func (hf *HostelFilter) Clean() {
	hf.Search = core.CleanString(hf.Search)
	hf.Kind = core.CleanString(hf.Kind, true /* lower */)
}

type AllocationFilter struct {
	HostelID  string `query:"hostel_id"`
	StudentID string `query:"student_id"`
	Status    string `query:"status"`
}

func (af *AllocationFilter) Clean() {
	af.HostelID = core.CleanString(af.HostelID)
	af.StudentID = core.CleanString(af.StudentID)
	af.Status = core.CleanString(af.Status, true /* lower */)
}
