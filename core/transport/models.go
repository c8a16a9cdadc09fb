package transport

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/fee"
)

// Stop is a pickup point of a Route. Fee overrides the route flat fee when positive.
type Stop struct {
	Name string          `json:"name" validate:"required,notblank,max=100"`
	Fee  decimal.Decimal `json:"fee" validate:"gte=0"`
}

type Route struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	VehicleNumber  string          `json:"vehicle_number"`
	DriverName     string          `json:"driver_name"`
	TotalSeats     int             `json:"total_seats"`
	OccupiedSeats  int             `json:"occupied_seats"`
	AvailableSeats int             `json:"available_seats"`
	FlatFee        decimal.Decimal `json:"flat_fee"`
	Stops          []Stop          `json:"stops"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (r Route) Seats() capacity.Counter {
	return capacity.Counter{Resource: "route", Total: r.TotalSeats, Used: r.OccupiedSeats}
}

// StopFee returns the fee charged for boarding at stop.
// An empty stop name means the route flat fee. A stop with no fee of its own also falls back to it.
func (r Route) StopFee(stop string) (decimal.Decimal, error) {
	stop = core.CleanString(stop)
	if stop == "" {
		return r.FlatFee, nil
	}
	for _, s := range r.Stops {
		if strings.EqualFold(s.Name, stop) {
			if s.Fee.IsPositive() {
				return s.Fee, nil
			}
			return r.FlatFee, nil
		}
	}
	return decimal.Zero, core.NewFieldError("stop_name", "route has no stop named "+stop)
}

type Subscription struct {
	ID        string          `json:"id"`
	RouteID   string          `json:"route_id"`
	StudentID string          `json:"student_id"`
	StopName  string          `json:"stop_name"`
	Status    capacity.State  `json:"status"`
	FeeTotal  decimal.Decimal `json:"fee_total"`
	FeePaid   decimal.Decimal `json:"fee_paid"`
	Balance   decimal.Decimal `json:"balance"`
	Fine      decimal.Decimal `json:"fine"`
	DueAt     *time.Time      `json:"due_at"`
	PaidAt    *time.Time      `json:"paid_at"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at"`
	Version   int             `json:"-"`
}

func (s Subscription) Ledger() fee.Ledger {
	return fee.Ledger{Total: s.FeeTotal, Paid: s.FeePaid, DueAt: s.DueAt, PaidAt: s.PaidAt}
}

type NewRoute struct {
	Name          string          `json:"name" validate:"required,notblank,max=100"`
	VehicleNumber string          `json:"vehicle_number" validate:"max=20"`
	DriverName    string          `json:"driver_name"`
	TotalSeats    int             `json:"total_seats" validate:"gte=0"`
	FlatFee       decimal.Decimal `json:"flat_fee" validate:"gte=0"`
	Stops         []Stop          `json:"stops" validate:"dive"`
}

func (nr *NewRoute) Clean() {
	nr.Name = core.CleanString(nr.Name)
	nr.VehicleNumber = core.CleanString(nr.VehicleNumber)
	nr.DriverName = core.CleanString(nr.DriverName)
	nr.Stops = cleanStops(nr.Stops)
}

type UpdateRoute struct {
	Name          string           `json:"name"`
	VehicleNumber string           `json:"vehicle_number" validate:"max=20"`
	DriverName    string           `json:"driver_name"`
	TotalSeats    *int             `json:"total_seats" validate:"omitempty,gte=0"`
	FlatFee       *decimal.Decimal `json:"flat_fee"`
	Stops         []Stop           `json:"stops" validate:"omitempty,dive"`
}

type NewSubscription struct {
	RouteID   string     `json:"route_id" validate:"required"`
	StudentID string     `json:"student_id"`
	StopName  string     `json:"stop_name"`
	DueAt     *time.Time `json:"due_at"`
}

func (ns *NewSubscription) Clean() {
	ns.RouteID = core.CleanString(ns.RouteID)
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.StopName = core.CleanString(ns.StopName)
}

type NewPayment struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type RouteFilter struct {
	Search        string `query:"search"`
	AvailableOnly bool   `query:"available"`
}

func (rf *RouteFilter) Clean() {
	rf.Search = core.CleanString(rf.Search)
}

type SubscriptionFilter struct {
	RouteID   string `query:"route_id"`
	StudentID string `query:"student_id"`
	Status    string `query:"status"`
}

func (sf *SubscriptionFilter) Clean() {
	sf.RouteID = core.CleanString(sf.RouteID)
	sf.StudentID = core.CleanString(sf.StudentID)
	sf.Status = core.CleanString(sf.Status, true /* lower */)
}

func cleanStops(stops []Stop) []Stop {
	for i := range stops {
		stops[i].Name = core.CleanString(stops[i].Name)
	}
	return stops
}
