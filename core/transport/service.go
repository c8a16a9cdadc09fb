package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/fine"
)

const (
	feeDueDays         = 30
	maxPaymentAttempts = 5
)

var (
	ErrNotFound             = core.NewNotFoundError("route")
	ErrSubscriptionNotFound = core.NewNotFoundError("route subscription")
)

type (
	Repository interface {
		CreateRoute(ctx context.Context, r Route, exec ...core.DBExecutor) (Route, error)
		QueryRoutes(ctx context.Context, filter *RouteFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Route, error)
		GetRoute(ctx context.Context, id string, exec ...core.DBExecutor) (Route, error)
		// UpdateRoute saves the descriptive fields and stops of r. The seats counters are left untouched.
		UpdateRoute(ctx context.Context, r Route, exec ...core.DBExecutor) (Route, error)
		ResizeRoute(ctx context.Context, id string, totalSeats int, exec ...core.DBExecutor) error
		DeleteRoute(ctx context.Context, id string, exec ...core.DBExecutor) error

		AcquireSeat(ctx context.Context, routeID string, exec ...core.DBExecutor) error
		ReleaseSeat(ctx context.Context, routeID string, exec ...core.DBExecutor) error

		CreateSubscription(ctx context.Context, s Subscription, exec ...core.DBExecutor) (Subscription, error)
		QuerySubscriptions(ctx context.Context, filter *SubscriptionFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Subscription, error)
		GetSubscription(ctx context.Context, id string, exec ...core.DBExecutor) (Subscription, error)
		// UpdateSubscription saves s only if its stored status is still fromStatus and its version is unchanged.
		UpdateSubscription(ctx context.Context, s Subscription, fromStatus capacity.State, exec ...core.DBExecutor) (Subscription, error)
	}

	Service struct {
		db    core.DB
		repo  Repository
		fines *fine.Calculator
	}
)

func NewService(db core.DB, repo Repository, conf *core.Config) (*Service, error) {
	calc, err := fine.NewCalculator(conf.Fees.LateFinePerDay)
	if err != nil {
		return nil, errors.Wrap(err, "transport fines")
	}
	return &Service{db: db, repo: repo, fines: calc}, nil
}

func (nr *NewRoute) Validate(validate *validator.Validate) error {
	nr.Clean()
	if err := validate.Struct(nr); err != nil {
		return err
	}
	return checkStops(nr.Stops)
}

func (ur *UpdateRoute) Validate(orig Route, validate *validator.Validate) error {
	if name := core.CleanString(ur.Name); name != "" {
		ur.Name = name
	} else {
		ur.Name = orig.Name
	}
	if vn := core.CleanString(ur.VehicleNumber); vn != "" {
		ur.VehicleNumber = vn
	} else {
		ur.VehicleNumber = orig.VehicleNumber
	}
	if dn := core.CleanString(ur.DriverName); dn != "" {
		ur.DriverName = dn
	} else {
		ur.DriverName = orig.DriverName
	}
	if ur.Stops == nil {
		ur.Stops = orig.Stops
	} else {
		ur.Stops = cleanStops(ur.Stops)
	}
	if ur.FlatFee != nil && ur.FlatFee.IsNegative() {
		return core.NewFieldError("flat_fee", "flat_fee cannot be negative")
	}
	if err := validate.Struct(ur); err != nil {
		return err
	}
	return checkStops(ur.Stops)
}

func (ns *NewSubscription) Validate(validate *validator.Validate) error {
	ns.Clean()
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.StudentID == "" {
		return core.NewFieldError("student_id", "this field is required")
	}
	return nil
}

// checkStops rejects routes with two stops of the same name.
func checkStops(stops []Stop) error {
	seen := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		key := strings.ToLower(s.Name)
		if _, ok := seen[key]; ok {
			return core.NewFieldError("stops", fmt.Sprintf("stop %q is listed twice", s.Name))
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Routes

func (svc *Service) CreateRoute(ctx context.Context, nr NewRoute) (Route, error) {
	now := core.NowFunc()
	stops := nr.Stops
	if stops == nil {
		stops = []Stop{}
	}
	r := Route{
		Name:          nr.Name,
		VehicleNumber: nr.VehicleNumber,
		DriverName:    nr.DriverName,
		TotalSeats:    nr.TotalSeats,
		FlatFee:       nr.FlatFee,
		Stops:         stops,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// the route and its stops are stored together
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		r, err = svc.repo.CreateRoute(ctx, r, tx)
		return err
	})
	if err != nil {
		return Route{}, err
	}
	return decorateRoute(r), nil
}

func (svc *Service) QueryRoutes(ctx context.Context, filter *RouteFilter, ordering []core.DBOrdering) ([]Route, error) {
	routes, err := svc.repo.QueryRoutes(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range routes {
		routes[i] = decorateRoute(routes[i])
	}
	return routes, nil
}

func (svc *Service) GetRoute(ctx context.Context, id string) (Route, error) {
	r, err := svc.repo.GetRoute(ctx, id)
	if err != nil {
		return Route{}, err
	}
	return decorateRoute(r), nil
}

func (svc *Service) UpdateRoute(ctx context.Context, r Route, ur UpdateRoute) (Route, error) {
	resize := ur.TotalSeats != nil && *ur.TotalSeats != r.TotalSeats
	if resize {
		seats := r.Seats()
		if err := seats.Resize(*ur.TotalSeats); err != nil {
			return Route{}, err
		}
	}

	r.Name = ur.Name
	r.VehicleNumber = ur.VehicleNumber
	r.DriverName = ur.DriverName
	r.Stops = ur.Stops
	if ur.FlatFee != nil {
		r.FlatFee = *ur.FlatFee
	}
	r.UpdatedAt = core.NowFunc()

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if resize {
			if err := svc.repo.ResizeRoute(ctx, r.ID, *ur.TotalSeats, tx); err != nil {
				return err
			}
		}
		_, err := svc.repo.UpdateRoute(ctx, r, tx)
		return err
	})
	if err != nil {
		return Route{}, errors.Wrap(err, "updating route")
	}
	return svc.GetRoute(ctx, r.ID)
}

func (svc *Service) DeleteRoute(ctx context.Context, r Route) error {
	if r.OccupiedSeats > 0 {
		return core.NewInvalidStateError("route", fmt.Sprintf("%d seats are still taken", r.OccupiedSeats))
	}
	return svc.repo.DeleteRoute(ctx, r.ID)
}

func decorateRoute(r Route) Route {
	r.AvailableSeats = r.Seats().Available()
	if r.Stops == nil {
		r.Stops = []Stop{}
	}
	return r
}

// Subscriptions

// Subscribe takes a seat on a route for a student. The fee is resolved from the boarding stop.
func (svc *Service) Subscribe(ctx context.Context, ns NewSubscription) (Subscription, error) {
	now := core.NowFunc()
	s := Subscription{
		RouteID:   ns.RouteID,
		StudentID: ns.StudentID,
		StopName:  ns.StopName,
		Status:    capacity.StateActive,
		FeePaid:   decimal.Zero,
		DueAt:     ns.DueAt,
		StartedAt: now,
	}
	if s.DueAt == nil {
		due := now.AddDate(0, 0, feeDueDays)
		s.DueAt = &due
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		r, err := svc.repo.GetRoute(ctx, s.RouteID, tx)
		if err != nil {
			return err
		}
		if s.FeeTotal, err = r.StopFee(s.StopName); err != nil {
			return err
		}
		if err = svc.repo.AcquireSeat(ctx, r.ID, tx); err != nil {
			return err
		}
		s, err = svc.repo.CreateSubscription(ctx, s, tx)
		return err
	})
	if err != nil {
		if core.IsDuplicate(err) {
			return Subscription{}, core.NewInvalidStateError("route subscription", "student already holds an active subscription")
		}
		return Subscription{}, errors.Wrap(err, "subscribing")
	}
	return svc.decorate(s), nil
}

// End expires an active subscription and frees its seat.
func (svc *Service) End(ctx context.Context, s Subscription) (Subscription, error) {
	if err := capacity.CheckTransition("route subscription", s.Status, capacity.StateExpired); err != nil {
		return Subscription{}, err
	}
	from := s.Status
	now := core.NowFunc()
	s.Status = capacity.StateExpired
	s.EndedAt = &now

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if s, err = svc.repo.UpdateSubscription(ctx, s, from, tx); err != nil {
			return err
		}
		if capacity.Delta(from, s.Status) < 0 {
			return svc.repo.ReleaseSeat(ctx, s.RouteID, tx)
		}
		return nil
	})
	if err != nil {
		return Subscription{}, errors.Wrap(err, "ending subscription")
	}
	return svc.decorate(s), nil
}

func (svc *Service) RecordPayment(ctx context.Context, id string, np NewPayment) (Subscription, error) {
	var updated Subscription
	err := core.RetryOnConflict(maxPaymentAttempts, func() error {
		s, err := svc.repo.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		ledger := s.Ledger()
		if err = ledger.Pay(np.Amount, core.NowFunc()); err != nil {
			return err
		}
		s.FeePaid = ledger.Paid
		s.PaidAt = ledger.PaidAt
		updated, err = svc.repo.UpdateSubscription(ctx, s, s.Status)
		return err
	})
	if err != nil {
		return Subscription{}, errors.Wrap(err, "recording payment")
	}
	return svc.decorate(updated), nil
}

func (svc *Service) QuerySubscriptions(ctx context.Context, filter *SubscriptionFilter, ordering []core.DBOrdering) ([]Subscription, error) {
	subs, err := svc.repo.QuerySubscriptions(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i] = svc.decorate(subs[i])
	}
	return subs, nil
}

func (svc *Service) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	s, err := svc.repo.GetSubscription(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	return svc.decorate(s), nil
}

func (svc *Service) decorate(s Subscription) Subscription {
	ledger := s.Ledger()
	s.Balance = ledger.Balance()
	s.Fine = ledger.LateFine(svc.fines, core.NowFunc())
	return s
}
