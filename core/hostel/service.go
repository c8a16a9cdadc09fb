package hostel

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/fine"
)

const (
	// feeDueDays is the delay given to pay the hostel fee once a bed is allocated.
	feeDueDays = 30

	maxPaymentAttempts = 5
)

var (
	ErrNotFound           = core.NewNotFoundError("hostel")
	ErrAllocationNotFound = core.NewNotFoundError("hostel allocation")
)

type (
	Repository interface {
		CreateHostel(ctx context.Context, h Hostel, exec ...core.DBExecutor) (Hostel, error)
		QueryHostels(ctx context.Context, filter *HostelFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Hostel, error)
		GetHostel(ctx context.Context, id string, exec ...core.DBExecutor) (Hostel, error)
		// UpdateHostel saves the descriptive fields of h. The beds counters are left untouched.
		UpdateHostel(ctx context.Context, h Hostel, exec ...core.DBExecutor) (Hostel, error)
		ResizeHostel(ctx context.Context, id string, totalBeds int, exec ...core.DBExecutor) error
		DeleteHostel(ctx context.Context, id string, exec ...core.DBExecutor) error

		// AcquireBed atomically takes one free bed of a hostel.
		AcquireBed(ctx context.Context, hostelID string, exec ...core.DBExecutor) error
		// ReleaseBed atomically frees one bed of a hostel.
		ReleaseBed(ctx context.Context, hostelID string, exec ...core.DBExecutor) error

		CreateAllocation(ctx context.Context, a Allocation, exec ...core.DBExecutor) (Allocation, error)
		QueryAllocations(ctx context.Context, filter *AllocationFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Allocation, error)
		GetAllocation(ctx context.Context, id string, exec ...core.DBExecutor) (Allocation, error)
		// UpdateAllocation saves a only if its stored status is still fromStatus and its version is unchanged.
		UpdateAllocation(ctx context.Context, a Allocation, fromStatus capacity.State, exec ...core.DBExecutor) (Allocation, error)
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
		return nil, errors.Wrap(err, "hostel fines")
	}
	return &Service{db: db, repo: repo, fines: calc}, nil
}

func (nh *NewHostel) Validate(validate *validator.Validate) error {
	nh.Clean()
	return validate.Struct(nh)
}

func (uh *UpdateHostel) Validate(orig Hostel, validate *validator.Validate) error {
	if name := core.CleanString(uh.Name); name != "" {
		uh.Name = name
	} else {
		uh.Name = orig.Name
	}
	if kind := core.CleanString(uh.Kind, true /* lower */); kind != "" {
		uh.Kind = kind
	} else {
		uh.Kind = orig.Kind
	}
	if warden := core.CleanString(uh.Warden); warden != "" {
		uh.Warden = warden
	} else {
		uh.Warden = orig.Warden
	}
	if uh.FeePerTerm != nil && uh.FeePerTerm.IsNegative() {
		return core.NewFieldError("fee_per_term", "fee_per_term cannot be negative")
	}
	return validate.Struct(uh)
}

func (na *NewAllocation) Validate(validate *validator.Validate) error {
	na.Clean()
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.StudentID == "" {
		return core.NewFieldError("student_id", "this field is required")
	}
	return nil
}

// Hostels

func (svc *Service) CreateHostel(ctx context.Context, nh NewHostel) (Hostel, error) {
	now := core.NowFunc()
	h, err := svc.repo.CreateHostel(ctx, Hostel{
		Name:       nh.Name,
		Kind:       nh.Kind,
		Warden:     nh.Warden,
		TotalBeds:  nh.TotalBeds,
		FeePerTerm: nh.FeePerTerm,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Hostel{}, err
	}
	return decorateHostel(h), nil
}

func (svc *Service) QueryHostels(ctx context.Context, filter *HostelFilter, ordering []core.DBOrdering) ([]Hostel, error) {
	hostels, err := svc.repo.QueryHostels(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range hostels {
		hostels[i] = decorateHostel(hostels[i])
	}
	return hostels, nil
}

func (svc *Service) GetHostel(ctx context.Context, id string) (Hostel, error) {
	h, err := svc.repo.GetHostel(ctx, id)
	if err != nil {
		return Hostel{}, err
	}
	return decorateHostel(h), nil
}

func (svc *Service) UpdateHostel(ctx context.Context, h Hostel, uh UpdateHostel) (Hostel, error) {
	resize := uh.TotalBeds != nil && *uh.TotalBeds != h.TotalBeds
	if resize {
		beds := h.Beds()
		if err := beds.Resize(*uh.TotalBeds); err != nil {
			return Hostel{}, err
		}
	}

	h.Name = uh.Name
	h.Kind = uh.Kind
	h.Warden = uh.Warden
	if uh.FeePerTerm != nil {
		h.FeePerTerm = *uh.FeePerTerm
	}
	h.UpdatedAt = core.NowFunc()

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if resize {
			if err := svc.repo.ResizeHostel(ctx, h.ID, *uh.TotalBeds, tx); err != nil {
				return err
			}
		}
		_, err := svc.repo.UpdateHostel(ctx, h, tx)
		return err
	})
	if err != nil {
		return Hostel{}, errors.Wrap(err, "updating hostel")
	}
	return svc.GetHostel(ctx, h.ID)
}

func (svc *Service) DeleteHostel(ctx context.Context, h Hostel) error {
	if h.OccupiedBeds > 0 {
		return core.NewInvalidStateError("hostel", fmt.Sprintf("%d beds are still occupied", h.OccupiedBeds))
	}
	return svc.repo.DeleteHostel(ctx, h.ID)
}

func decorateHostel(h Hostel) Hostel {
	h.AvailableBeds = h.Beds().Available()
	return h
}

// Allocations

// Request files a pending allocation request. No bed is taken until it is activated.
func (svc *Service) Request(ctx context.Context, na NewAllocation) (Allocation, error) {
	return svc.create(ctx, na, capacity.StatePending)
}

// Allocate gives a bed to a student right away. It fails with a CapacityExceededError when the hostel is full.
func (svc *Service) Allocate(ctx context.Context, na NewAllocation) (Allocation, error) {
	return svc.create(ctx, na, capacity.StateActive)
}

func (svc *Service) create(ctx context.Context, na NewAllocation, status capacity.State) (Allocation, error) {
	now := core.NowFunc()
	a := Allocation{
		HostelID:    na.HostelID,
		StudentID:   na.StudentID,
		RoomNumber:  na.RoomNumber,
		Status:      status,
		FeePaid:     decimal.Zero,
		DueAt:       na.DueAt,
		RequestedAt: now,
	}
	if status == capacity.StateActive {
		a.AllocatedAt = &now
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if status == capacity.StateActive {
			if err := svc.repo.AcquireBed(ctx, a.HostelID, tx); err != nil {
				return err
			}
		}
		h, err := svc.repo.GetHostel(ctx, a.HostelID, tx)
		if err != nil {
			return err
		}
		a.FeeTotal = h.FeePerTerm
		if a.AllocatedAt != nil && a.DueAt == nil {
			due := a.AllocatedAt.AddDate(0, 0, feeDueDays)
			a.DueAt = &due
		}
		a, err = svc.repo.CreateAllocation(ctx, a, tx)
		return err
	})
	if err != nil {
		if core.IsDuplicate(err) {
			return Allocation{}, core.NewInvalidStateError("hostel allocation", "student already holds a pending or active allocation")
		}
		return Allocation{}, errors.Wrap(err, "creating allocation")
	}
	return svc.decorate(a), nil
}

// Activate turns a pending request into an occupied bed.
func (svc *Service) Activate(ctx context.Context, a Allocation) (Allocation, error) {
	return svc.transition(ctx, a, capacity.StateActive)
}

// Vacate frees the bed held by an active allocation.
func (svc *Service) Vacate(ctx context.Context, a Allocation) (Allocation, error) {
	return svc.transition(ctx, a, capacity.StateVacated)
}

// Cancel expires a pending request or an active allocation, freeing its bed if any.
func (svc *Service) Cancel(ctx context.Context, a Allocation) (Allocation, error) {
	return svc.transition(ctx, a, capacity.StateExpired)
}

// transition moves a to the given state, holding or releasing a bed in the same transaction.
func (svc *Service) transition(ctx context.Context, a Allocation, to capacity.State) (Allocation, error) {
	if err := capacity.CheckTransition("hostel allocation", a.Status, to); err != nil {
		return Allocation{}, err
	}

	now := core.NowFunc()
	from := a.Status
	a.Status = to
	if to == capacity.StateActive {
		a.AllocatedAt = &now
		if a.DueAt == nil {
			due := now.AddDate(0, 0, feeDueDays)
			a.DueAt = &due
		}
	} else {
		a.EndedAt = &now
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if a, err = svc.repo.UpdateAllocation(ctx, a, from, tx); err != nil {
			return err
		}
		switch capacity.Delta(from, to) {
		case 1:
			return svc.repo.AcquireBed(ctx, a.HostelID, tx)
		case -1:
			return svc.repo.ReleaseBed(ctx, a.HostelID, tx)
		}
		return nil
	})
	if err != nil {
		return Allocation{}, errors.Wrapf(err, "moving allocation to %s", to)
	}
	return svc.decorate(a), nil
}

// RecordPayment pays amount towards the hostel fee of an allocation.
func (svc *Service) RecordPayment(ctx context.Context, id string, np NewPayment) (Allocation, error) {
	var updated Allocation
	err := core.RetryOnConflict(maxPaymentAttempts, func() error {
		a, err := svc.repo.GetAllocation(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != capacity.StatePending && a.Status != capacity.StateActive {
			return core.NewInvalidStateError("hostel allocation", "allocation is closed")
		}
		ledger := a.Ledger()
		if err = ledger.Pay(np.Amount, core.NowFunc()); err != nil {
			return err
		}
		a.FeePaid = ledger.Paid
		a.PaidAt = ledger.PaidAt
		updated, err = svc.repo.UpdateAllocation(ctx, a, a.Status)
		return err
	})
	if err != nil {
		return Allocation{}, errors.Wrap(err, "recording payment")
	}
	return svc.decorate(updated), nil
}

func (svc *Service) QueryAllocations(ctx context.Context, filter *AllocationFilter, ordering []core.DBOrdering) ([]Allocation, error) {
	allocs, err := svc.repo.QueryAllocations(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range allocs {
		allocs[i] = svc.decorate(allocs[i])
	}
	return allocs, nil
}

func (svc *Service) GetAllocation(ctx context.Context, id string) (Allocation, error) {
	a, err := svc.repo.GetAllocation(ctx, id)
	if err != nil {
		return Allocation{}, err
	}
	return svc.decorate(a), nil
}

func (svc *Service) decorate(a Allocation) Allocation {
	ledger := a.Ledger()
	a.Balance = ledger.Balance()
	a.Fine = ledger.LateFine(svc.fines, core.NowFunc())
	return a
}
