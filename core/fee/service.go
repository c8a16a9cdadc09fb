package fee

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/fine"
)

// maxPaymentAttempts bounds the optimistic retries of a payment.
const maxPaymentAttempts = 5

var ErrNotFound = core.NewNotFoundError("fee")

type (
	Repository interface {
		CreateFee(ctx context.Context, f Fee, exec ...core.DBExecutor) (Fee, error)
		QueryFees(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Fee, error)
		GetFee(ctx context.Context, id string, exec ...core.DBExecutor) (Fee, error)
		// UpdateFee saves f only if its stored version is still f.Version, which is then incremented.
		// core.ErrConflict is returned otherwise.
		UpdateFee(ctx context.Context, f Fee, exec ...core.DBExecutor) (Fee, error)
		DeleteFee(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, feeID string, exec ...core.DBExecutor) ([]Payment, error)
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
		return nil, errors.Wrap(err, "late fee fines")
	}
	return &Service{db: db, repo: repo, fines: calc}, nil
}

// Fines returns the calculator used for late balances.
func (svc *Service) Fines() *fine.Calculator { return svc.fines }

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.Clean()
	return validate.Struct(nf)
}

func (uf *UpdateFee) Validate(orig Fee) error {
	if title := core.CleanString(uf.Title); title != "" {
		uf.Title = title
	} else {
		uf.Title = orig.Title
	}
	if uf.AmountTotal != nil {
		if !uf.AmountTotal.IsPositive() {
			return core.NewFieldError("amount_total", "amount_total must be greater than 0")
		}
		if uf.AmountTotal.LessThan(orig.AmountPaid) {
			return core.NewFieldError("amount_total", "amount_total cannot be less than the amount already paid")
		}
	}
	return nil
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Clean()
	return validate.Struct(np)
}

func (svc *Service) Create(ctx context.Context, nf NewFee) (Fee, error) {
	now := core.NowFunc()
	f, err := svc.repo.CreateFee(ctx, Fee{
		StudentID:   nf.StudentID,
		Title:       nf.Title,
		Category:    nf.Category,
		AmountTotal: nf.AmountTotal,
		DueAt:       nf.DueAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Fee{}, err
	}
	return svc.decorate(f), nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Fee, error) {
	fees, err := svc.repo.QueryFees(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range fees {
		fees[i] = svc.decorate(fees[i])
	}
	return fees, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Fee, error) {
	f, err := svc.repo.GetFee(ctx, id)
	if err != nil {
		return Fee{}, err
	}
	return svc.decorate(f), nil
}

func (svc *Service) Update(ctx context.Context, id string, uf UpdateFee) (Fee, error) {
	var updated Fee
	err := core.RetryOnConflict(maxPaymentAttempts, func() error {
		f, err := svc.repo.GetFee(ctx, id)
		if err != nil {
			return err
		}
		if err = uf.Validate(f); err != nil {
			return err
		}
		f.Title = uf.Title
		if uf.AmountTotal != nil {
			f.AmountTotal = *uf.AmountTotal
			if f.Ledger().IsSettled() && f.PaidAt == nil {
				now := core.NowFunc()
				f.PaidAt = &now
			} else if !f.Ledger().IsSettled() {
				f.PaidAt = nil
			}
		}
		if uf.DueAt != nil {
			f.DueAt = uf.DueAt.UTC()
		}
		f.UpdatedAt = core.NowFunc()
		updated, err = svc.repo.UpdateFee(ctx, f)
		return err
	})
	if err != nil {
		return Fee{}, errors.Wrap(err, "updating fee")
	}
	return svc.decorate(updated), nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteFee(ctx, id)
}

// RecordPayment applies a payment to a fee. Concurrent payments are serialized by the fee version:
// a payment that lost the race is re-applied on a fresh read, so `paid <= total` always holds.
func (svc *Service) RecordPayment(ctx context.Context, feeID string, np NewPayment, recordedBy string) (Fee, Payment, error) {
	var (
		updated Fee
		payment Payment
	)
	err := core.RetryOnConflict(maxPaymentAttempts, func() error {
		return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
			f, err := svc.repo.GetFee(ctx, feeID, tx)
			if err != nil {
				return err
			}
			now := core.NowFunc()
			ledger := f.Ledger()
			if err = ledger.Pay(np.Amount, now); err != nil {
				return err
			}
			f.setLedger(ledger)
			f.UpdatedAt = now
			if updated, err = svc.repo.UpdateFee(ctx, f, tx); err != nil {
				return err
			}
			payment, err = svc.repo.CreatePayment(ctx, Payment{
				FeeID:      f.ID,
				Amount:     np.Amount,
				Method:     np.Method,
				Reference:  np.Reference,
				RecordedBy: recordedBy,
				PaidAt:     now,
			}, tx)
			return err
		})
	})
	if err != nil {
		return Fee{}, Payment{}, errors.Wrap(err, "recording payment")
	}
	return svc.decorate(updated), payment, nil
}

func (svc *Service) Payments(ctx context.Context, feeID string) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, feeID)
}

func (svc *Service) decorate(f Fee) Fee {
	ledger := f.Ledger()
	f.Balance = ledger.Balance()
	f.LateFine = ledger.LateFine(svc.fines, core.NowFunc())
	return f
}
