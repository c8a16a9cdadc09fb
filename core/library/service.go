package library

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/fine"
)

var (
	ErrBookNotFound  = core.NewNotFoundError("book")
	ErrIssueNotFound = core.NewNotFoundError("book issue")
)

type (
	Repository interface {
		CreateBook(ctx context.Context, b Book, exec ...core.DBExecutor) (Book, error)
		QueryBooks(ctx context.Context, filter *BookFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Book, error)
		GetBook(ctx context.Context, id string, exec ...core.DBExecutor) (Book, error)
		// UpdateBook saves the descriptive fields of b. Copies counters are left untouched.
		UpdateBook(ctx context.Context, b Book, exec ...core.DBExecutor) (Book, error)
		// ResizeBook sets the total copies of a book, failing if fewer than the issued copies.
		ResizeBook(ctx context.Context, id string, total int, exec ...core.DBExecutor) error
		DeleteBook(ctx context.Context, id string, exec ...core.DBExecutor) error

		// AcquireCopy atomically takes one available copy of a book.
		AcquireCopy(ctx context.Context, bookID string, exec ...core.DBExecutor) error
		// ReleaseCopy atomically gives one copy back. A lost copy is removed from the total as well.
		ReleaseCopy(ctx context.Context, bookID string, lost bool, exec ...core.DBExecutor) error

		CreateIssue(ctx context.Context, is Issue, exec ...core.DBExecutor) (Issue, error)
		QueryIssues(ctx context.Context, filter *IssueFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Issue, error)
		GetIssue(ctx context.Context, id string, exec ...core.DBExecutor) (Issue, error)
		// UpdateIssue saves is only if its stored status is still fromStatus.
		UpdateIssue(ctx context.Context, is Issue, fromStatus string, exec ...core.DBExecutor) (Issue, error)
		// MarkFinePaid flags the fine of a settled issue as paid, once.
		MarkFinePaid(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		db       core.DB
		repo     Repository
		fines    *fine.Calculator
		loanDays int
	}
)

func NewService(db core.DB, repo Repository, conf *core.Config) (*Service, error) {
	calc, err := fine.NewCalculator(conf.Library.FinePerDay)
	if err != nil {
		return nil, errors.Wrap(err, "library fines")
	}
	loanDays := conf.Library.LoanDays
	if loanDays <= 0 {
		loanDays = 14
	}
	return &Service{db: db, repo: repo, fines: calc, loanDays: loanDays}, nil
}

func (nb *NewBook) Validate(validate *validator.Validate) error {
	nb.Clean()
	return validate.Struct(nb)
}

func (ub *UpdateBook) Validate(orig Book, validate *validator.Validate) error {
	if title := core.CleanString(ub.Title); title != "" {
		ub.Title = title
	} else {
		ub.Title = orig.Title
	}
	if author := core.CleanString(ub.Author); author != "" {
		ub.Author = author
	} else {
		ub.Author = orig.Author
	}
	if isbn := core.CleanString(ub.ISBN); isbn != "" {
		ub.ISBN = isbn
	} else {
		ub.ISBN = orig.ISBN
	}
	if cat := core.CleanString(ub.Category, true /* lower */); cat != "" {
		ub.Category = cat
	} else {
		ub.Category = orig.Category
	}
	return validate.Struct(ub)
}

func (ni *NewIssue) Validate(validate *validator.Validate) error {
	ni.BookID = core.CleanString(ni.BookID)
	ni.BorrowerID = core.CleanString(ni.BorrowerID)
	return validate.Struct(ni)
}

// Books

func (svc *Service) CreateBook(ctx context.Context, nb NewBook) (Book, error) {
	now := core.NowFunc()
	b := Book{
		Title:       nb.Title,
		Author:      nb.Author,
		ISBN:        nb.ISBN,
		Category:    nb.Category,
		TotalCopies: nb.TotalCopies,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b, err := svc.repo.CreateBook(ctx, b)
	if err != nil {
		return Book{}, err
	}
	return decorateBook(b), nil
}

func (svc *Service) QueryBooks(ctx context.Context, filter *BookFilter, ordering []core.DBOrdering) ([]Book, error) {
	books, err := svc.repo.QueryBooks(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range books {
		books[i] = decorateBook(books[i])
	}
	return books, nil
}

func (svc *Service) GetBook(ctx context.Context, id string) (Book, error) {
	b, err := svc.repo.GetBook(ctx, id)
	if err != nil {
		return Book{}, err
	}
	return decorateBook(b), nil
}

// UpdateBook saves ub. A change of total copies goes through the copies counter so it never drops below the issued copies.
func (svc *Service) UpdateBook(ctx context.Context, b Book, ub UpdateBook) (Book, error) {
	if ub.TotalCopies != nil && *ub.TotalCopies != b.TotalCopies {
		copies := b.Copies()
		if err := copies.Resize(*ub.TotalCopies); err != nil {
			return Book{}, err
		}
	}

	b.Title = ub.Title
	b.Author = ub.Author
	b.ISBN = ub.ISBN
	b.Category = ub.Category
	b.UpdatedAt = core.NowFunc()

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if ub.TotalCopies != nil && *ub.TotalCopies != b.TotalCopies {
			if err := svc.repo.ResizeBook(ctx, b.ID, *ub.TotalCopies, tx); err != nil {
				return err
			}
		}
		_, err := svc.repo.UpdateBook(ctx, b, tx)
		return err
	})
	if err != nil {
		return Book{}, errors.Wrap(err, "updating book")
	}
	return svc.GetBook(ctx, b.ID)
}

func (svc *Service) DeleteBook(ctx context.Context, b Book) error {
	if b.IssuedCopies > 0 {
		return core.NewInvalidStateError("book", fmt.Sprintf("%d copies are still issued", b.IssuedCopies))
	}
	return svc.repo.DeleteBook(ctx, b.ID)
}

func decorateBook(b Book) Book {
	b.AvailableCopies = b.Copies().Available()
	return b
}

// Issues

// Issue lends a copy of a book. It fails with a CapacityExceededError when no copy is available.
func (svc *Service) Issue(ctx context.Context, ni NewIssue) (Issue, error) {
	now := core.NowFunc()
	is := Issue{
		BookID:     ni.BookID,
		BorrowerID: ni.BorrowerID,
		IssuedAt:   now,
		DueAt:      ni.DueAt.UTC(),
		Status:     StatusIssued,
		FrozenFine: decimal.Zero,
	}
	if ni.DueAt.IsZero() {
		is.DueAt = now.AddDate(0, 0, svc.loanDays)
	} else if !is.DueAt.After(now) {
		return Issue{}, core.NewFieldError("due_at", "due date must be in the future")
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.AcquireCopy(ctx, is.BookID, tx); err != nil {
			return err
		}
		var err error
		is, err = svc.repo.CreateIssue(ctx, is, tx)
		return err
	})
	if err != nil {
		return Issue{}, errors.Wrap(err, "issuing book")
	}
	return svc.decorateIssue(is), nil
}

// Return closes an issued loan. The fine is frozen at the return date.
func (svc *Service) Return(ctx context.Context, is Issue) (Issue, error) {
	return svc.settle(ctx, is, StatusReturned)
}

// MarkLost closes an issued loan whose copy will never come back. The copy leaves the stock.
func (svc *Service) MarkLost(ctx context.Context, is Issue) (Issue, error) {
	return svc.settle(ctx, is, StatusLost)
}

func (svc *Service) settle(ctx context.Context, is Issue, to string) (Issue, error) {
	if err := capacity.CheckTransition("book issue", is.State(), issueStates[to]); err != nil {
		return Issue{}, err
	}

	now := core.NowFunc()
	if to == StatusReturned {
		is.ReturnedAt = &now
	} else {
		is.LostAt = &now
	}
	is.FrozenFine = svc.fines.Fine(is.DueAt, &now, now)
	from := is.Status
	if from == StatusOverdue {
		from = StatusIssued
	}
	is.Status = to

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if is, err = svc.repo.UpdateIssue(ctx, is, from, tx); err != nil {
			return err
		}
		return svc.repo.ReleaseCopy(ctx, is.BookID, to == StatusLost, tx)
	})
	if err != nil {
		return Issue{}, errors.Wrapf(err, "marking issue %s", to)
	}
	return svc.decorateIssue(is), nil
}

// PayFine records the payment of the fine of a settled loan.
func (svc *Service) PayFine(ctx context.Context, is Issue) (Issue, error) {
	is = svc.decorateIssue(is)
	switch {
	case is.SettledAt() == nil:
		return Issue{}, core.NewInvalidStateError("book issue", "fine can only be paid once the book is returned or declared lost")
	case !is.Fine.IsPositive():
		return Issue{}, core.NewInvalidStateError("book issue", "there is no fine to pay")
	case is.FinePaid:
		return Issue{}, core.NewInvalidStateError("book issue", "fine already paid")
	}
	if err := svc.repo.MarkFinePaid(ctx, is.ID); err != nil {
		return Issue{}, err
	}
	is.FinePaid = true
	return is, nil
}

func (svc *Service) QueryIssues(ctx context.Context, filter *IssueFilter, ordering []core.DBOrdering) ([]Issue, error) {
	issues, err := svc.repo.QueryIssues(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	res := make([]Issue, 0, len(issues))
	for _, is := range issues {
		is = svc.decorateIssue(is)
		if filter != nil && filter.Overdue && is.Status != StatusOverdue {
			continue
		}
		res = append(res, is)
	}
	return res, nil
}

func (svc *Service) GetIssue(ctx context.Context, id string) (Issue, error) {
	is, err := svc.repo.GetIssue(ctx, id)
	if err != nil {
		return Issue{}, err
	}
	return svc.decorateIssue(is), nil
}

// Fine returns the fine of is at now.
func (svc *Service) Fine(is Issue, now time.Time) decimal.Decimal {
	if is.SettledAt() != nil {
		return is.FrozenFine
	}
	return svc.fines.Fine(is.DueAt, nil, now)
}

func (svc *Service) decorateIssue(is Issue) Issue {
	now := core.NowFunc()
	is.Fine = svc.Fine(is, now)
	if is.Status == StatusIssued && fine.IsOverdue(is.DueAt, nil, now) {
		is.Status = StatusOverdue
	}
	return is
}
