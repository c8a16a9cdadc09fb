// Package dashboard aggregates campus-wide figures for administrators.
package dashboard

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/library"
)

type Stats struct {
	Students              int64           `json:"students"`
	Teachers              int64           `json:"teachers"`
	Courses               int64           `json:"courses"`
	OpenComplaints        int64           `json:"open_complaints"`
	OverdueIssues         int64           `json:"overdue_issues"`
	HostelBeds            int64           `json:"hostel_beds"`
	HostelOccupied        int64           `json:"hostel_occupied"`
	OutstandingFeeBalance decimal.Decimal `json:"outstanding_fee_balance"`
}

type (
	// Repository computes the figures that are plain aggregates over the stored rows.
	// OverdueIssues is left to the library service.
	Repository interface {
		Stats(ctx context.Context, exec ...core.DBExecutor) (Stats, error)
	}

	IssueQuerier interface {
		QueryIssues(ctx context.Context, filter *library.IssueFilter, ordering []core.DBOrdering) ([]library.Issue, error)
	}

	Service struct {
		repo   Repository
		issues IssueQuerier
	}
)

func NewService(repo Repository, issues IssueQuerier) *Service {
	return &Service{repo: repo, issues: issues}
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := svc.repo.Stats(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "computing stats")
	}
	overdue, err := svc.issues.QueryIssues(ctx, &library.IssueFilter{Status: library.StatusIssued, Overdue: true}, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting overdue issues")
	}
	stats.OverdueIssues = int64(len(overdue))
	return stats, nil
}
