package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/dashboard"
	"github.com/paridhisingla/unisync/core/user"
)

type dashboardRepository struct {
	baseRepo
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(exec core.DBExecutor) *dashboardRepository {
	return &dashboardRepository{baseRepo{exec: exec}}
}

func (repo dashboardRepository) Stats(ctx context.Context, exec ...core.DBExecutor) (dashboard.Stats, error) {
	var row struct {
		Students       int64           `db:"students"`
		Teachers       int64           `db:"teachers"`
		Courses        int64           `db:"courses"`
		OpenComplaints int64           `db:"open_complaints"`
		HostelBeds     int64           `db:"hostel_beds"`
		HostelOccupied int64           `db:"hostel_occupied"`
		Outstanding    decimal.Decimal `db:"outstanding"`
	}
	err := repo.get(ctx, exec, &row, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE is_active AND (',' || roles) LIKE ?) AS students,
			(SELECT COUNT(*) FROM users WHERE is_active AND (',' || roles) LIKE ?) AS teachers,
			(SELECT COUNT(*) FROM courses) AS courses,
			(SELECT COUNT(*) FROM complaints WHERE status IN (?, ?)) AS open_complaints,
			(SELECT COALESCE(SUM(total_beds), 0) FROM hostels) AS hostel_beds,
			(SELECT COALESCE(SUM(occupied_beds), 0) FROM hostels) AS hostel_occupied,
			(SELECT COALESCE(SUM(amount_total - amount_paid), 0) FROM fees WHERE amount_paid < amount_total) AS outstanding`,
		"%,"+user.RoleStudent+"%", "%,"+user.RoleTeacher+"%", complaint.StatusOpen, complaint.StatusInProgress)
	if err != nil {
		return dashboard.Stats{}, errors.Wrap(err, "computing stats")
	}
	return dashboard.Stats{
		Students:              row.Students,
		Teachers:              row.Teachers,
		Courses:               row.Courses,
		OpenComplaints:        row.OpenComplaints,
		HostelBeds:            row.HostelBeds,
		HostelOccupied:        row.HostelOccupied,
		OutstandingFeeBalance: row.Outstanding.Round(2),
	}, nil
}
