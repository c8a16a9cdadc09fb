package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/hostel"
)

const (
	hostelColumns     = "id, name, kind, warden, total_beds, occupied_beds, fee_per_term, created_at, updated_at"
	allocationColumns = "id, hostel_id, student_id, room_number, status, fee_total, fee_paid, due_at, paid_at, " +
		"requested_at, allocated_at, ended_at, version"
)

var (
	hostelOrdering = map[string]string{
		"name":          "name",
		"kind":          "kind",
		"total_beds":    "total_beds",
		"occupied_beds": "occupied_beds",
		"created_at":    "created_at",
	}
	allocationOrdering = map[string]string{
		"requested_at": "requested_at",
		"allocated_at": "allocated_at",
		"status":       "status",
		"room_number":  "room_number",
	}

	hostelBeds = counterTable{
		resource: "hostel",
		table:    "hostels",
		total:    "total_beds",
		used:     "occupied_beds",
		notFound: hostel.ErrNotFound,
	}
)

type hostelRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Kind         string          `db:"kind"`
	Warden       string          `db:"warden"`
	TotalBeds    int             `db:"total_beds"`
	OccupiedBeds int             `db:"occupied_beds"`
	FeePerTerm   decimal.Decimal `db:"fee_per_term"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func toHostelRow(h hostel.Hostel) hostelRow {
	return hostelRow{
		ID:           h.ID,
		Name:         h.Name,
		Kind:         h.Kind,
		Warden:       h.Warden,
		TotalBeds:    h.TotalBeds,
		OccupiedBeds: h.OccupiedBeds,
		FeePerTerm:   h.FeePerTerm,
		CreatedAt:    h.CreatedAt.UTC(),
		UpdatedAt:    h.UpdatedAt.UTC(),
	}
}

func (r hostelRow) hostel() hostel.Hostel {
	return hostel.Hostel{
		ID:           r.ID,
		Name:         r.Name,
		Kind:         r.Kind,
		Warden:       r.Warden,
		TotalBeds:    r.TotalBeds,
		OccupiedBeds: r.OccupiedBeds,
		FeePerTerm:   r.FeePerTerm,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type allocationRow struct {
	ID          string          `db:"id"`
	HostelID    string          `db:"hostel_id"`
	StudentID   string          `db:"student_id"`
	RoomNumber  string          `db:"room_number"`
	Status      string          `db:"status"`
	FeeTotal    decimal.Decimal `db:"fee_total"`
	FeePaid     decimal.Decimal `db:"fee_paid"`
	DueAt       null.Time       `db:"due_at"`
	PaidAt      null.Time       `db:"paid_at"`
	RequestedAt time.Time       `db:"requested_at"`
	AllocatedAt null.Time       `db:"allocated_at"`
	EndedAt     null.Time       `db:"ended_at"`
	Version     int             `db:"version"`
}

func toAllocationRow(a hostel.Allocation) allocationRow {
	return allocationRow{
		ID:          a.ID,
		HostelID:    a.HostelID,
		StudentID:   a.StudentID,
		RoomNumber:  a.RoomNumber,
		Status:      string(a.Status),
		FeeTotal:    a.FeeTotal,
		FeePaid:     a.FeePaid,
		DueAt:       nullTime(a.DueAt),
		PaidAt:      nullTime(a.PaidAt),
		RequestedAt: a.RequestedAt.UTC(),
		AllocatedAt: nullTime(a.AllocatedAt),
		EndedAt:     nullTime(a.EndedAt),
		Version:     a.Version,
	}
}

func (r allocationRow) allocation() hostel.Allocation {
	return hostel.Allocation{
		ID:          r.ID,
		HostelID:    r.HostelID,
		StudentID:   r.StudentID,
		RoomNumber:  r.RoomNumber,
		Status:      capacity.State(r.Status),
		FeeTotal:    r.FeeTotal,
		FeePaid:     r.FeePaid,
		DueAt:       timePtr(r.DueAt),
		PaidAt:      timePtr(r.PaidAt),
		RequestedAt: r.RequestedAt.UTC(),
		AllocatedAt: timePtr(r.AllocatedAt),
		EndedAt:     timePtr(r.EndedAt),
		Version:     r.Version,
	}
}

type hostelRepository struct {
	baseRepo
}

var _ hostel.Repository = (*hostelRepository)(nil) // interface compliance check

func NewHostelRepository(exec core.DBExecutor) *hostelRepository {
	return &hostelRepository{baseRepo{exec: exec}}
}

// Hostels

func (repo hostelRepository) CreateHostel(ctx context.Context, h hostel.Hostel, exec ...core.DBExecutor) (hostel.Hostel, error) {
	h.ID = newID()
	h.OccupiedBeds = 0
	row := toHostelRow(h)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO hostels (`+hostelColumns+`)
		VALUES (:id, :name, :kind, :warden, :total_beds, :occupied_beds, :fee_per_term, :created_at, :updated_at)`, row)
	if err != nil {
		return hostel.Hostel{}, trapErr(err, hostel.ErrNotFound, "inserting hostel")
	}
	return row.hostel(), nil
}

func (repo hostelRepository) QueryHostels(ctx context.Context, filter *hostel.HostelFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]hostel.Hostel, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(LOWER(name) LIKE ? OR LOWER(warden) LIKE ?)", val, val)
		}
		if filter.Kind != "" {
			where.add("kind = ?", filter.Kind)
		}
		if filter.AvailableOnly {
			where.add("occupied_beds < total_beds")
		}
	}

	var rows []hostelRow
	q := "SELECT " + hostelColumns + " FROM hostels" + where.String() + orderBy(ordering, hostelOrdering, "name ASC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying hostels")
	}
	hostels := make([]hostel.Hostel, 0, len(rows))
	for _, r := range rows {
		hostels = append(hostels, r.hostel())
	}
	return hostels, nil
}

func (repo hostelRepository) GetHostel(ctx context.Context, id string, exec ...core.DBExecutor) (hostel.Hostel, error) {
	if !validID(id) {
		return hostel.Hostel{}, hostel.ErrNotFound
	}
	var row hostelRow
	if err := repo.get(ctx, exec, &row, "SELECT "+hostelColumns+" FROM hostels WHERE id = ?", id); err != nil {
		return hostel.Hostel{}, trapErr(err, hostel.ErrNotFound, "finding hostel")
	}
	return row.hostel(), nil
}

func (repo hostelRepository) UpdateHostel(ctx context.Context, h hostel.Hostel, exec ...core.DBExecutor) (hostel.Hostel, error) {
	row := toHostelRow(h)
	n, err := repo.namedExec(ctx, exec, `
		UPDATE hostels SET name = :name, kind = :kind, warden = :warden, fee_per_term = :fee_per_term, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return hostel.Hostel{}, trapErr(err, hostel.ErrNotFound, "updating hostel")
	}
	if n == 0 {
		return hostel.Hostel{}, hostel.ErrNotFound
	}
	return row.hostel(), nil
}

func (repo hostelRepository) ResizeHostel(ctx context.Context, id string, totalBeds int, exec ...core.DBExecutor) error {
	return hostelBeds.resize(ctx, repo.baseRepo, exec, id, totalBeds)
}

func (repo hostelRepository) DeleteHostel(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return hostel.ErrNotFound
	}
	n, err := repo.run(ctx, exec, "DELETE FROM hostels WHERE id = ? AND occupied_beds = 0", id)
	if err != nil {
		return errors.Wrap(err, "deleting hostel")
	}
	if n == 0 {
		if _, err = repo.GetHostel(ctx, id, exec...); err != nil {
			return err
		}
		return core.NewInvalidStateError("hostel", "beds are still occupied")
	}
	return nil
}

func (repo hostelRepository) AcquireBed(ctx context.Context, hostelID string, exec ...core.DBExecutor) error {
	return hostelBeds.acquire(ctx, repo.baseRepo, exec, hostelID)
}

func (repo hostelRepository) ReleaseBed(ctx context.Context, hostelID string, exec ...core.DBExecutor) error {
	return hostelBeds.release(ctx, repo.baseRepo, exec, hostelID, false)
}

// Allocations

func (repo hostelRepository) CreateAllocation(ctx context.Context, a hostel.Allocation, exec ...core.DBExecutor) (hostel.Allocation, error) {
	a.ID = newID()
	a.Version = 1
	row := toAllocationRow(a)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO hostel_allocations (`+allocationColumns+`)
		VALUES (:id, :hostel_id, :student_id, :room_number, :status, :fee_total, :fee_paid, :due_at, :paid_at,
			:requested_at, :allocated_at, :ended_at, :version)`, row)
	if err != nil {
		return hostel.Allocation{}, trapErr(err, hostel.ErrAllocationNotFound, "inserting allocation")
	}
	return row.allocation(), nil
}

func (repo hostelRepository) QueryAllocations(ctx context.Context, filter *hostel.AllocationFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]hostel.Allocation, error) {
	var where whereClause
	if filter != nil {
		if filter.HostelID != "" {
			where.add("hostel_id = ?", filter.HostelID)
		}
		if filter.StudentID != "" {
			where.add("student_id = ?", filter.StudentID)
		}
		if filter.Status != "" {
			where.add("status = ?", filter.Status)
		}
	}

	var rows []allocationRow
	q := "SELECT " + allocationColumns + " FROM hostel_allocations" + where.String() + orderBy(ordering, allocationOrdering, "requested_at DESC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying allocations")
	}
	allocs := make([]hostel.Allocation, 0, len(rows))
	for _, r := range rows {
		allocs = append(allocs, r.allocation())
	}
	return allocs, nil
}

func (repo hostelRepository) GetAllocation(ctx context.Context, id string, exec ...core.DBExecutor) (hostel.Allocation, error) {
	if !validID(id) {
		return hostel.Allocation{}, hostel.ErrAllocationNotFound
	}
	var row allocationRow
	if err := repo.get(ctx, exec, &row, "SELECT "+allocationColumns+" FROM hostel_allocations WHERE id = ?", id); err != nil {
		return hostel.Allocation{}, trapErr(err, hostel.ErrAllocationNotFound, "finding allocation")
	}
	return row.allocation(), nil
}

func (repo hostelRepository) UpdateAllocation(ctx context.Context, a hostel.Allocation, fromStatus capacity.State, exec ...core.DBExecutor) (hostel.Allocation, error) {
	row := toAllocationRow(a)
	n, err := repo.run(ctx, exec, `
		UPDATE hostel_allocations SET
			status = ?, room_number = ?, fee_paid = ?, due_at = ?, paid_at = ?, allocated_at = ?, ended_at = ?,
			version = version + 1
		WHERE id = ? AND status = ? AND version = ?`,
		row.Status, row.RoomNumber, row.FeePaid, row.DueAt, row.PaidAt, row.AllocatedAt, row.EndedAt,
		row.ID, string(fromStatus), row.Version)
	if err != nil {
		return hostel.Allocation{}, trapErr(err, hostel.ErrAllocationNotFound, "updating allocation")
	}
	if n == 0 {
		cur, err := repo.GetAllocation(ctx, a.ID, exec...)
		if err != nil {
			return hostel.Allocation{}, err
		}
		if cur.Status != fromStatus {
			return hostel.Allocation{}, core.NewInvalidStateError("hostel allocation", "already "+string(cur.Status))
		}
		return hostel.Allocation{}, core.ErrConflict
	}
	row.Version++
	return row.allocation(), nil
}
