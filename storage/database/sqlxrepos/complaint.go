package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/complaint"
)

const complaintColumns = "id, ticket_id, complainant_id, category, subject, description, priority, status, " +
	"resolution_note, created_at, updated_at, expected_resolution_at, resolved_at"

var complaintOrdering = map[string]string{
	"created_at":             "created_at",
	"updated_at":             "updated_at",
	"priority":               "priority",
	"status":                 "status",
	"ticket_id":              "ticket_id",
	"expected_resolution_at": "expected_resolution_at",
}

type complaintRow struct {
	ID                   string    `db:"id"`
	TicketID             string    `db:"ticket_id"`
	ComplainantID        string    `db:"complainant_id"`
	Category             string    `db:"category"`
	Subject              string    `db:"subject"`
	Description          string    `db:"description"`
	Priority             string    `db:"priority"`
	Status               string    `db:"status"`
	ResolutionNote       string    `db:"resolution_note"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
	ExpectedResolutionAt time.Time `db:"expected_resolution_at"`
	ResolvedAt           null.Time `db:"resolved_at"`
}

func toComplaintRow(c complaint.Complaint) complaintRow {
	return complaintRow{
		ID:                   c.ID,
		TicketID:             c.TicketID,
		ComplainantID:        c.ComplainantID,
		Category:             c.Category,
		Subject:              c.Subject,
		Description:          c.Description,
		Priority:             c.Priority,
		Status:               c.Status,
		ResolutionNote:       c.ResolutionNote,
		CreatedAt:            c.CreatedAt.UTC(),
		UpdatedAt:            c.UpdatedAt.UTC(),
		ExpectedResolutionAt: c.ExpectedResolutionAt.UTC(),
		ResolvedAt:           nullTime(c.ResolvedAt),
	}
}

func (r complaintRow) complaint() complaint.Complaint {
	return complaint.Complaint{
		ID:                   r.ID,
		TicketID:             r.TicketID,
		ComplainantID:        r.ComplainantID,
		Category:             r.Category,
		Subject:              r.Subject,
		Description:          r.Description,
		Priority:             r.Priority,
		Status:               r.Status,
		ResolutionNote:       r.ResolutionNote,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
		ExpectedResolutionAt: r.ExpectedResolutionAt.UTC(),
		ResolvedAt:           timePtr(r.ResolvedAt),
	}
}

type complaintRepository struct {
	baseRepo
}

var _ complaint.Repository = (*complaintRepository)(nil) // interface compliance check

func NewComplaintRepository(exec core.DBExecutor) *complaintRepository {
	return &complaintRepository{baseRepo{exec: exec}}
}

func (repo complaintRepository) CreateComplaint(ctx context.Context, c complaint.Complaint, exec ...core.DBExecutor) (complaint.Complaint, error) {
	c.ID = newID()
	row := toComplaintRow(c)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES (:id, :ticket_id, :complainant_id, :category, :subject, :description, :priority, :status,
			:resolution_note, :created_at, :updated_at, :expected_resolution_at, :resolved_at)`, row)
	if err != nil {
		return complaint.Complaint{}, trapErr(err, complaint.ErrNotFound, "inserting complaint")
	}
	return row.complaint(), nil
}

func (repo complaintRepository) QueryComplaints(ctx context.Context, filter *complaint.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]complaint.Complaint, error) {
	var where whereClause
	if filter != nil {
		if filter.ComplainantID != "" {
			where.add("complainant_id = ?", filter.ComplainantID)
		}
		if filter.Status != "" {
			where.add("status = ?", filter.Status)
		}
		if filter.Priority != "" {
			where.add("priority = ?", filter.Priority)
		}
		if filter.Category != "" {
			where.add("category = ?", filter.Category)
		}
		if filter.TicketID != "" {
			where.add("ticket_id = ?", filter.TicketID)
		}
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(LOWER(subject) LIKE ? OR LOWER(description) LIKE ? OR LOWER(ticket_id) LIKE ?)", val, val, val)
		}
	}

	var rows []complaintRow
	q := "SELECT " + complaintColumns + " FROM complaints" + where.String() + orderBy(ordering, complaintOrdering, "created_at DESC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying complaints")
	}
	complaints := make([]complaint.Complaint, 0, len(rows))
	for _, r := range rows {
		complaints = append(complaints, r.complaint())
	}
	return complaints, nil
}

func (repo complaintRepository) GetComplaint(ctx context.Context, id string, exec ...core.DBExecutor) (complaint.Complaint, error) {
	if !validID(id) {
		return complaint.Complaint{}, complaint.ErrNotFound
	}
	var row complaintRow
	if err := repo.get(ctx, exec, &row, "SELECT "+complaintColumns+" FROM complaints WHERE id = ?", id); err != nil {
		return complaint.Complaint{}, trapErr(err, complaint.ErrNotFound, "finding complaint")
	}
	return row.complaint(), nil
}

func (repo complaintRepository) UpdateComplaintStatus(ctx context.Context, c complaint.Complaint, fromStatus string, exec ...core.DBExecutor) (complaint.Complaint, error) {
	return repo.update(ctx, c, fromStatus, exec)
}

func (repo complaintRepository) update(ctx context.Context, c complaint.Complaint, fromStatus string, exec []core.DBExecutor) (complaint.Complaint, error) {
	row := toComplaintRow(c)
	q := `
		UPDATE complaints SET
			subject = :subject, description = :description, priority = :priority, status = :status,
			resolution_note = :resolution_note, updated_at = :updated_at, resolved_at = :resolved_at
		WHERE id = :id`
	arg := map[string]interface{}{
		"id": row.ID, "subject": row.Subject, "description": row.Description, "priority": row.Priority,
		"status": row.Status, "resolution_note": row.ResolutionNote, "updated_at": row.UpdatedAt,
		"resolved_at": row.ResolvedAt,
	}
	if fromStatus != "" {
		q += " AND status = :from_status"
		arg["from_status"] = fromStatus
	}

	n, err := repo.namedExec(ctx, exec, q, arg)
	if err != nil {
		return complaint.Complaint{}, trapErr(err, complaint.ErrNotFound, "updating complaint")
	}
	if n == 0 {
		cur, err := repo.GetComplaint(ctx, c.ID, exec...)
		if err != nil {
			return complaint.Complaint{}, err
		}
		return complaint.Complaint{}, core.NewInvalidStateError("complaint", "status changed to "+cur.Status+" in the meantime")
	}
	return row.complaint(), nil
}

func (repo complaintRepository) DeleteComplaint(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return complaint.ErrNotFound
	}
	n, err := repo.run(ctx, exec, "DELETE FROM complaints WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting complaint")
	}
	if n == 0 {
		return complaint.ErrNotFound
	}
	return nil
}

func (repo complaintRepository) CountComplaints(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	var n int64
	if err := repo.get(ctx, exec, &n, "SELECT COUNT(*) FROM complaints"); err != nil {
		return 0, errors.Wrap(err, "counting complaints")
	}
	return n, nil
}
