package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/attendance"
)

const attendanceColumns = "id, course_id, student_id, date, status, marked_by, updated_at"

type attendanceRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	StudentID string    `db:"student_id"`
	Date      time.Time `db:"date"`
	Status    string    `db:"status"`
	MarkedBy  string    `db:"marked_by"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID:        r.ID,
		CourseID:  r.CourseID,
		StudentID: r.StudentID,
		Date:      r.Date.UTC(),
		Status:    r.Status,
		MarkedBy:  r.MarkedBy,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type attendanceRepository struct {
	baseRepo
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{baseRepo{exec: exec}}
}

func (repo attendanceRepository) UpsertRecord(ctx context.Context, r attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	row := attendanceRow{
		ID:        newID(),
		CourseID:  r.CourseID,
		StudentID: r.StudentID,
		Date:      r.Date.UTC(),
		Status:    r.Status,
		MarkedBy:  r.MarkedBy,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES (:id, :course_id, :student_id, :date, :status, :marked_by, :updated_at)
		ON CONFLICT (course_id, student_id, date)
		DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at`, row)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "upserting attendance")
	}

	// the id of an overwritten record is the one stored first
	var stored attendanceRow
	err = repo.get(ctx, exec, &stored, `
		SELECT `+attendanceColumns+` FROM attendance
		WHERE course_id = ? AND student_id = ? AND date = ?`, row.CourseID, row.StudentID, row.Date)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "reading attendance")
	}
	return stored.record(), nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, exec ...core.DBExecutor) ([]attendance.Record, error) {
	var where whereClause
	if filter != nil {
		if filter.CourseID != "" {
			where.add("course_id = ?", filter.CourseID)
		}
		if filter.StudentID != "" {
			where.add("student_id = ?", filter.StudentID)
		}
		if !filter.From.IsZero() {
			where.add("date >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			where.add("date <= ?", filter.To.UTC())
		}
	}

	var rows []attendanceRow
	q := "SELECT " + attendanceColumns + " FROM attendance" + where.String() + " ORDER BY date, student_id"
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}
