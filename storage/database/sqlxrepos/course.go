package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/course"
)

const (
	courseColumns     = "id, code, name, description, teacher_id, credits, capacity, enrolled, created_at, updated_at"
	enrollmentColumns = "id, course_id, student_id, status, enrolled_at, dropped_at"
)

var (
	courseOrdering = map[string]string{
		"code":       "code",
		"name":       "name",
		"credits":    "credits",
		"capacity":   "capacity",
		"created_at": "created_at",
	}

	courseSeats = counterTable{
		resource: "course",
		table:    "courses",
		total:    "capacity",
		used:     "enrolled",
		notFound: course.ErrNotFound,
	}
)

type courseRow struct {
	ID          string      `db:"id"`
	Code        string      `db:"code"`
	Name        string      `db:"name"`
	Description string      `db:"description"`
	TeacherID   null.String `db:"teacher_id"`
	Credits     int         `db:"credits"`
	Capacity    int         `db:"capacity"`
	Enrolled    int         `db:"enrolled"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toCourseRow(c course.Course) courseRow {
	return courseRow{
		ID:          c.ID,
		Code:        c.Code,
		Name:        c.Name,
		Description: c.Description,
		TeacherID:   nullString(c.TeacherID),
		Credits:     c.Credits,
		Capacity:    c.Capacity,
		Enrolled:    c.Enrolled,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		TeacherID:   r.TeacherID.String,
		Credits:     r.Credits,
		Capacity:    r.Capacity,
		Enrolled:    r.Enrolled,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type enrollmentRow struct {
	ID         string    `db:"id"`
	CourseID   string    `db:"course_id"`
	StudentID  string    `db:"student_id"`
	Status     string    `db:"status"`
	EnrolledAt time.Time `db:"enrolled_at"`
	DroppedAt  null.Time `db:"dropped_at"`
}

func (r enrollmentRow) enrollment() course.Enrollment {
	return course.Enrollment{
		ID:         r.ID,
		CourseID:   r.CourseID,
		StudentID:  r.StudentID,
		Status:     capacity.State(r.Status),
		EnrolledAt: r.EnrolledAt.UTC(),
		DroppedAt:  timePtr(r.DroppedAt),
	}
}

type courseRepository struct {
	baseRepo
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{baseRepo{exec: exec}}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	c.ID = newID()
	c.Enrolled = 0
	row := toCourseRow(c)
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (:id, :code, :name, :description, :teacher_id, :credits, :capacity, :enrolled, :created_at, :updated_at)`, row)
	if err != nil {
		return course.Course{}, trapErr(err, course.ErrNotFound, "inserting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := contains(filter.Search)
			where.add("(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)", val, val)
		}
		if filter.TeacherID != "" {
			where.add("teacher_id = ?", filter.TeacherID)
		}
	}

	var rows []courseRow
	q := "SELECT " + courseColumns + " FROM courses" + where.String() + orderBy(ordering, courseOrdering, "code ASC")
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	if err := repo.get(ctx, exec, &row, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id); err != nil {
		return course.Course{}, trapErr(err, course.ErrNotFound, "finding course")
	}
	return row.course(), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	row := toCourseRow(c)
	n, err := repo.namedExec(ctx, exec, `
		UPDATE courses SET
			name = :name, description = :description, teacher_id = :teacher_id, credits = :credits, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return course.Course{}, trapErr(err, course.ErrNotFound, "updating course")
	}
	if n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return row.course(), nil
}

func (repo courseRepository) ResizeCourse(ctx context.Context, id string, capacity int, exec ...core.DBExecutor) error {
	return courseSeats.resize(ctx, repo.baseRepo, exec, id, capacity)
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return course.ErrNotFound
	}
	n, err := repo.run(ctx, exec, "DELETE FROM courses WHERE id = ? AND enrolled = 0", id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		if _, err = repo.GetCourse(ctx, id, exec...); err != nil {
			return err
		}
		return core.NewInvalidStateError("course", "students are still enrolled")
	}
	return nil
}

func (repo courseRepository) AcquireSeat(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	return courseSeats.acquire(ctx, repo.baseRepo, exec, courseID)
}

func (repo courseRepository) ReleaseSeat(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	return courseSeats.release(ctx, repo.baseRepo, exec, courseID, false)
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	row := enrollmentRow{
		ID:         newID(),
		CourseID:   e.CourseID,
		StudentID:  e.StudentID,
		Status:     string(e.Status),
		EnrolledAt: e.EnrolledAt.UTC(),
		DroppedAt:  nullTime(e.DroppedAt),
	}
	_, err := repo.namedExec(ctx, exec, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES (:id, :course_id, :student_id, :status, :enrolled_at, :dropped_at)`, row)
	if err != nil {
		return course.Enrollment{}, trapErr(err, course.ErrEnrollmentNotFound, "inserting enrollment")
	}
	return row.enrollment(), nil
}

func (repo courseRepository) QueryEnrollments(ctx context.Context, filter *course.EnrollmentFilter, exec ...core.DBExecutor) ([]course.Enrollment, error) {
	var where whereClause
	if filter != nil {
		if filter.CourseID != "" {
			where.add("course_id = ?", filter.CourseID)
		}
		if filter.StudentID != "" {
			where.add("student_id = ?", filter.StudentID)
		}
		if filter.Status != "" {
			where.add("status = ?", filter.Status)
		}
	}

	var rows []enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments" + where.String() + " ORDER BY enrolled_at DESC"
	if err := repo.selekt(ctx, exec, &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.enrollment())
	}
	return enrollments, nil
}

// GetEnrollment returns the active enrollment of the student in the course, or their latest one.
func (repo courseRepository) GetEnrollment(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	if !validID(courseID) || !validID(studentID) {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	err := repo.get(ctx, exec, &row, `
		SELECT `+enrollmentColumns+` FROM enrollments
		WHERE course_id = ? AND student_id = ?
		ORDER BY CASE WHEN status = ? THEN 0 ELSE 1 END, enrolled_at DESC
		LIMIT 1`, courseID, studentID, string(capacity.StateActive))
	if err != nil {
		return course.Enrollment{}, trapErr(err, course.ErrEnrollmentNotFound, "finding enrollment")
	}
	return row.enrollment(), nil
}

func (repo courseRepository) UpdateEnrollment(ctx context.Context, e course.Enrollment, fromStatus capacity.State, exec ...core.DBExecutor) (course.Enrollment, error) {
	n, err := repo.run(ctx, exec, "UPDATE enrollments SET status = ?, dropped_at = ? WHERE id = ? AND status = ?",
		string(e.Status), nullTime(e.DroppedAt), e.ID, string(fromStatus))
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n == 0 {
		return course.Enrollment{}, core.NewInvalidStateError("enrollment", "enrollment changed in the meantime")
	}
	return e, nil
}
