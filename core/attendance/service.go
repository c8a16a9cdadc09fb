package attendance

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
)

type (
	Repository interface {
		// UpsertRecord inserts r or overwrites the status of the existing (course, student, date) record.
		UpsertRecord(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Record, error)
	}

	// EnrollmentChecker tells whether a student attends a course.
	EnrollmentChecker interface {
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		courses EnrollmentChecker
	}
)

func NewService(db core.DB, repo Repository, courses EnrollmentChecker) *Service {
	return &Service{db: db, repo: repo, courses: courses}
}

func (nm *NewMarks) Validate(validate *validator.Validate) error {
	nm.Clean()
	if err := validate.Struct(nm); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(nm.Marks))
	for _, m := range nm.Marks {
		if _, ok := seen[m.StudentID]; ok {
			return core.NewFieldError("marks", fmt.Sprintf("student %s is marked twice", m.StudentID))
		}
		seen[m.StudentID] = struct{}{}
	}
	if nm.Date.After(core.StartOfDay(core.NowFunc())) {
		return core.NewFieldError("date", "cannot mark attendance for a future date")
	}
	return nil
}

// Mark records the attendance of a batch of students of a course. Marking the same date twice overwrites.
// Every student must be enrolled in the course, otherwise nothing is recorded.
func (svc *Service) Mark(ctx context.Context, courseID, markedBy string, nm NewMarks) ([]Record, error) {
	for _, m := range nm.Marks {
		ok, err := svc.courses.IsEnrolled(ctx, courseID, m.StudentID)
		if err != nil {
			return nil, errors.Wrap(err, "checking enrollment")
		}
		if !ok {
			return nil, core.NewFieldError("marks", fmt.Sprintf("student %s is not enrolled in this course", m.StudentID))
		}
	}

	now := core.NowFunc()
	records := make([]Record, 0, len(nm.Marks))
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, m := range nm.Marks {
			r, err := svc.repo.UpsertRecord(ctx, Record{
				CourseID:  courseID,
				StudentID: m.StudentID,
				Date:      nm.Date,
				Status:    m.Status,
				MarkedBy:  markedBy,
				UpdatedAt: now,
			}, tx)
			if err != nil {
				return err
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "marking attendance")
	}
	return records, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter)
}

// Summary returns the attendance summary of a student in a course.
func (svc *Service) Summary(ctx context.Context, courseID, studentID string) (Summary, error) {
	records, err := svc.repo.QueryRecords(ctx, &QueryFilter{CourseID: courseID, StudentID: studentID})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(courseID, studentID, records), nil
}

// CourseSummaries returns one summary per student having attendance records in the course, in student order.
func (svc *Service) CourseSummaries(ctx context.Context, courseID string) ([]Summary, error) {
	records, err := svc.repo.QueryRecords(ctx, &QueryFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}

	var order []string
	byStudent := make(map[string][]Record)
	for _, r := range records {
		if _, ok := byStudent[r.StudentID]; !ok {
			order = append(order, r.StudentID)
		}
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	summaries := make([]Summary, 0, len(order))
	for _, sid := range order {
		summaries = append(summaries, Summarize(courseID, sid, byStudent[sid]))
	}
	return summaries, nil
}
