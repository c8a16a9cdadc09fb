package course

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
)

var (
	ErrNotFound           = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		// UpdateCourse saves the descriptive fields of c. The enrolled counter is left untouched.
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		ResizeCourse(ctx context.Context, id string, capacity int, exec ...core.DBExecutor) error
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error

		AcquireSeat(ctx context.Context, courseID string, exec ...core.DBExecutor) error
		ReleaseSeat(ctx context.Context, courseID string, exec ...core.DBExecutor) error

		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter *EnrollmentFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, studentID string, exec ...core.DBExecutor) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, fromStatus capacity.State, exec ...core.DBExecutor) (Enrollment, error)
	}

	Service struct {
		db   core.DB
		repo Repository
	}
)

func NewService(db core.DB, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Clean()
	return validate.Struct(nc)
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.Description == nil {
		uc.Description = &orig.Description
	}
	if uc.TeacherID == nil {
		uc.TeacherID = &orig.TeacherID
	}
	if uc.Credits == nil {
		uc.Credits = &orig.Credits
	}
	return validate.Struct(uc)
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := core.NowFunc()
	c, err := svc.repo.CreateCourse(ctx, Course{
		Code:        nc.Code,
		Name:        nc.Name,
		Description: nc.Description,
		TeacherID:   nc.TeacherID,
		Credits:     nc.Credits,
		Capacity:    nc.Capacity,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Course{}, err
	}
	return decorate(c), nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	courses, err := svc.repo.QueryCourses(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i] = decorate(courses[i])
	}
	return courses, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	return decorate(c), nil
}

func (svc *Service) Update(ctx context.Context, c Course, uc UpdateCourse) (Course, error) {
	resize := uc.Capacity != nil && *uc.Capacity != c.Capacity
	if resize {
		seats := c.Seats()
		if err := seats.Resize(*uc.Capacity); err != nil {
			return Course{}, err
		}
	}

	c.Name = uc.Name
	c.Description = core.CleanString(*uc.Description)
	c.TeacherID = core.CleanString(*uc.TeacherID)
	c.Credits = *uc.Credits
	c.UpdatedAt = core.NowFunc()

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if resize {
			if err := svc.repo.ResizeCourse(ctx, c.ID, *uc.Capacity, tx); err != nil {
				return err
			}
		}
		_, err := svc.repo.UpdateCourse(ctx, c, tx)
		return err
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	return svc.GetByID(ctx, c.ID)
}

func (svc *Service) Delete(ctx context.Context, c Course) error {
	if c.Enrolled > 0 {
		return core.NewInvalidStateError("course", fmt.Sprintf("%d students are still enrolled", c.Enrolled))
	}
	return svc.repo.DeleteCourse(ctx, c.ID)
}

// Enroll takes a seat in the course for the student.
func (svc *Service) Enroll(ctx context.Context, c Course, studentID string) (Enrollment, error) {
	e := Enrollment{
		CourseID:   c.ID,
		StudentID:  studentID,
		Status:     capacity.StateActive,
		EnrolledAt: core.NowFunc(),
	}
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.AcquireSeat(ctx, c.ID, tx); err != nil {
			return err
		}
		var err error
		e, err = svc.repo.CreateEnrollment(ctx, e, tx)
		return err
	})
	if err != nil {
		if core.IsDuplicate(err) {
			return Enrollment{}, core.NewInvalidStateError("enrollment", "student is already enrolled in this course")
		}
		return Enrollment{}, errors.Wrap(err, "enrolling")
	}
	return e, nil
}

// Drop ends the active enrollment of the student and frees the seat.
func (svc *Service) Drop(ctx context.Context, c Course, studentID string) (Enrollment, error) {
	var e Enrollment
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if e, err = svc.repo.GetEnrollment(ctx, c.ID, studentID, tx); err != nil {
			return err
		}
		if err = capacity.CheckTransition("enrollment", e.Status, capacity.StateVacated); err != nil {
			return err
		}
		from := e.Status
		now := core.NowFunc()
		e.Status = capacity.StateVacated
		e.DroppedAt = &now
		if e, err = svc.repo.UpdateEnrollment(ctx, e, from, tx); err != nil {
			return err
		}
		return svc.repo.ReleaseSeat(ctx, c.ID, tx)
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "dropping course")
	}
	return e, nil
}

func (svc *Service) Enrollments(ctx context.Context, filter *EnrollmentFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

// IsEnrolled reports whether the student holds an active enrollment in the course.
func (svc *Service) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	e, err := svc.repo.GetEnrollment(ctx, courseID, studentID)
	if err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, err
	}
	return capacity.Holds(e.Status), nil
}

func decorate(c Course) Course {
	c.AvailableSeats = c.Seats().Available()
	return c
}
