package course

import (
	"time"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/capacity"
)

type Course struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	TeacherID      string    `json:"teacher_id"`
	Credits        int       `json:"credits"`
	Capacity       int       `json:"capacity"`
	Enrolled       int       `json:"enrolled"`
	AvailableSeats int       `json:"available_seats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c Course) Seats() capacity.Counter {
	return capacity.Counter{Resource: "course", Total: c.Capacity, Used: c.Enrolled}
}

// Enrollment status is StateActive while the student attends the course and StateVacated once dropped.
type Enrollment struct {
	ID         string         `json:"id"`
	CourseID   string         `json:"course_id"`
	StudentID  string         `json:"student_id"`
	Status     capacity.State `json:"status"`
	EnrolledAt time.Time      `json:"enrolled_at"`
	DroppedAt  *time.Time     `json:"dropped_at"`
}

type NewCourse struct {
	Code        string `json:"code" validate:"required,notblank,max=20,alphanum_"`
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Description string `json:"description"`
	TeacherID   string `json:"teacher_id"`
	Credits     int    `json:"credits" validate:"gte=0,lte=30"`
	Capacity    int    `json:"capacity" validate:"gte=0"`
}

func (nc *NewCourse) Clean() {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.TeacherID = core.CleanString(nc.TeacherID)
}

type UpdateCourse struct {
	Name        string  `json:"name" validate:"max=200"`
	Description *string `json:"description"`
	TeacherID   *string `json:"teacher_id"`
	Credits     *int    `json:"credits" validate:"omitempty,gte=0,lte=30"`
	Capacity    *int    `json:"capacity" validate:"omitempty,gte=0"`
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}

type EnrollmentFilter struct {
	CourseID  string `query:"course_id"`
	StudentID string `query:"student_id"`
	Status    string `query:"status"`
}

func (ef *EnrollmentFilter) Clean() {
	ef.CourseID = core.CleanString(ef.CourseID)
	ef.StudentID = core.CleanString(ef.StudentID)
	ef.Status = core.CleanString(ef.Status, true /* lower */)
}
