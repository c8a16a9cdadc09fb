package attendance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paridhisingla/unisync/core"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

// Attended reports whether a record with the given status counts as attended.
func Attended(status string) bool {
	return status == StatusPresent || status == StatusLate
}

type Record struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"` // UTC midnight
	Status    string    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the attendance of one student in one course.
type Summary struct {
	CourseID   string          `json:"course_id"`
	StudentID  string          `json:"student_id"`
	Total      int             `json:"total"`
	Attended   int             `json:"attended"`
	Absent     int             `json:"absent"`
	Late       int             `json:"late"`
	Excused    int             `json:"excused"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Summarize computes a Summary from the records of a single student and course.
func Summarize(courseID, studentID string, records []Record) Summary {
	s := Summary{CourseID: courseID, StudentID: studentID, Total: len(records), Percentage: decimal.Zero}
	for _, r := range records {
		switch r.Status {
		case StatusAbsent:
			s.Absent++
		case StatusLate:
			s.Late++
		case StatusExcused:
			s.Excused++
		}
		if Attended(r.Status) {
			s.Attended++
		}
	}
	s.Percentage = Percentage(s.Attended, s.Total)
	return s
}

// Percentage returns attended/total as a percentage rounded to 2 decimals. Zero sessions gives 0.
func Percentage(attended, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(attended)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}

// Mark is one line of a marking request.
type Mark struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
}

// NewMarks records the attendance of several students of a course on one date.
type NewMarks struct {
	Date  time.Time `json:"date" validate:"required"`
	Marks []Mark    `json:"marks" validate:"required,min=1,dive"`
}

func (nm *NewMarks) Clean() {
	nm.Date = core.StartOfDay(nm.Date)
	for i := range nm.Marks {
		nm.Marks[i].StudentID = core.CleanString(nm.Marks[i].StudentID)
		nm.Marks[i].Status = core.CleanString(nm.Marks[i].Status, true /* lower */)
	}
}

type QueryFilter struct {
	CourseID  string    `query:"-"`
	StudentID string    `query:"student_id"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	if !qf.From.IsZero() {
		qf.From = core.StartOfDay(qf.From)
	}
	if !qf.To.IsZero() {
		qf.To = core.StartOfDay(qf.To)
	}
}
