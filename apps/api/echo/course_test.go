package echoapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/paridhisingla/unisync/apps/api/echo"
	"github.com/paridhisingla/unisync/core/attendance"
	"github.com/paridhisingla/unisync/core/capacity"
	"github.com/paridhisingla/unisync/core/course"
)

func Test_courseApi(t *testing.T) {
	env := setup(t)
	admin := env.admin(t)
	prof := env.teacher(t, "prof")
	other := env.teacher(t, "other")
	hero := env.student(t, "hero")
	villain := env.student(t, "villain")
	sidekick := env.student(t, "sidekick")
	adminToken, profToken, otherToken := env.token(t, admin), env.token(t, prof), env.token(t, other)
	heroToken, villainToken, sidekickToken := env.token(t, hero), env.token(t, villain), env.token(t, sidekick)

	newCourse := course.NewCourse{Code: "CS101", Name: "Programming", TeacherID: prof.ID, Credits: 4, Capacity: 2}

	rec := env.do(t, http.MethodPost, "/v1/courses", profToken, newCourse)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	bad := newCourse
	bad.TeacherID = hero.ID
	rec = env.do(t, http.MethodPost, "/v1/courses", adminToken, bad)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"teacher_id"}, fieldErrors(t, rec))

	rec = env.do(t, http.MethodPost, "/v1/courses", adminToken, course.NewCourse{Code: "CS 101!", Capacity: -1})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, []string{"code", "name", "capacity"}, fieldErrors(t, rec))

	rec = env.do(t, http.MethodPost, "/v1/courses", adminToken, newCourse)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	decode(t, rec, &c)
	assert.Equal(t, 2, c.AvailableSeats)

	rec = env.do(t, http.MethodPost, "/v1/courses", adminToken, newCourse)
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate code")

	base := "/v1/courses/" + c.ID

	t.Run("Enroll", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base+"/enroll", heroToken, EnrollRequest{StudentID: villain.ID})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodPost, base+"/enroll", adminToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"student_id"}, fieldErrors(t, rec))

		rec = env.do(t, http.MethodPost, base+"/enroll", adminToken, EnrollRequest{StudentID: prof.ID})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"student_id"}, fieldErrors(t, rec))

		rec = env.do(t, http.MethodPost, base+"/enroll", heroToken, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var e course.Enrollment
		decode(t, rec, &e)
		assert.Equal(t, hero.ID, e.StudentID)
		assert.Equal(t, capacity.StateActive, e.Status)

		rec = env.do(t, http.MethodPost, base+"/enroll", heroToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, "already enrolled")

		rec = env.do(t, http.MethodPost, base+"/enroll", adminToken, EnrollRequest{StudentID: villain.ID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodPost, base+"/enroll", sidekickToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, "course is full")

		rec = env.do(t, http.MethodGet, base, sidekickToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &c)
		assert.Equal(t, 2, c.Enrolled)
		assert.Equal(t, 0, c.AvailableSeats)
	})

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Unknown course", path: "/v1/courses/nope", token: heroToken, wantCode: http.StatusNotFound},
		{name: "Enrollments require staff", path: base + "/enrollments", token: heroToken, wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{
			name: "Students cannot mark attendance", method: http.MethodPost, path: base + "/attendance", token: heroToken,
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "Only the course teacher marks attendance", method: http.MethodPost, path: base + "/attendance", token: otherToken,
			body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "Courses with students cannot be deleted", method: http.MethodDelete, path: base, token: adminToken,
			wantCode: http.StatusConflict,
		},
		{name: "Bad date filter", path: base + "/attendance?from=yesterday", token: profToken, wantCode: http.StatusBadRequest},
		{
			name: "Students see their own attendance only", path: base + "/attendance?student_id=" + villain.ID, token: heroToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
	})

	t.Run("Enrollments", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, base+"/enrollments", profToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, ids(t, rec), 2)
	})

	t.Run("Attendance", func(t *testing.T) {
		day1 := time.Now().UTC().AddDate(0, 0, -2)
		day2 := time.Now().UTC().AddDate(0, 0, -1)
		mark := func(t *testing.T, token string, nm attendance.NewMarks) *httptest.ResponseRecorder {
			t.Helper()
			return env.do(t, http.MethodPost, base+"/attendance", token, nm)
		}

		rec := mark(t, profToken, attendance.NewMarks{Date: day1, Marks: []attendance.Mark{{StudentID: sidekick.ID, Status: attendance.StatusPresent}}})
		require.Equal(t, http.StatusBadRequest, rec.Code, "not enrolled")
		assert.Equal(t, []string{"marks"}, fieldErrors(t, rec))

		rec = mark(t, profToken, attendance.NewMarks{Date: time.Now().UTC().AddDate(0, 0, 2), Marks: []attendance.Mark{{StudentID: hero.ID, Status: attendance.StatusPresent}}})
		require.Equal(t, http.StatusBadRequest, rec.Code, "future date")
		assert.Equal(t, []string{"date"}, fieldErrors(t, rec))

		rec = mark(t, profToken, attendance.NewMarks{Date: day1, Marks: []attendance.Mark{
			{StudentID: hero.ID, Status: attendance.StatusAbsent},
			{StudentID: villain.ID, Status: attendance.StatusPresent},
		}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, ids(t, rec), 2)

		// marking the same day again overwrites
		rec = mark(t, profToken, attendance.NewMarks{Date: day1, Marks: []attendance.Mark{{StudentID: hero.ID, Status: "PRESENT"}}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = mark(t, adminToken, attendance.NewMarks{Date: day2, Marks: []attendance.Mark{
			{StudentID: hero.ID, Status: attendance.StatusLate},
			{StudentID: villain.ID, Status: attendance.StatusAbsent},
		}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodGet, base+"/attendance", heroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var records []attendance.Record
		decode(t, rec, &records)
		require.Len(t, records, 2)
		for _, r := range records {
			assert.Equal(t, hero.ID, r.StudentID)
		}

		rec = env.do(t, http.MethodGet, base+"/attendance?from="+day2.Format("2006-01-02"), profToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, ids(t, rec), 2)

		rec = env.do(t, http.MethodGet, base+"/attendance/summary", heroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s attendance.Summary
		decode(t, rec, &s)
		assert.Equal(t, 2, s.Total)
		assert.Equal(t, 2, s.Attended, "late counts as attended")
		assert.Equal(t, 1, s.Late)
		assert.True(t, s.Percentage.Equal(decimal.NewFromInt(100)), s.Percentage.String())

		rec = env.do(t, http.MethodGet, base+"/attendance/summary", profToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summaries []attendance.Summary
		decode(t, rec, &summaries)
		require.Len(t, summaries, 2)
		for _, s := range summaries {
			if s.StudentID == villain.ID {
				assert.Equal(t, 1, s.Absent)
				assert.True(t, s.Percentage.Equal(decimal.NewFromInt(50)), s.Percentage.String())
			}
		}

		rec = env.do(t, http.MethodGet, base+"/attendance/summary", sidekickToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &s)
		assert.Equal(t, 0, s.Total)
		assert.True(t, s.Percentage.IsZero())
	})

	t.Run("Drop", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base+"/drop", villainToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var e course.Enrollment
		decode(t, rec, &e)
		assert.Equal(t, capacity.StateVacated, e.Status)
		assert.NotNil(t, e.DroppedAt)

		rec = env.do(t, http.MethodPost, base+"/drop", villainToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = env.do(t, http.MethodPost, base+"/drop", sidekickToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "never enrolled")

		rec = env.do(t, http.MethodGet, base+"/enrollments?status=active", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, ids(t, rec), 1)
	})

	t.Run("Update", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, base, adminToken, map[string]interface{}{"teacher_id": villain.ID})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"teacher_id"}, fieldErrors(t, rec))

		rec = env.do(t, http.MethodPut, base, adminToken, map[string]interface{}{"capacity": 0})
		assert.Equal(t, http.StatusConflict, rec.Code, "below enrolled count")

		rec = env.do(t, http.MethodPut, base, adminToken, map[string]interface{}{"teacher_id": other.ID, "capacity": 5})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &c)
		assert.Equal(t, other.ID, c.TeacherID)
		assert.Equal(t, "Programming", c.Name)
		assert.Equal(t, 4, c.AvailableSeats)

		rec = env.do(t, http.MethodGet, "/v1/courses?teacher_id="+other.ID, heroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{c.ID}, ids(t, rec))
	})
}
