package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/attendance"
	"github.com/paridhisingla/unisync/core/course"
	"github.com/paridhisingla/unisync/core/user"
)

type courseApi struct {
	svc        *course.Service
	attendance *attendance.Service
	users      user.ServiceInterface
	validate   *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service, attSvc *attendance.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := courseApi{svc: svc, attendance: attSvc, users: users, validate: validate}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())

	dg := cg.Group("/:id", objectMiddleware(api.load))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/enroll", api.enroll)
	dg.POST("/drop", api.drop)
	dg.GET("/enrollments", api.enrollments, staffMiddleware())

	dg.POST("/attendance", api.markAttendance, staffMiddleware())
	dg.GET("/attendance", api.queryAttendance)
	dg.GET("/attendance/summary", api.attendanceSummary)
}

func (api *courseApi) load(ctx echo.Context, id string) (interface{}, error) {
	c, err := api.svc.GetByID(ctx.Request().Context(), id)
	return c, errors.Wrap(err, "finding course")
}

func (api *courseApi) ctxCourse(ctx echo.Context) (course.Course, error) {
	c, ok := ctx.Get(contextObjectKey).(course.Course)
	if !ok {
		return c, errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
	}
	return c, nil
}

// manages reports whether usr runs the course: its teacher or an admin.
func manages(usr user.User, c course.Course) bool {
	return usr.IsAdmin() || (c.TeacherID != "" && c.TeacherID == usr.ID)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.checkTeacher(ctx, data.TeacherID); err != nil {
		return err
	}
	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) checkTeacher(ctx echo.Context, teacherID string) error {
	if teacherID == "" {
		return nil
	}
	usr, err := api.users.GetByID(ctx.Request().Context(), teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("teacher_id", "teacher does not exist")
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !usr.IsTeacher() {
		return core.NewFieldError("teacher_id", "user is not a teacher")
	}
	return nil
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(c, api.validate); err != nil {
		return err
	}
	if teacherID := core.CleanString(*data.TeacherID); teacherID != c.TeacherID {
		if err = api.checkTeacher(ctx, teacherID); err != nil {
			return err
		}
	}
	c, err = api.svc.Update(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), c); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollments

type EnrollRequest struct {
	StudentID string `json:"student_id"`
}

// enrollee returns the student named by the request, checking the context user may act on them.
func (api *courseApi) enrollee(ctx echo.Context) (string, error) {
	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return "", errors.Wrap(err, "binding to EnrollRequest")
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	studentID, err := studentScope(ctxUsr, core.CleanString(data.StudentID))
	if err != nil {
		return "", err
	}
	if studentID == "" {
		return "", core.NewFieldError("student_id", "student_id is required")
	}
	usr, err := api.users.GetByID(ctx.Request().Context(), studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return "", core.NewFieldError("student_id", "student does not exist")
		}
		return "", errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return "", core.NewFieldError("student_id", "user is not a student")
	}
	return studentID, nil
}

func (api *courseApi) enroll(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	studentID, err := api.enrollee(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), c, studentID)
	if err != nil {
		return errors.Wrap(err, "enrolling in course")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *courseApi) drop(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	studentID, err := api.enrollee(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Drop(ctx.Request().Context(), c, studentID)
	if err != nil {
		return errors.Wrap(err, "dropping course")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *courseApi) enrollments(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	filter := new(course.EnrollmentFilter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to EnrollmentFilter")
	}
	filter.Clean()
	filter.CourseID = c.ID

	enrollments, err := api.svc.Enrollments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []course.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

// Attendance

func (api *courseApi) markAttendance(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !manages(ctxUsr, c) {
		return errHttpForbidden
	}

	var data attendance.NewMarks
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMarks")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.attendance.Mark(ctx.Request().Context(), c.ID, ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

// attendanceFilter reads the attendance filter from the query string.
// Only the people running the course may look at other students' records.
func (api *courseApi) attendanceFilter(ctx echo.Context, c course.Course) (*attendance.QueryFilter, error) {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	filter := &attendance.QueryFilter{CourseID: c.ID, StudentID: core.CleanString(ctx.QueryParam("student_id"))}
	if filter.From, err = queryDate(ctx, "from"); err != nil {
		return nil, err
	}
	if filter.To, err = queryDate(ctx, "to"); err != nil {
		return nil, err
	}
	filter.Clean()

	if !manages(ctxUsr, c) {
		if filter.StudentID != "" && filter.StudentID != ctxUsr.ID {
			return nil, errHttpForbidden
		}
		filter.StudentID = ctxUsr.ID
	}
	return filter, nil
}

func (api *courseApi) queryAttendance(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	filter, err := api.attendanceFilter(ctx, c)
	if err != nil {
		return err
	}
	records, err := api.attendance.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

// attendanceSummary returns the summaries of every student for the people running the course,
// and the caller's own summary otherwise.
func (api *courseApi) attendanceSummary(ctx echo.Context) error {
	c, err := api.ctxCourse(ctx)
	if err != nil {
		return err
	}
	filter, err := api.attendanceFilter(ctx, c)
	if err != nil {
		return err
	}

	if filter.StudentID != "" {
		s, err := api.attendance.Summary(ctx.Request().Context(), c.ID, filter.StudentID)
		if err != nil {
			return errors.Wrap(err, "summarizing attendance")
		}
		return ctx.JSON(http.StatusOK, s)
	}

	summaries, err := api.attendance.CourseSummaries(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing course attendance")
	}
	if summaries == nil {
		summaries = []attendance.Summary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}
