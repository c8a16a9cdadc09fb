package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/paridhisingla/unisync/apps/api/echo"
	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/attendance"
	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/course"
	"github.com/paridhisingla/unisync/core/dashboard"
	"github.com/paridhisingla/unisync/core/fee"
	"github.com/paridhisingla/unisync/core/hostel"
	"github.com/paridhisingla/unisync/core/library"
	"github.com/paridhisingla/unisync/core/notice"
	"github.com/paridhisingla/unisync/core/ticket"
	"github.com/paridhisingla/unisync/core/transport"
	"github.com/paridhisingla/unisync/core/user"
	appfs "github.com/paridhisingla/unisync/fs"
	emailsvc "github.com/paridhisingla/unisync/services/email"
	"github.com/paridhisingla/unisync/storage/database/sqlxrepos"
	"github.com/paridhisingla/unisync/testutil"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}

	templatesOnce sync.Once
)

type testEnv struct {
	conf    *core.Config
	db      *sqlx.DB
	app     *Server
	auth    *Auth
	feed    *NoticeFeed
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleService

	libSvc     *library.Service
	hostelSvc  *hostel.Service
	courseSvc  *course.Service
	noticeSvc  *notice.Service
	complaints *complaint.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	templatesOnce.Do(func() {
		_ = core.ParseEmailTemplates(appfs.FS, false, logger)
	})

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db := testutil.OpenDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(conf, usrRepo, mailSvc)
	complaintSvc := complaint.NewService(
		sqlxrepos.NewComplaintRepository(db),
		ticket.NewGenerator(sqlxrepos.NewSequenceRepository(db)),
		usrSvc, mailSvc, logger,
	)
	libSvc, err := library.NewService(db, sqlxrepos.NewLibraryRepository(db), conf)
	require.NoError(t, err)
	hostelSvc, err := hostel.NewService(db, sqlxrepos.NewHostelRepository(db), conf)
	require.NoError(t, err)
	transportSvc, err := transport.NewService(db, sqlxrepos.NewTransportRepository(db), conf)
	require.NoError(t, err)
	feeSvc, err := fee.NewService(db, sqlxrepos.NewFeeRepository(db), conf)
	require.NoError(t, err)
	courseSvc := course.NewService(db, sqlxrepos.NewCourseRepository(db))
	attendanceSvc := attendance.NewService(db, sqlxrepos.NewAttendanceRepository(db), courseSvc)
	feed := NewNoticeFeed(logger, nil)
	noticeSvc := notice.NewService(sqlxrepos.NewNoticeRepository(db), usrSvc, mailSvc, feed, logger)
	dashboardSvc := dashboard.NewService(sqlxrepos.NewDashboardRepository(db), libSvc)

	// set up server
	app := NewServer(conf, logger, &Deps{
		Validate:      validate,
		Translator:    translator,
		UserSvc:       usrSvc,
		ComplaintSvc:  complaintSvc,
		LibrarySvc:    libSvc,
		HostelSvc:     hostelSvc,
		TransportSvc:  transportSvc,
		FeeSvc:        feeSvc,
		CourseSvc:     courseSvc,
		AttendanceSvc: attendanceSvc,
		NoticeSvc:     noticeSvc,
		DashboardSvc:  dashboardSvc,
		Feed:          feed,
	})
	t.Cleanup(func() { _ = app.Close() })

	return &testEnv{
		conf:       conf,
		db:         db,
		app:        app,
		auth:       NewAuth(conf),
		feed:       feed,
		usrRepo:    usrRepo,
		mailSvc:    mailSvc,
		libSvc:     libSvc,
		hostelSvc:  hostelSvc,
		courseSvc:  courseSvc,
		noticeSvc:  noticeSvc,
		complaints: complaintSvc,
	}
}

func (env *testEnv) admin(t *testing.T) user.User {
	return testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@campus.test", "", []string{user.RoleAdmin}, true)
}

func (env *testEnv) teacher(t *testing.T, uname string) user.User {
	return testutil.CreateUser(t, env.usrRepo, uname, uname, uname+"@campus.test", "", []string{user.RoleTeacher}, true)
}

func (env *testEnv) student(t *testing.T, uname string) user.User {
	return testutil.CreateStudent(t, env.usrRepo, uname)
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.auth.GenerateToken(env.auth.UserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do sends a JSON request to the app and returns the recorded response.
func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marshalObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	if b, ok := obj.([]byte); ok {
		return b
	}
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// ids returns the ids of the JSON list in rec.
func ids(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var objs []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &objs)
	res := make([]string, 0, len(objs))
	for _, o := range objs {
		res = append(res, o.ID)
	}
	return res
}

// fieldErrors returns the field names of a validation error response.
func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var errs map[string]interface{}
	decode(t, rec, &errs)
	flds := make([]string, 0, len(errs))
	for f := range errs {
		flds = append(flds, f)
	}
	return flds
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
