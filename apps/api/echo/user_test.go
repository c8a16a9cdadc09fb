package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/paridhisingla/unisync/apps/api/echo"
	"github.com/paridhisingla/unisync/core/user"
	"github.com/paridhisingla/unisync/testutil"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	pwd := "Sup3rS3cret!"
	testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@campus.test", pwd, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@campus.test", pwd, []string{user.RoleStudent}, false)

	login := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	runHTTPTests(t, env, []httpTest{
		{name: "Unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("nobody", pwd), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"})},
		{name: "Wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("hero", "nope"), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"})},
		{name: "Inactive user", method: http.MethodPost, path: "/v1/users/login", body: login("ndog", pwd), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"})},
	})

	t.Run("Success (username or email)", func(t *testing.T) {
		for _, uname := range []string{"hero", "HERO@campus.test"} {
			rec := env.do(t, http.MethodPost, "/v1/users/login", "", LoginRequest{Username: uname, Password: pwd})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp LoginResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
		}
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)
	student := env.student(t, "hero")

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
	})

	rec := env.do(t, http.MethodGet, "/v1/users/me", env.token(t, student), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var usr user.User
	decode(t, rec, &usr)
	assert.Equal(t, student.ID, usr.ID)
	assert.Equal(t, "hero", usr.Username)
}

func Test_userApi_permissions(t *testing.T) {
	env := setup(t)
	admin := env.admin(t)
	student := env.student(t, "hero")
	other := env.student(t, "villain")
	studentToken := env.token(t, student)
	adminToken := env.token(t, admin)

	runHTTPTests(t, env, []httpTest{
		{name: "List requires admin", path: "/v1/users", token: studentToken, wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "Others are hidden", path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound)},
		{name: "Self is visible", path: "/v1/users/" + student.ID, token: studentToken},
		{name: "Admin sees others", path: "/v1/users/" + other.ID, token: adminToken},
		{name: "Admin cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "Student cannot delete", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "Student cannot change own roles", method: http.MethodPut, path: "/v1/users/" + student.ID, token: studentToken, body: []byte(`{"roles":["admin:"]}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
	})

	t.Run("Admin lists users", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/users", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.ElementsMatch(t, []string{admin.ID, student.ID, other.ID}, ids(t, rec))
	})

	t.Run("Admin deletes a student", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/v1/users/"+other.ID, adminToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, "/v1/users/"+other.ID, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)
	student := env.student(t, "hero")
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@campus.test", "", []string{user.RoleStudent}, false)

	claims := env.auth.UserClaims(student)
	claims.OrigIssuedAt -= int64(2 * env.conf.Server.JWTRefreshExpirationDelta.Seconds())
	expired, err := env.auth.GenerateToken(claims)
	require.NoError(t, err)

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Inactive user not allowed", method: http.MethodPost, path: "/v1/users/token-refresh", token: env.token(t, naughty), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: expired, wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", method: http.MethodPost, path: "/v1/users/token-refresh", token: env.token(t, student)},
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)
	env.student(t, "hero")

	for _, email := range []string{"hero@campus.test", "unknown@campus.test"} {
		rec := env.do(t, http.MethodPost, "/v1/users/password-reset", "", PasswordResetRequest{Email: email})
		assert.Equal(t, http.StatusOK, rec.Code, email)
	}
	rec := env.do(t, http.MethodPost, "/v1/users/password-reset", "", PasswordResetRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, fieldErrors(t, rec), "email")
}
