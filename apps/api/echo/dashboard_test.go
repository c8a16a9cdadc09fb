package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/dashboard"
)

func Test_dashboardApi(t *testing.T) {
	env := setup(t)
	admin := env.admin(t)
	prof := env.teacher(t, "prof")
	hero := env.student(t, "hero")
	env.student(t, "villain")
	adminToken, heroToken := env.token(t, admin), env.token(t, hero)

	rec := env.do(t, http.MethodPost, "/v1/complaints", heroToken, complaint.NewComplaint{
		Category: complaint.CategoryAcademic, Subject: "Marks", Description: "Missing grade",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", path: "/v1/dashboard", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Students are denied", path: "/v1/dashboard", token: heroToken, wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
		{name: "Teachers are denied", path: "/v1/dashboard", token: env.token(t, prof), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden)},
	})

	rec = env.do(t, http.MethodGet, "/v1/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats dashboard.Stats
	decode(t, rec, &stats)
	assert.Equal(t, int64(2), stats.Students)
	assert.Equal(t, int64(1), stats.Teachers)
	assert.Equal(t, int64(1), stats.OpenComplaints)
	assert.Equal(t, int64(0), stats.OverdueIssues)
	assert.True(t, stats.OutstandingFeeBalance.IsZero())
}
