package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/ticket"
)

func Test_complaintApi(t *testing.T) {
	env := setup(t)
	admin := env.admin(t)
	hero := env.student(t, "hero")
	villain := env.student(t, "villain")
	adminToken, heroToken, villainToken := env.token(t, admin), env.token(t, hero), env.token(t, villain)

	create := func(t *testing.T, token string, nc complaint.NewComplaint) complaint.Complaint {
		t.Helper()
		rec := env.do(t, http.MethodPost, "/v1/complaints", token, nc)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var c complaint.Complaint
		decode(t, rec, &c)
		return c
	}

	c1 := create(t, heroToken, complaint.NewComplaint{
		Category: complaint.CategoryHostel, Subject: "Broken window", Description: "Room 12", Priority: "HIGH",
	})
	c2 := create(t, villainToken, complaint.NewComplaint{
		Category: complaint.CategoryInfrastructure, Subject: "No wifi", Description: "Library", Priority: "whenever",
	})

	t.Run("Create", func(t *testing.T) {
		assert.True(t, ticket.Valid(c1.TicketID), c1.TicketID)
		assert.NotEqual(t, c1.TicketID, c2.TicketID)
		assert.Equal(t, hero.ID, c1.ComplainantID)
		assert.Equal(t, complaint.StatusOpen, c1.Status)
		assert.Equal(t, complaint.PriorityHigh, c1.Priority)
		assert.Equal(t, complaint.PriorityMedium, c2.Priority)
		assert.True(t, c1.ExpectedResolutionAt.After(c1.CreatedAt))
	})

	t.Run("Validation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/complaints", heroToken, complaint.NewComplaint{Category: "weather"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.ElementsMatch(t, []string{"category", "subject", "description"}, fieldErrors(t, rec))
	})

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", path: "/v1/complaints", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Others' complaints are hidden", path: "/v1/complaints/" + c2.ID, token: heroToken, wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound)},
		{name: "Own complaint", path: "/v1/complaints/" + c1.ID, token: heroToken},
		{name: "Admin sees any complaint", path: "/v1/complaints/" + c2.ID, token: adminToken},
		{name: "Unknown complaint", path: "/v1/complaints/nope", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "Status update requires admin", method: http.MethodPatch, path: "/v1/complaints/" + c1.ID + "/status", token: heroToken,
			body: []byte(`{"status":"resolved"}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
		{
			name: "Invalid transition", method: http.MethodPatch, path: "/v1/complaints/" + c1.ID + "/status", token: adminToken,
			body: []byte(`{"status":"closed"}`), wantCode: http.StatusConflict,
		},
		{
			name: "Only the complainant edits", method: http.MethodPut, path: "/v1/complaints/" + c1.ID, token: adminToken,
			body: []byte(`{"subject":"Edited"}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
	})

	t.Run("Query is scoped to the complainant", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/complaints", heroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{c1.ID}, ids(t, rec))

		rec = env.do(t, http.MethodGet, "/v1/complaints?complainant_id="+villain.ID, heroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{c1.ID}, ids(t, rec))

		rec = env.do(t, http.MethodGet, "/v1/complaints", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.ElementsMatch(t, []string{c1.ID, c2.ID}, ids(t, rec))
	})

	t.Run("Lifecycle", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/v1/complaints/"+c1.ID, heroToken, map[string]string{"subject": "Broken window (2)"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var c complaint.Complaint
		decode(t, rec, &c)
		assert.Equal(t, "Broken window (2)", c.Subject)
		assert.Equal(t, c1.TicketID, c.TicketID)

		rec = env.do(t, http.MethodPatch, "/v1/complaints/"+c1.ID+"/status", adminToken, complaint.UpdateStatus{Status: complaint.StatusInProgress})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// edits are closed once work started
		rec = env.do(t, http.MethodPut, "/v1/complaints/"+c1.ID, heroToken, map[string]string{"subject": "Too late"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = env.do(t, http.MethodPatch, "/v1/complaints/"+c1.ID+"/status", adminToken, complaint.UpdateStatus{Status: complaint.StatusResolved, ResolutionNote: "Fixed"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &c)
		assert.Equal(t, complaint.StatusResolved, c.Status)
		assert.NotNil(t, c.ResolvedAt)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/v1/complaints/"+c2.ID, villainToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodDelete, "/v1/complaints/"+c2.ID, adminToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, "/v1/complaints/"+c2.ID, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
