package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/paridhisingla/unisync/apps/api/echo"
	"github.com/paridhisingla/unisync/core/fee"
)

func Test_feeApi(t *testing.T) {
	env := setup(t)
	admin := env.admin(t)
	hero := env.student(t, "hero")
	villain := env.student(t, "villain")
	adminToken, heroToken, villainToken := env.token(t, admin), env.token(t, hero), env.token(t, villain)

	newFee := func(studentID string, amount int64) fee.NewFee {
		return fee.NewFee{
			StudentID: studentID, Title: "Semester 1", Category: fee.CategoryTuition,
			AmountTotal: decimal.NewFromInt(amount), DueAt: time.Now().AddDate(0, 1, 0),
		}
	}

	rec := env.do(t, http.MethodPost, "/v1/fees", heroToken, newFee(hero.ID, 1000))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/fees", adminToken, newFee("nobody", 1000))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"student_id"}, fieldErrors(t, rec))

	rec = env.do(t, http.MethodPost, "/v1/fees", adminToken, fee.NewFee{StudentID: hero.ID, Category: "bribe"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"title", "category", "amount_total", "due_at"}, fieldErrors(t, rec))

	rec = env.do(t, http.MethodPost, "/v1/fees", adminToken, newFee(hero.ID, 1000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var heroFee fee.Fee
	decode(t, rec, &heroFee)
	assert.True(t, heroFee.Balance.Equal(decimal.NewFromInt(1000)))

	rec = env.do(t, http.MethodPost, "/v1/fees", adminToken, newFee(villain.ID, 200))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var villainFee fee.Fee
	decode(t, rec, &villainFee)

	runHTTPTests(t, env, []httpTest{
		{name: "Auth required", path: "/v1/fees", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "Others' fees are hidden", path: "/v1/fees/" + villainFee.ID, token: heroToken, wantCode: http.StatusNotFound, wantData: marshalObj(t, errNotFound)},
		{name: "Own fee", path: "/v1/fees/" + heroFee.ID, token: heroToken},
		{name: "Own payments", path: "/v1/fees/" + heroFee.ID + "/payments", token: heroToken, wantData: []byte(`[]`)},
		{
			name: "Update requires admin", method: http.MethodPut, path: "/v1/fees/" + heroFee.ID, token: heroToken,
			body: []byte(`{"amount_total":"1"}`), wantCode: http.StatusForbidden, wantData: marshalObj(t, errForbidden),
		},
	})

	t.Run("Query is scoped to the student", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/fees?student_id="+villain.ID, heroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{heroFee.ID}, ids(t, rec))

		rec = env.do(t, http.MethodGet, "/v1/fees", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.ElementsMatch(t, []string{heroFee.ID, villainFee.ID}, ids(t, rec))

		rec = env.do(t, http.MethodGet, "/v1/fees?student_id="+villain.ID, adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{villainFee.ID}, ids(t, rec))
	})

	t.Run("Payments", func(t *testing.T) {
		path := "/v1/fees/" + heroFee.ID + "/payments"

		rec := env.do(t, http.MethodPost, path, villainToken, fee.NewPayment{Amount: decimal.NewFromInt(10), Method: fee.MethodCash})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = env.do(t, http.MethodPost, path, adminToken, fee.NewPayment{Amount: decimal.NewFromInt(10), Method: "barter"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"method"}, fieldErrors(t, rec))

		rec = env.do(t, http.MethodPost, path, adminToken, fee.NewPayment{Amount: decimal.NewFromInt(1001), Method: fee.MethodCash})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"amount"}, fieldErrors(t, rec))

		rec = env.do(t, http.MethodPost, path, adminToken, fee.NewPayment{Amount: decimal.NewFromInt(400), Method: fee.MethodCard, Reference: "R1"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp PaymentResponse
		decode(t, rec, &resp)
		assert.True(t, resp.Fee.Balance.Equal(decimal.NewFromInt(600)))
		assert.Equal(t, admin.ID, resp.Payment.RecordedBy)
		assert.Nil(t, resp.Fee.PaidAt)

		rec = env.do(t, http.MethodPost, path, adminToken, fee.NewPayment{Amount: decimal.NewFromInt(600), Method: fee.MethodBank})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &resp)
		assert.True(t, resp.Fee.Balance.IsZero())
		assert.NotNil(t, resp.Fee.PaidAt)

		rec = env.do(t, http.MethodPost, path, adminToken, fee.NewPayment{Amount: decimal.NewFromInt(1), Method: fee.MethodCash})
		assert.Equal(t, http.StatusConflict, rec.Code, "settled")

		rec = env.do(t, http.MethodGet, path, heroToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, ids(t, rec), 2)

		rec = env.do(t, http.MethodGet, "/v1/fees?unpaid=true", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{villainFee.ID}, ids(t, rec))
	})

	t.Run("Update", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/v1/fees/"+heroFee.ID, adminToken, map[string]string{"amount_total": "500"})
		require.Equal(t, http.StatusBadRequest, rec.Code, "below the amount paid")

		rec = env.do(t, http.MethodPut, "/v1/fees/"+heroFee.ID, adminToken, map[string]string{"amount_total": "1200"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var f fee.Fee
		decode(t, rec, &f)
		assert.True(t, f.Balance.Equal(decimal.NewFromInt(200)))
		assert.Nil(t, f.PaidAt, "reopened")
		assert.Equal(t, "Semester 1", f.Title)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/v1/fees/"+villainFee.ID, adminToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, http.MethodGet, "/v1/fees/"+villainFee.ID, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
