package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/fee"
	"github.com/paridhisingla/unisync/core/user"
)

type feeApi struct {
	svc      *fee.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *fee.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := feeApi{svc: svc, users: users, validate: validate}

	fg := g.Group("/fees", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, adminMiddleware())

	dg := fg.Group("/:id", objectMiddleware(api.load))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/payments", api.payments)
	dg.POST("/payments", api.recordPayment, adminMiddleware())
}

func (api *feeApi) load(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	f, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding fee")
	}
	if err = ownerOrAdmin(ctxUsr, f.StudentID); err != nil {
		return nil, err
	}
	return f, nil
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := api.users.GetByID(ctx.Request().Context(), data.StudentID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("student_id", "student does not exist")
		}
		return errors.Wrap(err, "finding student")
	}

	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *feeApi) query(ctx echo.Context) error {
	filter := new(fee.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		filter.StudentID = ctxUsr.ID
	}

	fees, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []fee.Fee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	f, ok := ctx.Get(contextObjectKey).(fee.Fee)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee from context")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) update(ctx echo.Context) error {
	f, ok := ctx.Get(contextObjectKey).(fee.Fee)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee from context")
	}
	var data fee.UpdateFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFee")
	}
	f, err := api.svc.Update(ctx.Request().Context(), f.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) destroy(ctx echo.Context) error {
	f, ok := ctx.Get(contextObjectKey).(fee.Fee)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), f.ID); err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "deleting fee")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type PaymentResponse struct {
	Fee     fee.Fee     `json:"fee"`
	Payment fee.Payment `json:"payment"`
}

func (api *feeApi) recordPayment(ctx echo.Context) error {
	f, ok := ctx.Get(contextObjectKey).(fee.Fee)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee from context")
	}
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	f, p, err := api.svc.RecordPayment(ctx.Request().Context(), f.ID, data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "recording fee payment")
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Fee: f, Payment: p})
}

func (api *feeApi) payments(ctx echo.Context) error {
	f, ok := ctx.Get(contextObjectKey).(fee.Fee)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving fee from context")
	}
	payments, err := api.svc.Payments(ctx.Request().Context(), f.ID)
	if err != nil {
		return errors.Wrap(err, "querying fee payments")
	}
	if payments == nil {
		payments = []fee.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}
