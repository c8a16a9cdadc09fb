package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/user"
)

type complaintApi struct {
	svc      *complaint.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerComplaintAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *complaint.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := complaintApi{svc: svc, users: users, validate: validate}

	cg := g.Group("/complaints", jwt)
	cg.POST("", api.create)
	cg.GET("", api.query)

	dg := cg.Group("/:id", objectMiddleware(api.load))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PATCH("/status", api.updateStatus, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

// load finds a complaint visible to the context user: admins see all complaints, others their own.
func (api *complaintApi) load(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding complaint")
	}
	if err = ownerOrAdmin(ctxUsr, c.ComplainantID); err != nil {
		return nil, err
	}
	return c, nil
}

func (api *complaintApi) create(ctx echo.Context) error {
	var data complaint.NewComplaint
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComplaint")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating complaint")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *complaintApi) query(ctx echo.Context) error {
	filter := new(complaint.QueryFilter)
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
		filter.ComplainantID = ctxUsr.ID
	}

	complaints, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying complaints")
	}
	if complaints == nil {
		complaints = []complaint.Complaint{}
	}
	return ctx.JSON(http.StatusOK, complaints)
}

func (api *complaintApi) retrieve(ctx echo.Context) error {
	c, ok := ctx.Get(contextObjectKey).(complaint.Complaint)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving complaint from context")
	}
	return ctx.JSON(http.StatusOK, c)
}

// update lets the complainant edit a complaint until someone starts working on it.
func (api *complaintApi) update(ctx echo.Context) error {
	c, ok := ctx.Get(contextObjectKey).(complaint.Complaint)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving complaint from context")
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if c.ComplainantID != ctxUsr.ID {
		return errHttpForbidden
	}

	var data complaint.UpdateComplaint
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateComplaint")
	}
	if err = data.Validate(c, api.validate); err != nil {
		return err
	}

	c, err = api.svc.Update(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating complaint")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *complaintApi) updateStatus(ctx echo.Context) error {
	c, ok := ctx.Get(contextObjectKey).(complaint.Complaint)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving complaint from context")
	}

	var data complaint.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.UpdateStatus(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating complaint status")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *complaintApi) destroy(ctx echo.Context) error {
	c, ok := ctx.Get(contextObjectKey).(complaint.Complaint)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving complaint from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), c.ID); err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "deleting complaint")
	}
	return ctx.NoContent(http.StatusNoContent)
}
