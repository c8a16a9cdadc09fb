package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core/hostel"
	"github.com/paridhisingla/unisync/core/user"
)

type hostelApi struct {
	svc      *hostel.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerHostelAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *hostel.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := hostelApi{svc: svc, users: users, validate: validate}

	hg := g.Group("/hostels", jwt)
	hg.GET("", api.queryHostels)
	hg.POST("", api.createHostel, adminMiddleware())
	hdg := hg.Group("/:id", objectMiddleware(api.loadHostel))
	hdg.GET("", api.retrieveHostel)
	hdg.PUT("", api.updateHostel, adminMiddleware())
	hdg.DELETE("", api.destroyHostel, adminMiddleware())

	ag := g.Group("/hostel-allocations", jwt)
	ag.GET("", api.queryAllocations)
	ag.POST("", api.allocate, adminMiddleware())
	ag.POST("/request", api.request)
	adg := ag.Group("/:id", objectMiddleware(api.loadAllocation))
	adg.GET("", api.retrieveAllocation)
	adg.POST("/activate", api.activate, adminMiddleware())
	adg.POST("/vacate", api.vacate, adminMiddleware())
	adg.POST("/cancel", api.cancel)
	adg.POST("/payments", api.recordPayment, adminMiddleware())
}

func (api *hostelApi) loadHostel(ctx echo.Context, id string) (interface{}, error) {
	h, err := api.svc.GetHostel(ctx.Request().Context(), id)
	return h, errors.Wrap(err, "finding hostel")
}

func (api *hostelApi) loadAllocation(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.GetAllocation(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding hostel allocation")
	}
	if err = ownerOrAdmin(ctxUsr, a.StudentID); err != nil {
		return nil, err
	}
	return a, nil
}

// Hostels

func (api *hostelApi) createHostel(ctx echo.Context) error {
	var data hostel.NewHostel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHostel")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	h, err := api.svc.CreateHostel(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating hostel")
	}
	return ctx.JSON(http.StatusCreated, h)
}

func (api *hostelApi) queryHostels(ctx echo.Context) error {
	filter := new(hostel.HostelFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to HostelFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	hostels, err := api.svc.QueryHostels(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying hostels")
	}
	if hostels == nil {
		hostels = []hostel.Hostel{}
	}
	return ctx.JSON(http.StatusOK, hostels)
}

func (api *hostelApi) retrieveHostel(ctx echo.Context) error {
	h, ok := ctx.Get(contextObjectKey).(hostel.Hostel)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving hostel from context")
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *hostelApi) updateHostel(ctx echo.Context) error {
	h, ok := ctx.Get(contextObjectKey).(hostel.Hostel)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving hostel from context")
	}
	var data hostel.UpdateHostel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateHostel")
	}
	if err := data.Validate(h, api.validate); err != nil {
		return err
	}
	h, err := api.svc.UpdateHostel(ctx.Request().Context(), h, data)
	if err != nil {
		return errors.Wrap(err, "updating hostel")
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *hostelApi) destroyHostel(ctx echo.Context) error {
	h, ok := ctx.Get(contextObjectKey).(hostel.Hostel)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving hostel from context")
	}
	if err := api.svc.DeleteHostel(ctx.Request().Context(), h); err != nil {
		return errors.Wrap(err, "deleting hostel")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Allocations

func (api *hostelApi) bindAllocation(ctx echo.Context) (hostel.NewAllocation, error) {
	var data hostel.NewAllocation
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewAllocation")
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return data, errors.Wrap(err, "getting context user")
	}
	if data.StudentID, err = studentScope(ctxUsr, data.StudentID); err != nil {
		return data, err
	}
	if err = data.Validate(api.validate); err != nil {
		return data, err
	}
	if _, err = api.users.GetByID(ctx.Request().Context(), data.StudentID); err != nil {
		return data, errors.Wrap(err, "finding student")
	}
	return data, nil
}

// request files a pending allocation: no bed is taken until an admin activates it.
func (api *hostelApi) request(ctx echo.Context) error {
	data, err := api.bindAllocation(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Request(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "requesting hostel allocation")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *hostelApi) allocate(ctx echo.Context) error {
	data, err := api.bindAllocation(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Allocate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "allocating hostel bed")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *hostelApi) queryAllocations(ctx echo.Context) error {
	filter := new(hostel.AllocationFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to AllocationFilter")
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

	allocs, err := api.svc.QueryAllocations(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying hostel allocations")
	}
	if allocs == nil {
		allocs = []hostel.Allocation{}
	}
	return ctx.JSON(http.StatusOK, allocs)
}

func (api *hostelApi) retrieveAllocation(ctx echo.Context) error {
	a, ok := ctx.Get(contextObjectKey).(hostel.Allocation)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving hostel allocation from context")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *hostelApi) activate(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Activate, "activating")
}

func (api *hostelApi) vacate(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Vacate, "vacating")
}

func (api *hostelApi) cancel(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Cancel, "cancelling")
}

func (api *hostelApi) transition(ctx echo.Context, move func(context.Context, hostel.Allocation) (hostel.Allocation, error), action string) error {
	a, ok := ctx.Get(contextObjectKey).(hostel.Allocation)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving hostel allocation from context")
	}
	a, err := move(ctx.Request().Context(), a)
	if err != nil {
		return errors.Wrapf(err, "%s hostel allocation", action)
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *hostelApi) recordPayment(ctx echo.Context) error {
	a, ok := ctx.Get(contextObjectKey).(hostel.Allocation)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving hostel allocation from context")
	}
	var data hostel.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	a, err := api.svc.RecordPayment(ctx.Request().Context(), a.ID, data)
	if err != nil {
		return errors.Wrap(err, "recording hostel payment")
	}
	return ctx.JSON(http.StatusOK, a)
}
