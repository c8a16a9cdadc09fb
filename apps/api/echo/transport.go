package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core/transport"
	"github.com/paridhisingla/unisync/core/user"
)

type transportApi struct {
	svc      *transport.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerTransportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *transport.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := transportApi{svc: svc, users: users, validate: validate}

	tg := g.Group("/transport", jwt)

	rg := tg.Group("/routes")
	rg.GET("", api.queryRoutes)
	rg.POST("", api.createRoute, adminMiddleware())
	rdg := rg.Group("/:id", objectMiddleware(api.loadRoute))
	rdg.GET("", api.retrieveRoute)
	rdg.PUT("", api.updateRoute, adminMiddleware())
	rdg.DELETE("", api.destroyRoute, adminMiddleware())

	sg := tg.Group("/subscriptions")
	sg.GET("", api.querySubscriptions)
	sg.POST("", api.subscribe)
	sdg := sg.Group("/:id", objectMiddleware(api.loadSubscription))
	sdg.GET("", api.retrieveSubscription)
	sdg.POST("/end", api.end)
	sdg.POST("/payments", api.recordPayment, adminMiddleware())
}

func (api *transportApi) loadRoute(ctx echo.Context, id string) (interface{}, error) {
	r, err := api.svc.GetRoute(ctx.Request().Context(), id)
	return r, errors.Wrap(err, "finding route")
}

func (api *transportApi) loadSubscription(ctx echo.Context, id string) (interface{}, error) {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.GetSubscription(ctx.Request().Context(), id)
	if err != nil {
		return nil, errors.Wrap(err, "finding route subscription")
	}
	if err = ownerOrAdmin(ctxUsr, s.StudentID); err != nil {
		return nil, err
	}
	return s, nil
}

// Routes

func (api *transportApi) createRoute(ctx echo.Context) error {
	var data transport.NewRoute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoute")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	r, err := api.svc.CreateRoute(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating route")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *transportApi) queryRoutes(ctx echo.Context) error {
	filter := new(transport.RouteFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to RouteFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	routes, err := api.svc.QueryRoutes(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying routes")
	}
	if routes == nil {
		routes = []transport.Route{}
	}
	return ctx.JSON(http.StatusOK, routes)
}

func (api *transportApi) retrieveRoute(ctx echo.Context) error {
	r, ok := ctx.Get(contextObjectKey).(transport.Route)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving route from context")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *transportApi) updateRoute(ctx echo.Context) error {
	r, ok := ctx.Get(contextObjectKey).(transport.Route)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving route from context")
	}
	var data transport.UpdateRoute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRoute")
	}
	if err := data.Validate(r, api.validate); err != nil {
		return err
	}
	r, err := api.svc.UpdateRoute(ctx.Request().Context(), r, data)
	if err != nil {
		return errors.Wrap(err, "updating route")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *transportApi) destroyRoute(ctx echo.Context) error {
	r, ok := ctx.Get(contextObjectKey).(transport.Route)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving route from context")
	}
	if err := api.svc.DeleteRoute(ctx.Request().Context(), r); err != nil {
		return errors.Wrap(err, "deleting route")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subscriptions

func (api *transportApi) subscribe(ctx echo.Context) error {
	var data transport.NewSubscription
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubscription")
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if data.StudentID, err = studentScope(ctxUsr, data.StudentID); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if _, err = api.users.GetByID(ctx.Request().Context(), data.StudentID); err != nil {
		return errors.Wrap(err, "finding student")
	}

	s, err := api.svc.Subscribe(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "subscribing to route")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *transportApi) querySubscriptions(ctx echo.Context) error {
	filter := new(transport.SubscriptionFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to SubscriptionFilter")
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

	subs, err := api.svc.QuerySubscriptions(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying route subscriptions")
	}
	if subs == nil {
		subs = []transport.Subscription{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *transportApi) retrieveSubscription(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(transport.Subscription)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving route subscription from context")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *transportApi) end(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(transport.Subscription)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving route subscription from context")
	}
	s, err := api.svc.End(ctx.Request().Context(), s)
	if err != nil {
		return errors.Wrap(err, "ending route subscription")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *transportApi) recordPayment(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(transport.Subscription)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving route subscription from context")
	}
	var data transport.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	s, err := api.svc.RecordPayment(ctx.Request().Context(), s.ID, data)
	if err != nil {
		return errors.Wrap(err, "recording transport payment")
	}
	return ctx.JSON(http.StatusOK, s)
}
