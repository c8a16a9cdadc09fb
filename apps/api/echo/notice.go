package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/notice"
	"github.com/paridhisingla/unisync/core/user"
)

type noticeApi struct {
	svc      *notice.Service
	feed     *NoticeFeed
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerNoticeAPI(g *echo.Group, jwt, queryJWT echo.MiddlewareFunc, svc *notice.Service, feed *NoticeFeed, users user.ServiceInterface, validate *validator.Validate) {
	api := noticeApi{svc: svc, feed: feed, users: users, validate: validate}

	ng := g.Group("/notices")
	// websocket clients cannot set headers: the token comes in the query string
	ng.GET("/feed", api.subscribe, queryJWT)

	ag := ng.Group("", jwt)
	ag.GET("", api.list)
	ag.POST("", api.create, adminMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *noticeApi) create(ctx echo.Context) error {
	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "publishing notice")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noticeApi) list(ctx echo.Context) error {
	filter := new(notice.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notices, err := api.svc.List(ctx.Request().Context(), ctxUsr, filter)
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	if notices == nil {
		notices = []notice.Notice{}
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.GetByID(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding notice")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// subscribe upgrades to a websocket streaming the notices published from now on.
func (api *noticeApi) subscribe(ctx echo.Context) error {
	if api.feed == nil {
		return errHttpNotFound
	}
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsActive {
		return errAccountDeactivated
	}
	return api.feed.Serve(ctx.Response(), ctx.Request(), ctxUsr)
}
