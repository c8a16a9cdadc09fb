package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core/dashboard"
)

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *dashboard.Service) {
	g.GET("/dashboard", func(ctx echo.Context) error {
		stats, err := svc.Stats(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "computing dashboard stats")
		}
		return ctx.JSON(http.StatusOK, stats)
	}, jwt, adminMiddleware())
}
