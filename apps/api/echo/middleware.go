package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/paridhisingla/unisync/core/user"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware lets admins and teachers through.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || claims.IsTeacher {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// objectMiddleware loads the object identified by the `id` path param and stores it in the context.
// load returns errHttpNotFound when the context user may not see the object.
func objectMiddleware(load func(ctx echo.Context, id string) (interface{}, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := load(ctx, ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

// securityHeaders sets the headers every API response carries.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}

// studentScope returns the student an operation applies to.
// Admins act on behalf of any student and must name one; other users can only act on themselves.
func studentScope(ctxUsr user.User, requested string) (string, error) {
	if ctxUsr.IsAdmin() {
		return requested, nil
	}
	if requested == "" || requested == ctxUsr.ID {
		return ctxUsr.ID, nil
	}
	return "", errHttpForbidden
}

// ownerOrAdmin hides objects owned by someone else from non-admin users.
func ownerOrAdmin(ctxUsr user.User, ownerID string) error {
	if ctxUsr.IsAdmin() || ctxUsr.ID == ownerID {
		return nil
	}
	return errHttpNotFound
}
