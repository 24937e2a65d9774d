package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/edusys/core/user"
)

// loadUserMiddleware resolves the token subject to an active user, available through getContextUser.
func loadUserMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextUser(ctx, svc); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// ctxUser is the user loaded by loadUserMiddleware.
func ctxUser(ctx echo.Context) user.User {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	return usr
}
