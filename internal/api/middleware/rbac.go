package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

// RequireRole gates a route to the given roles. The identity must already be
// resolved by Auth; requests without one are rejected as unauthenticated.
// Rejections carry both the allowed set and the caller's role for diagnostic
// display.
func RequireRole(allowed ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, _ := c.Get(CtxRole).(string)
			role, ok := domain.ParseRole(raw)
			if !ok {
				return domain.ErrUnauthenticated
			}
			if err := domain.RequireRole(role, allowed...); err != nil {
				return err
			}
			return next(c)
		}
	}
}
