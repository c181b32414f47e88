package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sgs-clinic/clinic-api/internal/api/middleware"
	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

// ctxViewer extracts the identity injected by the Auth middleware and
// fast-fails when the middleware did not run: a handler reached without a
// resolved identity is a wiring bug, rejected as unauthenticated rather
// than served.
func ctxViewer(c echo.Context) (ports.Viewer, error) {
	accountID, _ := c.Get(middleware.CtxAccountID).(string)
	raw, _ := c.Get(middleware.CtxRole).(string)
	role, ok := domain.ParseRole(raw)
	if accountID == "" || !ok {
		return ports.Viewer{}, domain.ErrUnauthenticated
	}
	return ports.Viewer{AccountID: accountID, Role: role}, nil
}

// ctxAccount returns the full resolved account, when present.
func ctxAccount(c echo.Context) (*domain.Account, error) {
	account, _ := c.Get(middleware.CtxAccount).(*domain.Account)
	if account == nil {
		return nil, domain.ErrUnauthenticated
	}
	return account, nil
}
