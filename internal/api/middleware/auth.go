package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

// Context keys populated by the auth middleware.
const (
	CtxAccount   = "account"
	CtxAccountID = "account_id"
	CtxRole      = "role"
	CtxLoginKey  = "login_key"
)

// TokenAuthorizer resolves a bearer token to the live account it asserts.
type TokenAuthorizer interface {
	Authorize(ctx context.Context, tokenString string) (*domain.Account, error)
}

// Auth validates the bearer token and injects the resolved identity into the
// request context. Rejections flow to the central error handler as typed
// domain errors, so expired tokens, malformed tokens, and deactivated
// accounts each surface distinctly.
func Auth(authorizer TokenAuthorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return err
			}

			account, err := authorizer.Authorize(c.Request().Context(), token)
			if err != nil {
				return err
			}

			setIdentity(c, account)
			return next(c)
		}
	}
}

// OptionalAuth resolves the identity when a valid token is present and lets
// the request proceed unauthenticated otherwise. It must never surface an
// error for absent or invalid auth.
func OptionalAuth(authorizer TokenAuthorizer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return next(c)
			}
			account, err := authorizer.Authorize(c.Request().Context(), token)
			if err != nil {
				return next(c)
			}
			setIdentity(c, account)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", domain.ErrUnauthenticated
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", domain.ErrInvalidToken
	}
	return parts[1], nil
}

func setIdentity(c echo.Context, account *domain.Account) {
	c.Set(CtxAccount, account)
	c.Set(CtxAccountID, account.ID)
	c.Set(CtxRole, string(account.Role))
	c.Set(CtxLoginKey, account.LoginKey)
}
