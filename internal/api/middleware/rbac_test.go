package middleware

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := testContext(t, "")
	c.Set(CtxRole, "MANAGER")

	handler := RequireRole(domain.RoleAdmin, domain.RoleManager)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := testContext(t, "")
	c.Set(CtxRole, "PATIENT")

	handler := RequireRole(domain.RoleAdmin, domain.RoleManager)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	err := handler(c)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	var fe *domain.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %T", err)
	}
	if fe.Actual != domain.RolePatient {
		t.Fatalf("expected caller role PATIENT, got %s", fe.Actual)
	}
	if len(fe.Required) != 2 {
		t.Fatalf("expected 2 required roles, got %v", fe.Required)
	}
}

func TestRequireRole_MissingIdentity(t *testing.T) {
	c, _ := testContext(t, "")

	handler := RequireRole(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireRole_UnknownRoleValue(t *testing.T) {
	c, _ := testContext(t, "")
	c.Set(CtxRole, "SUPERUSER")

	handler := RequireRole(domain.RoleAdmin)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
