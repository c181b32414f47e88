package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. The
// optional fields surface the diagnostic detail carried by typed domain
// errors: lockout wait time, attempts left, role sets, allowed transitions.
type errorResponse struct {
	Error             string   `json:"error"`
	AttemptsRemaining *int     `json:"attempts_remaining,omitempty"`
	LockedUntil       string   `json:"locked_until,omitempty"`
	RetryAfterMinutes int      `json:"retry_after_minutes,omitempty"`
	RequiredRoles     []string `json:"required_roles,omitempty"`
	CallerRole        string   `json:"caller_role,omitempty"`
	AllowedStatuses   []string `json:"allowed_statuses,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to deterministic HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", ...detail}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	// Typed domain errors carrying diagnostic detail.
	var credErr *domain.CredentialsError
	if errors.As(err, &credErr) {
		// fixed message regardless of whether the key or the secret was
		// wrong, so responses do not reveal account existence
		n := credErr.AttemptsRemaining
		return http.StatusUnauthorized, errorResponse{
			Error:             "invalid credentials",
			AttemptsRemaining: &n,
		}
	}
	var lockErr *domain.LockedError
	if errors.As(err, &lockErr) {
		return http.StatusTooManyRequests, errorResponse{
			Error:             lockErr.Error(),
			LockedUntil:       lockErr.Until.UTC().Format(time.RFC3339),
			RetryAfterMinutes: lockErr.RemainingMinutes(time.Now()),
		}
	}
	var forbErr *domain.ForbiddenError
	if errors.As(err, &forbErr) {
		required := make([]string, 0, len(forbErr.Required))
		for _, r := range forbErr.Required {
			required = append(required, string(r))
		}
		return http.StatusForbidden, errorResponse{
			Error:         "access forbidden",
			RequiredRoles: required,
			CallerRole:    string(forbErr.Actual),
		}
	}
	var transErr *domain.TransitionError
	if errors.As(err, &transErr) {
		allowed := make([]string, 0, len(transErr.Allowed))
		for _, s := range transErr.Allowed {
			allowed = append(allowed, string(s))
		}
		return http.StatusUnprocessableEntity, errorResponse{
			Error:           transErr.Error(),
			AllowedStatuses: allowed,
		}
	}

	// Sentinel domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "invalid credentials"}
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusForbidden, errorResponse{Error: "account is deactivated"}
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Error: "authentication required"}
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, errorResponse{Error: "token expired, please log in again"}
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, errorResponse{Error: "invalid token"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "access forbidden"}
	case errors.Is(err, domain.ErrSlotUnavailable):
		return http.StatusConflict, errorResponse{Error: "slot unavailable"}
	case errors.Is(err, domain.ErrReasonRequired):
		return http.StatusUnprocessableEntity, errorResponse{Error: "cancellation reason required"}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, errorResponse{Error: "account not found"}
	case errors.Is(err, domain.ErrAppointmentNotFound):
		return http.StatusNotFound, errorResponse{Error: "appointment not found"}
	case errors.Is(err, domain.ErrAccountExists):
		return http.StatusConflict, errorResponse{Error: "account already exists"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
