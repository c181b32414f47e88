package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

// AuthHandler exposes the login and account provisioning endpoints.
type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// StaffLogin authenticates a staff member by email and password.
//
// @Summary      Staff login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      staffLoginRequest  true  "Staff credentials"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) StaffLogin(c echo.Context) error {
	var req staffLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.authService.Authenticate(c.Request().Context(), req.Email, req.Password, ports.ModeStaff)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuthResponse(result))
}

// PatientLogin authenticates a patient by CPF and birthdate.
//
// @Summary      Patient login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      patientLoginRequest  true  "Patient credentials"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/patient/login [post]
func (h *AuthHandler) PatientLogin(c echo.Context) error {
	var req patientLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.authService.Authenticate(c.Request().Context(), req.CPF, req.Birthdate, ports.ModePatient)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuthResponse(result))
}

// Register provisions a new account. ADMIN only.
//
// @Summary      Register an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	account, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		LoginKey: req.LoginKey,
		Secret:   req.Secret,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{Account: toAccountResponse(account)})
}

func toAuthResponse(result *ports.AuthResult) authResponse {
	return authResponse{
		Token:   result.Token,
		Account: toAccountResponse(result.Account),
	}
}

func toAccountResponse(account *domain.Account) accountResponse {
	resp := accountResponse{
		ID:       account.ID,
		LoginKey: account.LoginKey,
		Role:     string(account.Role),
		Active:   account.Active,
	}
	if account.LastAccess != nil {
		resp.LastAccess = account.LastAccess.UTC().Format(time.RFC3339)
	}
	return resp
}
