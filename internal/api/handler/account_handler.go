package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AccountHandler exposes read access to the caller's own identity.
type AccountHandler struct{}

func NewAccountHandler() *AccountHandler {
	return &AccountHandler{}
}

// Me returns the authenticated account as resolved by the auth middleware.
//
// @Summary      Current account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/accounts/me [get]
func (h *AccountHandler) Me(c echo.Context) error {
	account, err := ctxAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}
