package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/assurminut/crm-identity/internal/api/middleware"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	accounts    ports.AccountService
}

func NewAuthHandler(authService ports.AuthService, accounts ports.AccountService) *AuthHandler {
	return &AuthHandler{authService: authService, accounts: accounts}
}

// Login authenticates with a username or email and returns a JWT token.
// Every credential failure yields the same 401 body, including a login the
// account store could not answer; the auth service logs the real cause.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}

	token, account, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrBackingStoreUnavailable) {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: domain.ErrInvalidCredentials.Error()})
		}
		return err
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, authResponse{
		Token:     token,
		TokenType: "Bearer",
		Account:   toAccountResponse(account),
	})
}

// Logout revokes the bearer token used for this request.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	session := middleware.Session(c)
	if session == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	if err := h.authService.Logout(c.Request().Context(), principal, session.TokenID, session.ExpiresAt); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the stored account of the authenticated principal.
//
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	account, err := h.accounts.GetAccount(c.Request().Context(), principal, principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}
