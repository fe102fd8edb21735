package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/assurminut/crm-identity/internal/api/middleware"
	"github.com/assurminut/crm-identity/internal/core/domain"
)

// ctxPrincipal returns the principal injected by the Auth middleware. A
// missing principal or one without an ID means the route was mounted without
// the middleware; reject with 401 before any service call.
func ctxPrincipal(c echo.Context) (*domain.Account, error) {
	p := middleware.Principal(c)
	if p == nil || p.ID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return p, nil
}

// bindAndValidate decodes the request body into req and runs the validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}
