package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/assurminut/crm-identity/internal/core/policy"
)

// RBAC rejects principals whose token role can never perform action. It is a
// fast path only; the account service runs policy.Authorize against the
// stored actor and the loaded target.
func RBAC(action policy.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := Principal(c)
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if err := policy.Permits(action, p.Role); err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "access forbidden")
			}
			return next(c)
		}
	}
}
