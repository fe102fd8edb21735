package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/assurminut/crm-identity/internal/auth"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

const (
	// principalKey is the echo context key holding the authenticated account.
	principalKey = "principal"
	sessionKey   = "session"
)

// Auth validates the bearer token and injects the principal into context.
// Tokens revoked by logout are rejected; revocations may be nil.
func Auth(jwtSecret string, revocations ports.TokenRevoker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			session, err := auth.Parse(jwtSecret, strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			if revocations != nil {
				revoked, err := revocations.Revoked(c.Request().Context(), session.TokenID)
				if err != nil {
					return domain.Unavailable("check token revocation", err)
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
			}

			SetSession(c, session)
			return next(c)
		}
	}
}

// SetPrincipal attaches the authenticated account to c.
func SetPrincipal(c echo.Context, principal *domain.Account) {
	c.Set(principalKey, principal)
}

// Principal returns the account the Auth middleware attached, or nil.
func Principal(c echo.Context) *domain.Account {
	p, _ := c.Get(principalKey).(*domain.Account)
	return p
}

// SetSession attaches a verified token to c, principal included.
func SetSession(c echo.Context, session *auth.Session) {
	SetPrincipal(c, session.Principal)
	c.Set(sessionKey, session)
}

// Session returns the verified token the Auth middleware attached, or nil.
func Session(c echo.Context) *auth.Session {
	s, _ := c.Get(sessionKey).(*auth.Session)
	return s
}
