package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/policy"
)

func TestRBAC_ByAction(t *testing.T) {
	cases := []struct {
		action policy.Action
		role   domain.Role
		want   int
	}{
		{policy.ActionCreate, domain.RoleSupervisor, http.StatusOK},
		{policy.ActionCreate, domain.RoleAgent, http.StatusForbidden},
		{policy.ActionDelete, domain.RoleAdmin, http.StatusOK},
		{policy.ActionDelete, domain.RoleAgent, http.StatusForbidden},
		{policy.ActionViewStats, domain.RoleAdmin, http.StatusOK},
		{policy.ActionViewStats, domain.RoleSupervisor, http.StatusForbidden},
		{policy.ActionView, domain.RoleAgent, http.StatusOK},
		{policy.ActionUpdate, domain.RoleAgent, http.StatusOK},
		{policy.ActionResetPassword, domain.RoleAgent, http.StatusOK},
		{policy.ActionView, domain.Role(0), http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.action.String()+"/"+tc.role.String(), func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			SetPrincipal(c, &domain.Account{ID: "1", Role: tc.role})

			handler := RBAC(tc.action)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			if err := handler(c); err != nil {
				e.HTTPErrorHandler(err, c)
			}
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRBAC_WithoutPrincipal(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RBAC(policy.ActionView)(func(c echo.Context) error {
		t.Fatalf("should not reach next handler")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
