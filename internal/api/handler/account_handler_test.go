package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/policy"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

func TestAccountHandler_Create_Success(t *testing.T) {
	svc := &stubAccountService{
		createFn: func(ctx context.Context, actor *domain.Account, input ports.CreateAccountInput) (*domain.Account, error) {
			if actor != supervisorPrincipal {
				t.Fatalf("expected the principal as actor, got %+v", actor)
			}
			if input.Role != domain.RoleAgent || input.GivenName != "Marie" || input.Password != "marie123" {
				t.Fatalf("unexpected input: %+v", input)
			}
			return &domain.Account{ID: "acc-9", Username: input.Username, Email: input.Email, PasswordHash: "digest", Role: input.Role, Active: true}, nil
		},
	}
	handler := NewAccountHandler(svc)

	body := `{"username":"marie","email":"marie@crm.com","password":"marie123","given_name":"Marie","family_name":"Durand","role":"agent"}`
	c, rec := newContext(http.MethodPost, "/v1/accounts", strings.NewReader(body), supervisorPrincipal)
	if err := handler.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "digest") {
		t.Fatalf("response leaked the digest: %s", rec.Body.String())
	}
	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "acc-9" || resp.Role != "agent" || !resp.Active {
		t.Fatalf("unexpected account payload: %+v", resp)
	}
}

func TestAccountHandler_Create_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing fields": `{"username":"marie"}`,
		"bad email":      `{"username":"marie","email":"nope","password":"x","given_name":"M","family_name":"D","role":"agent"}`,
		"unknown role":   `{"username":"marie","email":"marie@crm.com","password":"x","given_name":"M","family_name":"D","role":"root"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewAccountHandler(&stubAccountService{
				createFn: func(ctx context.Context, actor *domain.Account, input ports.CreateAccountInput) (*domain.Account, error) {
					t.Fatalf("service must not be called")
					return nil, nil
				},
			})
			c, _ := newContext(http.MethodPost, "/v1/accounts", strings.NewReader(body), adminPrincipal)
			if err := handler.Create(c); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAccountHandler_Create_ValidationMessageUsesJSONNames(t *testing.T) {
	handler := NewAccountHandler(&stubAccountService{})
	c, _ := newContext(http.MethodPost, "/v1/accounts", strings.NewReader(`{"username":"marie"}`), adminPrincipal)

	err := handler.Create(c)
	if err == nil || !strings.Contains(err.Error(), "given_name is required") {
		t.Fatalf("expected a message naming given_name, got %v", err)
	}
}

func TestAccountHandler_Create_PolicyErrorsPassThrough(t *testing.T) {
	handler := NewAccountHandler(&stubAccountService{
		createFn: func(ctx context.Context, actor *domain.Account, input ports.CreateAccountInput) (*domain.Account, error) {
			return nil, policy.ErrSupervisorLimitReached
		},
	})
	body := `{"username":"sup5","email":"sup5@crm.com","password":"x","given_name":"S","family_name":"Five","role":"superviseur"}`
	c, _ := newContext(http.MethodPost, "/v1/accounts", strings.NewReader(body), adminPrincipal)

	if err := handler.Create(c); !errors.Is(err, domain.ErrCardinalityExceeded) {
		t.Fatalf("expected ErrCardinalityExceeded, got %v", err)
	}
}

func TestAccountHandler_Update_Partial(t *testing.T) {
	svc := &stubAccountService{
		updateFn: func(ctx context.Context, actor *domain.Account, id string, changes domain.AccountChanges) (*domain.Account, error) {
			if id != "acc-agent" {
				t.Fatalf("unexpected id %q", id)
			}
			if changes.Email == nil || *changes.Email != "new@x.com" {
				t.Fatalf("email change not forwarded: %+v", changes)
			}
			if changes.Role != nil || changes.Username != nil || changes.Password != nil || changes.Active != nil {
				t.Fatalf("absent fields must stay nil: %+v", changes)
			}
			return &domain.Account{ID: id, Username: "agent1", Email: *changes.Email, Role: domain.RoleAgent, Active: true}, nil
		},
	}
	handler := NewAccountHandler(svc)

	c, rec := newContext(http.MethodPatch, "/v1/accounts/acc-agent", strings.NewReader(`{"email":"new@x.com"}`), agentPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("acc-agent")
	if err := handler.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAccountHandler_Update_RoleAndActive(t *testing.T) {
	svc := &stubAccountService{
		updateFn: func(ctx context.Context, actor *domain.Account, id string, changes domain.AccountChanges) (*domain.Account, error) {
			if changes.Role == nil || *changes.Role != domain.RoleSupervisor {
				t.Fatalf("role not parsed: %+v", changes.Role)
			}
			if changes.Active == nil || *changes.Active {
				t.Fatalf("active=false not forwarded")
			}
			return &domain.Account{ID: id, Role: *changes.Role}, nil
		},
	}
	handler := NewAccountHandler(svc)

	c, _ := newContext(http.MethodPatch, "/v1/accounts/acc-2", strings.NewReader(`{"role":"supervisor","active":false}`), adminPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("acc-2")
	if err := handler.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestAccountHandler_Update_Invalid(t *testing.T) {
	handler := NewAccountHandler(&stubAccountService{})

	for _, body := range []string{`{"role":"root"}`, `{"email":"nope"}`, `{"password":""}`} {
		c, _ := newContext(http.MethodPatch, "/v1/accounts/acc-2", strings.NewReader(body), adminPrincipal)
		c.SetParamNames("id")
		c.SetParamValues("acc-2")
		if err := handler.Update(c); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", body, err)
		}
	}
}

func TestAccountHandler_List(t *testing.T) {
	svc := &stubAccountService{
		listFn: func(ctx context.Context, actor *domain.Account) ([]*domain.Account, error) {
			return []*domain.Account{
				{ID: "a", Username: "agent1", Role: domain.RoleAgent},
				{ID: "b", Username: "agent2", Role: domain.RoleAgent},
			}, nil
		},
	}
	handler := NewAccountHandler(svc)

	c, rec := newContext(http.MethodGet, "/v1/accounts", nil, supervisorPrincipal)
	if err := handler.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp listAccountsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 || resp.Data[1].Username != "agent2" {
		t.Fatalf("unexpected list: %+v", resp)
	}
}

func TestAccountHandler_List_Empty(t *testing.T) {
	handler := NewAccountHandler(&stubAccountService{
		listFn: func(ctx context.Context, actor *domain.Account) ([]*domain.Account, error) {
			return nil, nil
		},
	})

	c, rec := newContext(http.MethodGet, "/v1/accounts", nil, agentPrincipal)
	if err := handler.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("expected an empty array, got %s", rec.Body.String())
	}
}

func TestAccountHandler_Delete(t *testing.T) {
	deleted := ""
	handler := NewAccountHandler(&stubAccountService{
		deleteFn: func(ctx context.Context, actor *domain.Account, id string) error {
			if id == "acc-sup-2" {
				return policy.ErrSupervisorAgentsOnly
			}
			deleted = id
			return nil
		},
	})

	c, rec := newContext(http.MethodDelete, "/v1/accounts/acc-agent", nil, supervisorPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("acc-agent")
	if err := handler.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || deleted != "acc-agent" {
		t.Fatalf("expected 204 for acc-agent, got %d (%q)", rec.Code, deleted)
	}

	c, _ = newContext(http.MethodDelete, "/v1/accounts/acc-sup-2", nil, supervisorPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("acc-sup-2")
	if err := handler.Delete(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAccountHandler_ResetPassword(t *testing.T) {
	handler := NewAccountHandler(&stubAccountService{
		resetFn: func(ctx context.Context, actor *domain.Account, id string) (string, error) {
			return "Tmp-0123abcd", nil
		},
	})

	c, rec := newContext(http.MethodPost, "/v1/accounts/acc-agent/reset-password", nil, adminPrincipal)
	c.SetParamNames("id")
	c.SetParamValues("acc-agent")
	if err := handler.ResetPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp resetPasswordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.TemporaryPassword != "Tmp-0123abcd" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store on the temporary password")
	}
}

func TestAccountHandler_Stats(t *testing.T) {
	handler := NewAccountHandler(&stubAccountService{
		statsFn: func(ctx context.Context, actor *domain.Account) (*domain.AccountStats, error) {
			if actor.Role != domain.RoleAdmin {
				return nil, policy.ErrStatsAdminOnly
			}
			return &domain.AccountStats{Total: 6, Admin: 1, Supervisor: 2, Agent: 3, Active: 5, Inactive: 1}, nil
		},
	})

	c, rec := newContext(http.MethodGet, "/v1/accounts/stats", nil, adminPrincipal)
	if err := handler.Stats(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp != (statsResponse{Total: 6, Admin: 1, Supervisor: 2, Agent: 3, Active: 5, Inactive: 1}) {
		t.Fatalf("unexpected stats: %+v", resp)
	}

	c, _ = newContext(http.MethodGet, "/v1/accounts/stats", nil, supervisorPrincipal)
	if err := handler.Stats(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAccountHandler_RequiresPrincipal(t *testing.T) {
	handler := NewAccountHandler(&stubAccountService{})

	c, _ := newContext(http.MethodGet, "/v1/accounts", nil, nil)
	if code := httpCode(handler.List(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
