package handler

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/assurminut/crm-identity/internal/api/middleware"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

type stubAuthService struct {
	loginFn  func(ctx context.Context, username, password string) (string, *domain.Account, error)
	logoutFn func(ctx context.Context, principal *domain.Account, tokenID string, expiresAt time.Time) error
}

func (s *stubAuthService) Authenticate(ctx context.Context, username, password string) (*domain.Account, error) {
	_, account, err := s.loginFn(ctx, username, password)
	return account, err
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, *domain.Account, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) Logout(ctx context.Context, principal *domain.Account, tokenID string, expiresAt time.Time) error {
	if s.logoutFn == nil {
		return errNotStubbed
	}
	return s.logoutFn(ctx, principal, tokenID, expiresAt)
}

// stubAccountService fails every call that has no function set.
type stubAccountService struct {
	createFn func(ctx context.Context, actor *domain.Account, input ports.CreateAccountInput) (*domain.Account, error)
	getFn    func(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error)
	listFn   func(ctx context.Context, actor *domain.Account) ([]*domain.Account, error)
	updateFn func(ctx context.Context, actor *domain.Account, id string, changes domain.AccountChanges) (*domain.Account, error)
	deleteFn func(ctx context.Context, actor *domain.Account, id string) error
	resetFn  func(ctx context.Context, actor *domain.Account, id string) (string, error)
	statsFn  func(ctx context.Context, actor *domain.Account) (*domain.AccountStats, error)
}

var errNotStubbed = domain.Unavailable("stub", io.ErrUnexpectedEOF)

func (s *stubAccountService) CreateAccount(ctx context.Context, actor *domain.Account, input ports.CreateAccountInput) (*domain.Account, error) {
	if s.createFn == nil {
		return nil, errNotStubbed
	}
	return s.createFn(ctx, actor, input)
}

func (s *stubAccountService) GetAccount(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error) {
	if s.getFn == nil {
		return nil, errNotStubbed
	}
	return s.getFn(ctx, actor, id)
}

func (s *stubAccountService) ListAccounts(ctx context.Context, actor *domain.Account) ([]*domain.Account, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, actor)
}

func (s *stubAccountService) UpdateAccount(ctx context.Context, actor *domain.Account, id string, changes domain.AccountChanges) (*domain.Account, error) {
	if s.updateFn == nil {
		return nil, errNotStubbed
	}
	return s.updateFn(ctx, actor, id, changes)
}

func (s *stubAccountService) DeleteAccount(ctx context.Context, actor *domain.Account, id string) error {
	if s.deleteFn == nil {
		return errNotStubbed
	}
	return s.deleteFn(ctx, actor, id)
}

func (s *stubAccountService) ResetPassword(ctx context.Context, actor *domain.Account, id string) (string, error) {
	if s.resetFn == nil {
		return "", errNotStubbed
	}
	return s.resetFn(ctx, actor, id)
}

func (s *stubAccountService) GetAccountStats(ctx context.Context, actor *domain.Account) (*domain.AccountStats, error) {
	if s.statsFn == nil {
		return nil, errNotStubbed
	}
	return s.statsFn(ctx, actor)
}

// newContext builds an echo context for method and target with an optional
// JSON body and principal.
func newContext(method, target string, body io.Reader, principal *domain.Account) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if principal != nil {
		middleware.SetPrincipal(c, principal)
	}
	return c, rec
}

var (
	adminPrincipal      = &domain.Account{ID: "acc-admin", Username: "admin", Role: domain.RoleAdmin, Active: true}
	supervisorPrincipal = &domain.Account{ID: "acc-sup", Username: "super1", Role: domain.RoleSupervisor, Active: true}
	agentPrincipal      = &domain.Account{ID: "acc-agent", Username: "agent1", Role: domain.RoleAgent, Active: true}
)

// httpCode returns the status of an *echo.HTTPError, or 0.
func httpCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}
