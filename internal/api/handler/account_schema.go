package handler

import (
	"time"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request types ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createAccountRequest struct {
	Username   string `json:"username"    validate:"required,max=64"`
	Email      string `json:"email"       validate:"required,email"`
	Password   string `json:"password"    validate:"required"`
	GivenName  string `json:"given_name"  validate:"required"`
	FamilyName string `json:"family_name" validate:"required"`
	Role       string `json:"role"        validate:"required"`
}

// updateAccountRequest is a partial update: absent fields stay untouched.
type updateAccountRequest struct {
	Username   *string `json:"username"    validate:"omitempty,max=64"`
	Email      *string `json:"email"       validate:"omitempty,email"`
	Password   *string `json:"password"    validate:"omitempty,min=1"`
	GivenName  *string `json:"given_name"  validate:"omitempty,min=1"`
	FamilyName *string `json:"family_name" validate:"omitempty,min=1"`
	Role       *string `json:"role"`
	Active     *bool   `json:"active"`
}

// --- Response types ---

// accountResponse is owned by the transport layer so the JSON contract does
// not follow internal changes to domain.Account. It never carries a digest.
type accountResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type listAccountsResponse struct {
	Data  []accountResponse `json:"data"`
	Total int               `json:"total"`
}

type authResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	Account   accountResponse `json:"account"`
}

type resetPasswordResponse struct {
	TemporaryPassword string `json:"temporary_password"`
}

type statsResponse struct {
	Total      int `json:"total"`
	Admin      int `json:"admin"`
	Supervisor int `json:"supervisor"`
	Agent      int `json:"agent"`
	Active     int `json:"active"`
	Inactive   int `json:"inactive"`
}

// --- Mapping ---

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		Username:   a.Username,
		Email:      a.Email,
		GivenName:  a.GivenName,
		FamilyName: a.FamilyName,
		Role:       a.Role.String(),
		Active:     a.Active,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toStatsResponse(s *domain.AccountStats) statsResponse {
	return statsResponse{
		Total:      s.Total,
		Admin:      s.Admin,
		Supervisor: s.Supervisor,
		Agent:      s.Agent,
		Active:     s.Active,
		Inactive:   s.Inactive,
	}
}

func (r createAccountRequest) toInput() (ports.CreateAccountInput, error) {
	role, err := domain.ParseRole(r.Role)
	if err != nil {
		return ports.CreateAccountInput{}, err
	}
	return ports.CreateAccountInput{
		Username:   r.Username,
		Email:      r.Email,
		Password:   r.Password,
		GivenName:  r.GivenName,
		FamilyName: r.FamilyName,
		Role:       role,
	}, nil
}

func (r updateAccountRequest) toChanges() (domain.AccountChanges, error) {
	changes := domain.AccountChanges{
		Username:   r.Username,
		Email:      r.Email,
		Password:   r.Password,
		GivenName:  r.GivenName,
		FamilyName: r.FamilyName,
		Active:     r.Active,
	}
	if r.Role != nil {
		role, err := domain.ParseRole(*r.Role)
		if err != nil {
			return domain.AccountChanges{}, err
		}
		changes.Role = &role
	}
	return changes, nil
}
