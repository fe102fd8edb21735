package ports

import (
	"context"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// CreateAccountInput carries the data for a new account.
type CreateAccountInput struct {
	Username   string      `validate:"required,max=64"`
	Email      string      `validate:"required,email"`
	Password   string      `validate:"required"`
	GivenName  string      `validate:"required"`
	FamilyName string      `validate:"required"`
	Role       domain.Role `validate:"required"`
}

// AccountService is the account lifecycle exposed to the routing layer.
// Every operation takes the authenticated actor and checks the role policy
// before touching the store.
type AccountService interface {
	CreateAccount(ctx context.Context, actor *domain.Account, input CreateAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, actor *domain.Account) ([]*domain.Account, error)
	UpdateAccount(ctx context.Context, actor *domain.Account, id string, changes domain.AccountChanges) (*domain.Account, error)
	DeleteAccount(ctx context.Context, actor *domain.Account, id string) error
	// ResetPassword returns the new temporary password. It is not stored or
	// logged anywhere else.
	ResetPassword(ctx context.Context, actor *domain.Account, id string) (string, error)
	GetAccountStats(ctx context.Context, actor *domain.Account) (*domain.AccountStats, error)
}
