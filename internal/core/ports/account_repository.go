package ports

import (
	"context"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// AccountRepository is the narrow view of the record store the identity core
// depends on. Lookups that match nothing return domain.ErrAccountNotFound;
// writes that collide on username or email return domain.ErrDuplicateAccount.
// Implementations that enforce the single-admin rule at the store level
// return domain.ErrCardinalityExceeded when a second admin is written.
type AccountRepository interface {
	// FindByUsername matches the username exactly (case-sensitive).
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.Account, error)
	// Insert stores a new account and returns it with its ID assigned.
	Insert(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
}
