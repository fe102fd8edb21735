package ports

import (
	"context"
	"time"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// AuthService verifies credentials and issues session tokens.
type AuthService interface {
	// Authenticate returns the password-stripped account for valid
	// credentials, domain.ErrInvalidCredentials otherwise, or an error
	// matching domain.ErrBackingStoreUnavailable when the store cannot answer.
	Authenticate(ctx context.Context, username, password string) (*domain.Account, error)
	// Login authenticates and signs a token for the resulting principal.
	Login(ctx context.Context, username, password string) (string, *domain.Account, error)
	// Logout revokes the session token tokenID until expiresAt and drops the
	// principal's cached logins.
	Logout(ctx context.Context, principal *domain.Account, tokenID string, expiresAt time.Time) error
}
