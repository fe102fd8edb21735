package ports

import (
	"context"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// AuthCache memoizes successful credential checks for a bounded time.
// Entries are keyed by the exact (login, plaintext password) pair, so a hit
// only ever answers an identical resubmission. The cache is an optimization:
// a miss or an error must fall back to real verification.
type AuthCache interface {
	Get(ctx context.Context, login, password string) (*domain.Account, bool, error)
	// Put files the entry under account.Username, whichever login (username
	// or email, in any letter case) resolved to it.
	Put(ctx context.Context, login, password string, account *domain.Account) error
	// Invalidate drops every entry filed under username, whatever login
	// spelling or password produced it.
	Invalidate(ctx context.Context, username string) error
	// Clear drops all entries. Used on shutdown and in tests.
	Clear(ctx context.Context) error
}
