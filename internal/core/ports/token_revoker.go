package ports

import (
	"context"
	"time"
)

// TokenRevoker remembers session tokens that were ended before they expired.
type TokenRevoker interface {
	// Revoke marks tokenID revoked until the token would have expired anyway.
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}
