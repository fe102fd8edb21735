package cache

import (
	"context"
	"sync"
	"time"

	"github.com/assurminut/crm-identity/internal/core/ports"
)

var _ ports.TokenRevoker = (*Revocations)(nil)

// Revocations is a process-local deny-list of session token IDs. An entry is
// dropped once the token it names has expired.
type Revocations struct {
	now func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

func NewRevocations(opts ...RevocationOption) *Revocations {
	r := &Revocations{now: time.Now, until: make(map[string]time.Time)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RevocationOption configures Revocations.
type RevocationOption func(*Revocations)

// WithRevocationClock replaces time.Now, for deterministic tests.
func WithRevocationClock(now func() time.Time) RevocationOption {
	return func(r *Revocations) { r.now = now }
}

func (r *Revocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, exp := range r.until {
		if now.After(exp) {
			delete(r.until, id)
		}
	}
	if until.After(now) {
		r.until[tokenID] = until
	}
	return nil
}

func (r *Revocations) Revoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.until[tokenID]
	if !ok {
		return false, nil
	}
	if r.now().After(exp) {
		delete(r.until, tokenID)
		return false, nil
	}
	return true, nil
}

// Len returns the number of remembered token IDs.
func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.until)
}
