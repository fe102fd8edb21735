// Package crypto implements password hashing with bcrypt.
package crypto

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/assurminut/crm-identity/internal/api/metrics"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// DefaultCost matches the work factor the legacy CRM hashed with.
const DefaultCost = 12

var _ ports.PasswordHasher = (*BcryptHasher)(nil)

// BcryptHasher implements ports.PasswordHasher.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or DefaultCost when cost is
// outside bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted bcrypt digest of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	start := time.Now()
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	metrics.HashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password longer than 72 bytes", domain.ErrValidation)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrHashing, err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. bcrypt compares in
// constant time; malformed digests are treated as a mismatch.
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	metrics.HashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	return err == nil
}
