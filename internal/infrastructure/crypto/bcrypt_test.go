package crypto

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	for _, pw := range []string{"admin123", "", "pässwörd", strings.Repeat("x", 72)} {
		digest, err := h.Hash(pw)
		if err != nil {
			t.Fatalf("hash %q: %v", pw, err)
		}
		if digest == pw {
			t.Fatalf("digest equals plaintext")
		}
		if !h.Verify(pw, digest) {
			t.Fatalf("expected %q to verify against its own digest", pw)
		}
		if h.Verify(pw+"!", digest) {
			t.Fatalf("expected mismatch for altered password")
		}
	}
}

func TestBcryptHasher_Salted(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, _ := h.Hash("secret")
	b, _ := h.Hash("secret")
	if a == b {
		t.Fatalf("expected distinct digests for the same password")
	}
}

func TestBcryptHasher_VerifyMalformedDigest(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	if h.Verify("secret", "not-a-bcrypt-digest") {
		t.Fatalf("expected false for malformed digest")
	}
	if h.Verify("secret", "") {
		t.Fatalf("expected false for empty digest")
	}
}

func TestBcryptHasher_TooLong(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	_, err := h.Hash(strings.Repeat("x", 73))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestNewBcryptHasher_CostBounds(t *testing.T) {
	if got := NewBcryptHasher(0).cost; got != DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewBcryptHasher(bcrypt.MaxCost + 1).cost; got != DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewBcryptHasher(bcrypt.MinCost).cost; got != bcrypt.MinCost {
		t.Fatalf("expected min cost, got %d", got)
	}
}

func TestBcryptHasher_VerifiesLegacyDigest(t *testing.T) {
	// Digest of "admin123" at cost 12, as stored by the legacy CRM.
	const legacy = "$2b$12$vWQKCsZP7m8zh23kofic9u/iItwc0.fKP4QAodn4XJJbEHxWD/I52"
	h := NewBcryptHasher(bcrypt.MinCost)
	if h.Verify("wrong", legacy) {
		t.Fatalf("expected mismatch against legacy digest")
	}
}
