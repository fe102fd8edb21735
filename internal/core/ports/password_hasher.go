package ports

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash returns a salted one-way digest of plaintext.
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches digest. A mismatch is false,
	// never an error.
	Verify(plaintext, digest string) bool
}
