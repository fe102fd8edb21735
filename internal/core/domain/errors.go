package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is the only outcome a caller sees for a failed
	// login, whatever the internal reason.
	ErrInvalidCredentials = errors.New("authentication failed")

	ErrForbidden           = errors.New("access forbidden")
	ErrAccountNotFound     = errors.New("account not found")
	ErrCardinalityExceeded = errors.New("role limit reached")
	ErrValidation          = errors.New("invalid account data")
	ErrDuplicateAccount    = fmt.Errorf("%w: username or email already in use", ErrValidation)
	// ErrLoginCollision means a username equals another account's email, or
	// the reverse, so one login would resolve to two accounts.
	ErrLoginCollision = fmt.Errorf("%w: username or email is another account's login", ErrDuplicateAccount)

	ErrBackingStoreUnavailable = errors.New("account store unavailable")
	ErrHashing                 = errors.New("password hashing failed")
)

// StoreError wraps an infrastructure failure. It matches
// ErrBackingStoreUnavailable with errors.Is and keeps the cause for logging.
type StoreError struct {
	Op  string
	Err error
}

// Unavailable wraps err as a StoreError for op.
func Unavailable(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrBackingStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrBackingStoreUnavailable
}
