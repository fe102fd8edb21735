package service

import (
	"context"
	"errors"
	"time"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// DefaultStoreTimeout bounds every account store call. It matches the
// timeout the legacy CRM raced its lookups against.
const DefaultStoreTimeout = 8 * time.Second

// callStore runs fn with a deadline of timeout and returns as soon as the
// deadline passes, even if the store ignores the context. Errors that are not
// part of the domain vocabulary are wrapped as store unavailability.
func callStore[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		done <- result{val: val, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil {
			return zero, classify(op, r.err)
		}
		return r.val, nil
	case <-ctx.Done():
		return zero, domain.Unavailable(op, ctx.Err())
	}
}

// classify keeps domain errors as they are and wraps everything else.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrCardinalityExceeded),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrBackingStoreUnavailable):
		return err
	}
	return domain.Unavailable(op, err)
}
