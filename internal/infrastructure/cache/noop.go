package cache

import (
	"context"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

var _ ports.AuthCache = Disabled{}

// Disabled never stores anything. Every authentication goes to the store.
type Disabled struct{}

func (Disabled) Get(context.Context, string, string) (*domain.Account, bool, error) {
	return nil, false, nil
}

func (Disabled) Put(context.Context, string, string, *domain.Account) error { return nil }

func (Disabled) Invalidate(context.Context, string) error { return nil }

func (Disabled) Clear(context.Context) error { return nil }
