// Package cache provides in-process implementations of ports.AuthCache.
package cache

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// DefaultTTL is the validity window the legacy CRM used for cached logins.
const DefaultTTL = 10 * time.Minute

var _ ports.AuthCache = (*Memory)(nil)

type pairKey [sha256.Size]byte

type entry struct {
	account   domain.Account
	expiresAt time.Time
}

// Memory is a process-local authentication cache. Entries are looked up by a
// SHA-256 fingerprint of the submitted (login, password) pair and grouped by
// the username of the account they resolved to, so Invalidate reaches logins
// made by email as well as by username.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	pairs  map[pairKey]entry
	owners map[string]map[pairKey]struct{}
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty cache whose entries live for ttl.
// DefaultTTL is used when ttl <= 0.
func NewMemory(ttl time.Duration, opts ...Option) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		ttl:    ttl,
		now:    time.Now,
		pairs:  make(map[pairKey]entry),
		owners: make(map[string]map[pairKey]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached account for the exact credential pair while the
// entry has not expired.
func (m *Memory) Get(_ context.Context, login, password string) (*domain.Account, bool, error) {
	if login == "" || password == "" {
		return nil, false, nil
	}
	key := fingerprint(login, password)

	m.mu.RLock()
	e, ok := m.pairs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		m.evict(key, e.expiresAt)
		return nil, false, nil
	}
	account := e.account
	return &account, true, nil
}

// Put stores account for the pair, replacing any prior entry.
func (m *Memory) Put(_ context.Context, login, password string, account *domain.Account) error {
	if login == "" || password == "" || account == nil {
		return nil
	}
	key := fingerprint(login, password)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.pairs[key]; ok {
		m.unlink(prev.account.Username, key)
	}
	owned, ok := m.owners[account.Username]
	if !ok {
		owned = make(map[pairKey]struct{})
		m.owners[account.Username] = owned
	}
	for k := range owned {
		if now.After(m.pairs[k].expiresAt) {
			delete(m.pairs, k)
			delete(owned, k)
		}
	}
	m.pairs[key] = entry{account: *account.Sanitized(), expiresAt: now.Add(m.ttl)}
	owned[key] = struct{}{}
	return nil
}

// Invalidate drops every entry that resolved to username.
func (m *Memory) Invalidate(_ context.Context, username string) error {
	m.mu.Lock()
	for k := range m.owners[username] {
		delete(m.pairs, k)
	}
	delete(m.owners, username)
	m.mu.Unlock()
	return nil
}

// Clear drops all entries.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.pairs = make(map[pairKey]entry)
	m.owners = make(map[string]map[pairKey]struct{})
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pairs)
}

// evict removes an expired entry unless a concurrent Put refreshed it.
func (m *Memory) evict(key pairKey, seen time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pairs[key]; ok && e.expiresAt.Equal(seen) {
		delete(m.pairs, key)
		m.unlink(e.account.Username, key)
	}
}

// unlink must be called with mu held.
func (m *Memory) unlink(username string, key pairKey) {
	owned := m.owners[username]
	delete(owned, key)
	if len(owned) == 0 {
		delete(m.owners, username)
	}
}

func fingerprint(login, password string) pairKey {
	h := sha256.New()
	h.Write([]byte(login))
	h.Write([]byte{0})
	h.Write([]byte(password))
	var key pairKey
	copy(key[:], h.Sum(nil))
	return key
}
