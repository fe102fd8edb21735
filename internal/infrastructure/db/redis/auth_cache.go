package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

const authCachePrefix = "authcache:"

var _ ports.AuthCache = (*AuthCache)(nil)

// AuthCache is an authentication cache shared by every replica.
//
// Key layout:
//
//	authcache:pair:<fingerprint>  username the pair resolved to
//	authcache:user:<username>     hash of fingerprint -> cached account
//
// A hit needs both keys, so Invalidate only has to delete the user hash to
// revoke every login spelling and password cached for that account.
type AuthCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

type cachedAccount struct {
	Account   domain.Account `json:"account"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// NewAuthCache creates an AuthCache wrapping the given Redis client.
func NewAuthCache(client *redis.Client, ttl time.Duration) *AuthCache {
	return &AuthCache{client: client, ttl: ttl, now: time.Now}
}

// Get returns the cached account for the exact credential pair.
func (c *AuthCache) Get(ctx context.Context, login, password string) (*domain.Account, bool, error) {
	if login == "" || password == "" {
		return nil, false, nil
	}
	fp := field(login, password)
	username, err := c.client.Get(ctx, pairKey(fp)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("auth cache get: %w", err)
	}
	raw, err := c.client.HGet(ctx, userKey(username), fp).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("auth cache get: %w", err)
	}

	var cached cachedAccount
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, fmt.Errorf("auth cache decode: %w", err)
	}
	if c.now().After(cached.ExpiresAt) {
		return nil, false, nil
	}
	return &cached.Account, true, nil
}

// Put stores account for the pair under account.Username and pushes both
// keys' expiry out by one TTL.
func (c *AuthCache) Put(ctx context.Context, login, password string, account *domain.Account) error {
	if login == "" || password == "" || account == nil {
		return nil
	}
	raw, err := json.Marshal(cachedAccount{
		Account:   *account.Sanitized(),
		ExpiresAt: c.now().Add(c.ttl),
	})
	if err != nil {
		return fmt.Errorf("auth cache encode: %w", err)
	}

	fp := field(login, password)
	user := userKey(account.Username)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pairKey(fp), account.Username, c.ttl)
		pipe.HSet(ctx, user, fp, raw)
		pipe.Expire(ctx, user, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("auth cache put: %w", err)
	}
	return nil
}

// Invalidate drops every cached login that resolved to username.
func (c *AuthCache) Invalidate(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, userKey(username)).Err(); err != nil {
		return fmt.Errorf("auth cache invalidate: %w", err)
	}
	return nil
}

// Clear drops every authcache key.
func (c *AuthCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, authCachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("auth cache clear: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("auth cache clear: %w", err)
	}
	return nil
}

func pairKey(fp string) string {
	return authCachePrefix + "pair:" + fp
}

func userKey(username string) string {
	return authCachePrefix + "user:" + username
}

func field(login, password string) string {
	sum := sha256.Sum256([]byte(login + "\x00" + password))
	return hex.EncodeToString(sum[:])
}
