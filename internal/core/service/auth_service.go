package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/assurminut/crm-identity/internal/api/metrics"
	"github.com/assurminut/crm-identity/internal/auth"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// dummyPassword is hashed once so that logins for unknown usernames spend the
// same hashing time as logins for known ones.
const dummyPassword = "crm-identity/no-such-account"

var _ ports.AuthService = (*AuthService)(nil)

// AuthService verifies credentials against the account store, memoizes
// successes in an AuthCache, and signs session tokens.
type AuthService struct {
	repo         ports.AccountRepository
	hasher       ports.PasswordHasher
	cache        ports.AuthCache
	jwtSecret    string
	tokenTTL     time.Duration
	storeTimeout time.Duration
	log          zerolog.Logger

	revoker ports.TokenRevoker

	flight    singleflight.Group
	dummyOnce sync.Once
	dummy     string
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithTokenRevoker makes Logout revoke session tokens. Without one, Logout
// only drops cached logins and tokens stay valid until they expire.
func WithTokenRevoker(r ports.TokenRevoker) AuthOption {
	return func(s *AuthService) { s.revoker = r }
}

func NewAuthService(
	repo ports.AccountRepository,
	hasher ports.PasswordHasher,
	cache ports.AuthCache,
	jwtSecret string,
	tokenTTL time.Duration,
	storeTimeout time.Duration,
	log zerolog.Logger,
	opts ...AuthOption,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	s := &AuthService{
		repo:         repo,
		hasher:       hasher,
		cache:        cache,
		jwtSecret:    jwtSecret,
		tokenTTL:     tokenTTL,
		storeTimeout: storeTimeout,
		log:          log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate resolves login as a username, then as an email, and checks
// password against the stored digest. Unknown accounts, inactive accounts,
// and wrong passwords all return domain.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*domain.Account, error) {
	if login == "" || password == "" {
		metrics.AuthAttemptsTotal.WithLabelValues("not_found").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if account, ok := s.fromCache(ctx, login, password); ok {
		metrics.AuthAttemptsTotal.WithLabelValues("cache_hit").Inc()
		return account, nil
	}

	// Identical concurrent submissions share one store round trip. The shared
	// call must not be cancelled by whichever caller happened to start it.
	v, err, _ := s.flight.Do(flightKey(login, password), func() (interface{}, error) {
		return s.verify(context.WithoutCancel(ctx), login, password)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Account).Sanitized(), nil
}

// Login authenticates and signs a session token for the account.
func (s *AuthService) Login(ctx context.Context, login, password string) (string, *domain.Account, error) {
	account, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return "", nil, err
	}

	token, err := auth.NewAccessToken(s.jwtSecret, s.tokenTTL, account)
	if err != nil {
		return "", nil, err
	}

	s.log.Info().Str("username", account.Username).Str("role", account.Role.String()).Msg("login succeeded")
	return token, account, nil
}

// Logout ends the session named by tokenID and drops the principal's cached
// logins, so the next login goes back to the store.
func (s *AuthService) Logout(ctx context.Context, principal *domain.Account, tokenID string, expiresAt time.Time) error {
	if s.revoker != nil && tokenID != "" {
		if err := s.revoker.Revoke(ctx, tokenID, expiresAt); err != nil {
			s.log.Error().Err(err).Str("account_id", principal.ID).Msg("logout failed: token not revoked")
			return domain.Unavailable("revoke token", err)
		}
	}
	if err := s.cache.Invalidate(ctx, principal.Username); err != nil {
		s.log.Warn().Err(err).Str("username", principal.Username).Msg("failed to invalidate auth cache")
	}
	s.log.Info().Str("username", principal.Username).Str("account_id", principal.ID).Msg("logout")
	return nil
}

func (s *AuthService) fromCache(ctx context.Context, login, password string) (*domain.Account, bool) {
	account, ok, err := s.cache.Get(ctx, login, password)
	switch {
	case err != nil:
		metrics.AuthCacheTotal.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Str("username", login).Msg("auth cache lookup failed, checking store")
		return nil, false
	case ok:
		metrics.AuthCacheTotal.WithLabelValues("hit").Inc()
		return account, true
	default:
		metrics.AuthCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
}

func (s *AuthService) verify(ctx context.Context, login, password string) (*domain.Account, error) {
	account, err := s.resolve(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.hasher.Verify(password, s.dummyDigest())
			metrics.AuthAttemptsTotal.WithLabelValues("not_found").Inc()
			s.log.Info().Str("username", login).Msg("login failed: no such account")
			return nil, domain.ErrInvalidCredentials
		}
		metrics.AuthAttemptsTotal.WithLabelValues("unavailable").Inc()
		s.log.Error().Err(err).Str("username", login).Msg("login failed: account store unavailable")
		return nil, err
	}

	matched := s.hasher.Verify(password, account.PasswordHash)
	if !account.Active {
		metrics.AuthAttemptsTotal.WithLabelValues("inactive").Inc()
		s.log.Info().Str("username", login).Str("account_id", account.ID).Msg("login failed: account inactive")
		return nil, domain.ErrInvalidCredentials
	}
	if !matched {
		metrics.AuthAttemptsTotal.WithLabelValues("bad_password").Inc()
		s.log.Info().Str("username", login).Str("account_id", account.ID).Msg("login failed: wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	clean := account.Sanitized()
	if err := s.cache.Put(ctx, login, password, clean); err != nil {
		s.log.Warn().Err(err).Str("username", login).Msg("failed to cache authentication")
	}
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	return clean, nil
}

// resolve looks login up as a username first and as an email only when no
// username matched. It reports ErrAccountNotFound only when both lookups
// answered "no such account"; any other failure makes the store unavailable.
func (s *AuthService) resolve(ctx context.Context, login string) (*domain.Account, error) {
	account, byUsername := s.lookup(ctx, "username", s.repo.FindByUsername, login)
	if byUsername == nil {
		return account, nil
	}
	account, byEmail := s.lookup(ctx, "email", s.repo.FindByEmail, login)
	if byEmail == nil {
		return account, nil
	}

	if errors.Is(byUsername, domain.ErrAccountNotFound) && errors.Is(byEmail, domain.ErrAccountNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if !errors.Is(byUsername, domain.ErrAccountNotFound) {
		return nil, byUsername
	}
	return nil, byEmail
}

func (s *AuthService) lookup(
	ctx context.Context,
	by string,
	find func(context.Context, string) (*domain.Account, error),
	login string,
) (*domain.Account, error) {
	start := time.Now()
	account, err := callStore(ctx, s.storeTimeout, "find account by "+by, func(ctx context.Context) (*domain.Account, error) {
		return find(ctx, login)
	})
	metrics.StoreLookupDuration.WithLabelValues(by).Observe(time.Since(start).Seconds())
	return account, err
}

func (s *AuthService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to prepare timing digest")
			return
		}
		s.dummy = digest
	})
	return s.dummy
}

// flightKey identifies a credential pair without holding the password itself.
func flightKey(login, password string) string {
	sum := sha256.Sum256([]byte(login + "\x00" + password))
	return hex.EncodeToString(sum[:])
}
