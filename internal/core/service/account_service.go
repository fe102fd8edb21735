package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/assurminut/crm-identity/internal/api/metrics"
	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/policy"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// temporaryPasswordBytes yields a 12 character URL-safe password.
const temporaryPasswordBytes = 9

var _ ports.AccountService = (*AccountService)(nil)

// AccountService runs the account lifecycle. Every operation re-reads the
// actor, asks the role policy, and only then touches the store.
//
// Creations and role changes that could break a role cap are serialized by
// capMu, so the count they check is the count they write against. Stores that
// carry a unique index on the admin role back this up across processes.
type AccountService struct {
	repo         ports.AccountRepository
	hasher       ports.PasswordHasher
	cache        ports.AuthCache
	audit        ports.AuditRecorder
	storeTimeout time.Duration
	log          zerolog.Logger
	validate     *validator.Validate
	now          func() time.Time

	capMu sync.Mutex
}

// AccountOption configures an AccountService.
type AccountOption func(*AccountService)

// WithAuditRecorder sends lifecycle events to rec.
func WithAuditRecorder(rec ports.AuditRecorder) AccountOption {
	return func(s *AccountService) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithStoreTimeout bounds every store call made by the service.
func WithStoreTimeout(d time.Duration) AccountOption {
	return func(s *AccountService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithNow replaces time.Now for timestamps.
func WithNow(now func() time.Time) AccountOption {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAccountService(
	repo ports.AccountRepository,
	hasher ports.PasswordHasher,
	cache ports.AuthCache,
	log zerolog.Logger,
	opts ...AccountOption,
) *AccountService {
	s := &AccountService{
		repo:         repo,
		hasher:       hasher,
		cache:        cache,
		audit:        discardAudit{},
		storeTimeout: DefaultStoreTimeout,
		log:          log,
		validate:     validator.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type discardAudit struct{}

func (discardAudit) Record(domain.AuditEvent) {}

// CreateAccount creates an account after the role and cardinality checks.
func (s *AccountService) CreateAccount(ctx context.Context, actor *domain.Account, input ports.CreateAccountInput) (*domain.Account, error) {
	created, err := s.createAccount(ctx, actor, input)
	s.observe("create", err)
	return created, err
}

func (s *AccountService) createAccount(ctx context.Context, actor *domain.Account, input ports.CreateAccountInput) (*domain.Account, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	actor, err := s.freshActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.ActionCreate, actor, &domain.Account{Role: input.Role}, domain.AccountChanges{}); err != nil {
		s.deny("create", actor, "", err)
		return nil, err
	}

	if err := s.checkLogins(ctx, "", input.Username, input.Email); err != nil {
		return nil, err
	}

	// Fail fast without paying for a hash; the decisive check runs again
	// under capMu right before the insert.
	if capped(input.Role) {
		if err := s.checkCap(ctx, input.Role); err != nil {
			s.deny("create", actor, "", err)
			return nil, err
		}
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &domain.Account{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: digest,
		GivenName:    input.GivenName,
		FamilyName:   input.FamilyName,
		Role:         input.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.withCap(ctx, input.Role, func() (*domain.Account, error) {
		return callStore(ctx, s.storeTimeout, "insert account", func(ctx context.Context) (*domain.Account, error) {
			return s.repo.Insert(ctx, account)
		})
	})
	if err != nil {
		return nil, err
	}

	s.record(domain.AuditAccountCreated, actor, created, nil)
	s.log.Info().
		Str("actor", actor.Username).
		Str("account_id", created.ID).
		Str("username", created.Username).
		Str("role", created.Role.String()).
		Msg("account created")
	return created.Sanitized(), nil
}

// GetAccount returns one account if the actor may view it.
func (s *AccountService) GetAccount(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error) {
	actor, err := s.freshActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	target, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.ActionView, actor, target, domain.AccountChanges{}); err != nil {
		return nil, err
	}
	return target.Sanitized(), nil
}

// ListAccounts returns the accounts the actor may view.
func (s *AccountService) ListAccounts(ctx context.Context, actor *domain.Account) ([]*domain.Account, error) {
	actor, err := s.freshActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	accounts, err := callStore(ctx, s.storeTimeout, "list accounts", s.repo.List)
	if err != nil {
		return nil, err
	}

	visible := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if policy.Authorize(policy.ActionView, actor, a, domain.AccountChanges{}) == nil {
			visible = append(visible, a.Sanitized())
		}
	}
	return visible, nil
}

// UpdateAccount applies a partial update to the target account.
func (s *AccountService) UpdateAccount(ctx context.Context, actor *domain.Account, id string, changes domain.AccountChanges) (*domain.Account, error) {
	updated, err := s.updateAccount(ctx, actor, id, changes)
	s.observe("update", err)
	return updated, err
}

func (s *AccountService) updateAccount(ctx context.Context, actor *domain.Account, id string, changes domain.AccountChanges) (*domain.Account, error) {
	if err := s.validateChanges(changes); err != nil {
		return nil, err
	}

	actor, err := s.freshActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	target, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.ActionUpdate, actor, target, changes); err != nil {
		s.deny("update", actor, target.ID, err)
		return nil, err
	}

	var username, email string
	if changes.Username != nil && *changes.Username != target.Username {
		username = *changes.Username
	}
	if changes.Email != nil && !strings.EqualFold(*changes.Email, target.Email) {
		email = *changes.Email
	}
	if err := s.checkLogins(ctx, target.ID, username, email); err != nil {
		return nil, err
	}

	next := cloneAccount(target)
	changes.Apply(next)
	if changes.Password != nil {
		digest, err := s.hasher.Hash(*changes.Password)
		if err != nil {
			return nil, err
		}
		next.PasswordHash = digest
	}
	next.UpdatedAt = s.now()

	raises := changes.ChangesRole(target) && capped(next.Role)
	if raises {
		if err := s.checkCap(ctx, next.Role); err != nil {
			s.deny("update", actor, target.ID, err)
			return nil, err
		}
	}

	capRole := domain.RoleAgent
	if raises {
		capRole = next.Role
	}
	updated, err := s.withCap(ctx, capRole, func() (*domain.Account, error) {
		return callStore(ctx, s.storeTimeout, "update account", func(ctx context.Context) (*domain.Account, error) {
			return s.repo.Update(ctx, next)
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, target, updated)
	s.record(domain.AuditAccountUpdated, actor, updated, changedFields(changes))
	s.log.Info().
		Str("actor", actor.Username).
		Str("account_id", updated.ID).
		Strs("fields", changedFields(changes)).
		Msg("account updated")
	return updated.Sanitized(), nil
}

// DeleteAccount removes the target account.
func (s *AccountService) DeleteAccount(ctx context.Context, actor *domain.Account, id string) error {
	err := s.deleteAccount(ctx, actor, id)
	s.observe("delete", err)
	return err
}

func (s *AccountService) deleteAccount(ctx context.Context, actor *domain.Account, id string) error {
	actor, err := s.freshActor(ctx, actor)
	if err != nil {
		return err
	}
	target, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(policy.ActionDelete, actor, target, domain.AccountChanges{}); err != nil {
		s.deny("delete", actor, target.ID, err)
		return err
	}

	if _, err := callStore(ctx, s.storeTimeout, "delete account", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Delete(ctx, target.ID)
	}); err != nil {
		return err
	}

	s.invalidate(ctx, target)
	s.record(domain.AuditAccountDeleted, actor, target, nil)
	s.log.Info().
		Str("actor", actor.Username).
		Str("account_id", target.ID).
		Str("username", target.Username).
		Msg("account deleted")
	return nil
}

// ResetPassword replaces the target's password with a random temporary one
// and returns it. The plaintext is not stored or logged.
func (s *AccountService) ResetPassword(ctx context.Context, actor *domain.Account, id string) (string, error) {
	password, err := s.resetPassword(ctx, actor, id)
	s.observe("reset_password", err)
	return password, err
}

func (s *AccountService) resetPassword(ctx context.Context, actor *domain.Account, id string) (string, error) {
	actor, err := s.freshActor(ctx, actor)
	if err != nil {
		return "", err
	}
	target, err := s.findByID(ctx, id)
	if err != nil {
		return "", err
	}

	if err := policy.Authorize(policy.ActionResetPassword, actor, target, domain.AccountChanges{}); err != nil {
		s.deny("reset_password", actor, target.ID, err)
		return "", err
	}
	password, err := temporaryPassword()
	if err != nil {
		return "", err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}
	next := cloneAccount(target)
	next.PasswordHash = digest
	next.UpdatedAt = s.now()

	updated, err := callStore(ctx, s.storeTimeout, "update account", func(ctx context.Context) (*domain.Account, error) {
		return s.repo.Update(ctx, next)
	})
	if err != nil {
		return "", err
	}

	s.invalidate(ctx, target, updated)
	s.record(domain.AuditPasswordReset, actor, updated, []string{"password"})
	s.log.Info().
		Str("actor", actor.Username).
		Str("account_id", updated.ID).
		Msg("password reset")
	return password, nil
}

// GetAccountStats tallies every account by role and activity.
func (s *AccountService) GetAccountStats(ctx context.Context, actor *domain.Account) (*domain.AccountStats, error) {
	actor, err := s.freshActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.ActionViewStats, actor, nil, domain.AccountChanges{}); err != nil {
		return nil, err
	}
	accounts, err := callStore(ctx, s.storeTimeout, "list accounts", s.repo.List)
	if err != nil {
		return nil, err
	}
	stats := domain.StatsOf(accounts)
	return &stats, nil
}

// freshActor re-reads the actor so decisions use the stored role and
// activity, not a snapshot taken at login.
func (s *AccountService) freshActor(ctx context.Context, actor *domain.Account) (*domain.Account, error) {
	if actor == nil || actor.ID == "" {
		return nil, policy.ErrUnknownActor
	}
	current, err := s.findByID(ctx, actor.ID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, policy.ErrUnknownActor
	}
	if err != nil {
		return nil, err
	}
	if !current.Active || !current.Role.Valid() {
		return nil, policy.ErrUnknownActor
	}
	return current, nil
}

func (s *AccountService) findByID(ctx context.Context, id string) (*domain.Account, error) {
	if id == "" {
		return nil, domain.ErrAccountNotFound
	}
	return callStore(ctx, s.storeTimeout, "find account by id", func(ctx context.Context) (*domain.Account, error) {
		return s.repo.FindByID(ctx, id)
	})
}

// counts reads the current number of accounts holding role.
func (s *AccountService) count(ctx context.Context, role domain.Role) (domain.RoleCounts, error) {
	accounts, err := callStore(ctx, s.storeTimeout, "list accounts by role", func(ctx context.Context) ([]*domain.Account, error) {
		return s.repo.ListByRole(ctx, role)
	})
	if err != nil {
		return nil, err
	}
	return domain.RoleCounts{role: len(accounts)}, nil
}

func (s *AccountService) checkCap(ctx context.Context, role domain.Role) error {
	counts, err := s.count(ctx, role)
	if err != nil {
		return err
	}
	return policy.CardinalityOK(role, counts)
}

// withCap runs write inside the cardinality critical section when role is
// capped, re-checking the cap first. Uncapped writes run directly.
func (s *AccountService) withCap(ctx context.Context, role domain.Role, write func() (*domain.Account, error)) (*domain.Account, error) {
	if !capped(role) {
		return write()
	}
	s.capMu.Lock()
	defer s.capMu.Unlock()
	if err := s.checkCap(ctx, role); err != nil {
		return nil, err
	}
	return write()
}

func capped(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleSupervisor
}

// invalidate drops cached logins for every username the accounts have held.
// The cache files email logins under the resolved username too.
func (s *AccountService) invalidate(ctx context.Context, accounts ...*domain.Account) {
	seen := make(map[string]struct{})
	for _, a := range accounts {
		if a == nil || a.Username == "" {
			continue
		}
		if _, ok := seen[a.Username]; ok {
			continue
		}
		seen[a.Username] = struct{}{}
		if err := s.cache.Invalidate(ctx, a.Username); err != nil {
			s.log.Warn().Err(err).Str("username", a.Username).Msg("failed to invalidate auth cache")
		}
	}
}

func (s *AccountService) record(action domain.AuditAction, actor, target *domain.Account, fields []string) {
	event := domain.AuditEvent{
		ID:             uuid.NewString(),
		Action:         action,
		TargetID:       target.ID,
		TargetUsername: target.Username,
		TargetRole:     target.Role,
		Fields:         fields,
		OccurredAt:     s.now(),
	}
	if actor != nil {
		event.ActorID = actor.ID
		event.ActorUsername = actor.Username
	}
	s.audit.Record(event)
}

func (s *AccountService) deny(op string, actor *domain.Account, targetID string, reason error) {
	s.log.Warn().
		Str("op", op).
		Str("actor", actor.Username).
		Str("actor_role", actor.Role.String()).
		Str("target_id", targetID).
		Err(reason).
		Msg("account operation denied")
}

func (s *AccountService) observe(op string, err error) {
	metrics.AccountOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrCardinalityExceeded):
		return "cardinality"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *AccountService) validateInput(input ports.CreateAccountInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, describe(err))
	}
	if !input.Role.Valid() {
		return policy.ErrInvalidTargetRole
	}
	return nil
}

func (s *AccountService) validateChanges(c domain.AccountChanges) error {
	if c.IsEmpty() {
		return fmt.Errorf("%w: no changes requested", domain.ErrValidation)
	}
	if c.Username != nil {
		if err := s.validate.Var(*c.Username, "required,max=64"); err != nil {
			return fmt.Errorf("%w: username: %s", domain.ErrValidation, describe(err))
		}
	}
	if c.Email != nil {
		if err := s.validate.Var(*c.Email, "required,email"); err != nil {
			return fmt.Errorf("%w: email: %s", domain.ErrValidation, describe(err))
		}
	}
	for name, v := range map[string]*string{"password": c.Password, "given_name": c.GivenName, "family_name": c.FamilyName} {
		if v != nil && *v == "" {
			return fmt.Errorf("%w: %s must not be empty", domain.ErrValidation, name)
		}
	}
	if c.Role != nil && !c.Role.Valid() {
		return policy.ErrInvalidTargetRole
	}
	return nil
}

// checkLogins rejects a username that another account holds as its email and
// an email that another account holds as its username. Login resolution tries
// usernames first, so either would hide one account behind the other. Empty
// values are not checked.
func (s *AccountService) checkLogins(ctx context.Context, selfID, username, email string) error {
	if strings.Contains(username, "@") {
		if err := s.loginTaken(ctx, selfID, "email", s.repo.FindByEmail, username); err != nil {
			return err
		}
	}
	if email == "" {
		return nil
	}
	if err := s.loginTaken(ctx, selfID, "username", s.repo.FindByUsername, email); err != nil {
		return err
	}
	if lower := strings.ToLower(email); lower != email {
		return s.loginTaken(ctx, selfID, "username", s.repo.FindByUsername, lower)
	}
	return nil
}

func (s *AccountService) loginTaken(
	ctx context.Context,
	selfID, by string,
	find func(context.Context, string) (*domain.Account, error),
	login string,
) error {
	other, err := callStore(ctx, s.storeTimeout, "find account by "+by, func(ctx context.Context) (*domain.Account, error) {
		return find(ctx, login)
	})
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != selfID:
		return domain.ErrLoginCollision
	}
	return nil
}

// describe turns validator errors into a short message that never echoes
// the submitted values.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid value"
	}
	fe := verrs[0]
	if fe.Field() == "" {
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
	return fmt.Sprintf("%s failed %q check", fe.Field(), fe.Tag())
}

func changedFields(c domain.AccountChanges) []string {
	var fields []string
	if c.Username != nil {
		fields = append(fields, "username")
	}
	if c.Email != nil {
		fields = append(fields, "email")
	}
	if c.Password != nil {
		fields = append(fields, "password")
	}
	if c.GivenName != nil {
		fields = append(fields, "given_name")
	}
	if c.FamilyName != nil {
		fields = append(fields, "family_name")
	}
	if c.Role != nil {
		fields = append(fields, "role")
	}
	if c.Active != nil {
		fields = append(fields, "active")
	}
	return fields
}

func cloneAccount(a *domain.Account) *domain.Account {
	clone := *a
	return &clone
}

func temporaryPassword() (string, error) {
	buf := make([]byte, temporaryPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrHashing, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
