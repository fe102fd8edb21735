package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/policy"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// Seed inserts the given accounts when the store holds no account at all.
// Entries that would break a role cap or collide with an earlier entry are
// skipped and logged. It returns how many accounts were created.
func (s *AccountService) Seed(ctx context.Context, inputs []ports.CreateAccountInput) (int, error) {
	existing, err := callStore(ctx, s.storeTimeout, "list accounts", s.repo.List)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		s.log.Debug().Int("accounts", len(existing)).Msg("store already populated, skipping seed")
		return 0, nil
	}

	created := 0
	for _, input := range inputs {
		account, err := s.insertUnchecked(ctx, input)
		switch {
		case err == nil:
			created++
			s.record(domain.AuditAccountSeeded, nil, account, nil)
		case errors.Is(err, domain.ErrCardinalityExceeded), errors.Is(err, domain.ErrValidation):
			s.log.Warn().Err(err).Str("username", input.Username).Msg("skipping seed account")
		default:
			return created, err
		}
	}
	s.log.Info().Int("created", created).Int("requested", len(inputs)).Msg("seeded account store")
	return created, nil
}

// EnsureAdmin creates the administrator from input when the store has none.
// It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, input ports.CreateAccountInput) (bool, error) {
	input.Role = domain.RoleAdmin

	counts, err := s.count(ctx, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	if counts[domain.RoleAdmin] > 0 {
		return false, nil
	}

	account, err := s.insertUnchecked(ctx, input)
	if errors.Is(err, domain.ErrCardinalityExceeded) {
		// Another replica bootstrapped first.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	s.record(domain.AuditAccountSeeded, nil, account, nil)
	s.log.Warn().
		Str("username", account.Username).
		Msg("no administrator found, created one from configuration; change its password")
	return true, nil
}

// VerifyRoleCaps counts stored accounts per role and reports any cap
// violation, including a missing administrator. Counts are returned either way.
func (s *AccountService) VerifyRoleCaps(ctx context.Context) (domain.RoleCounts, error) {
	accounts, err := callStore(ctx, s.storeTimeout, "list accounts", s.repo.List)
	if err != nil {
		return nil, err
	}

	counts := domain.RoleCounts{}
	for _, a := range accounts {
		counts[a.Role]++
	}

	var problems []error
	if n := counts[domain.RoleAdmin]; n != domain.MaxAdmins {
		problems = append(problems, fmt.Errorf("%w: found %d admin accounts, want exactly %d",
			domain.ErrCardinalityExceeded, n, domain.MaxAdmins))
	}
	if n := counts[domain.RoleSupervisor]; n > domain.MaxSupervisors {
		problems = append(problems, fmt.Errorf("%w: found %d supervisor accounts, at most %d allowed",
			domain.ErrCardinalityExceeded, n, domain.MaxSupervisors))
	}
	return counts, errors.Join(problems...)
}

// insertUnchecked creates an account without an actor. Input validation and
// role caps still apply.
func (s *AccountService) insertUnchecked(ctx context.Context, input ports.CreateAccountInput) (*domain.Account, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
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

	s.capMu.Lock()
	defer s.capMu.Unlock()
	if capped(input.Role) {
		counts, err := s.count(ctx, input.Role)
		if err != nil {
			return nil, err
		}
		if err := policy.CardinalityOK(input.Role, counts); err != nil {
			return nil, err
		}
	}
	return callStore(ctx, s.storeTimeout, "insert account", func(ctx context.Context) (*domain.Account, error) {
		return s.repo.Insert(ctx, account)
	})
}
