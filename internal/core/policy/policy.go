// Package policy holds the account authorization rules. Every function is a
// pure decision: nil means allow, a non-nil error is the denial reason. Denials
// match domain.ErrForbidden or domain.ErrCardinalityExceeded with errors.Is.
//
// Checks run in a fixed order (role, then cardinality, then identity) and the
// first failing check is the one reported.
package policy

import (
	"fmt"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

var (
	ErrAgentCannotManage      = fmt.Errorf("%w: agents cannot manage other accounts", domain.ErrForbidden)
	ErrSupervisorAgentsOnly   = fmt.Errorf("%w: supervisors may only manage agent accounts", domain.ErrForbidden)
	ErrAdminUndeletable       = fmt.Errorf("%w: the administrator account cannot be deleted", domain.ErrForbidden)
	ErrSelfDeletion           = fmt.Errorf("%w: accounts cannot delete themselves", domain.ErrForbidden)
	ErrOwnAccountOnly         = fmt.Errorf("%w: agents may only access their own account", domain.ErrForbidden)
	ErrRoleChangeAdminOnly    = fmt.Errorf("%w: only the administrator may change roles", domain.ErrForbidden)
	ErrStatsAdminOnly         = fmt.Errorf("%w: only the administrator may view account statistics", domain.ErrForbidden)
	ErrUnknownActor           = fmt.Errorf("%w: actor has no valid role", domain.ErrForbidden)
	ErrAdminLimitReached      = fmt.Errorf("%w: only %d admin account is allowed", domain.ErrCardinalityExceeded, domain.MaxAdmins)
	ErrSupervisorLimitReached = fmt.Errorf("%w: at most %d supervisor accounts are allowed", domain.ErrCardinalityExceeded, domain.MaxSupervisors)
	ErrInvalidTargetRole      = fmt.Errorf("%w: target role is not valid", domain.ErrValidation)
)

// CanCreate decides whether an actor holding actorRole may create an account
// with targetRole.
func CanCreate(actorRole, targetRole domain.Role) error {
	if !targetRole.Valid() {
		return ErrInvalidTargetRole
	}
	switch actorRole {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSupervisor:
		if targetRole == domain.RoleAgent {
			return nil
		}
		return ErrSupervisorAgentsOnly
	case domain.RoleAgent:
		return ErrAgentCannotManage
	}
	return ErrUnknownActor
}

// CardinalityOK decides whether one more account with targetRole fits the
// role caps given the current counts.
func CardinalityOK(targetRole domain.Role, counts domain.RoleCounts) error {
	switch targetRole {
	case domain.RoleAdmin:
		if counts[domain.RoleAdmin] >= domain.MaxAdmins {
			return ErrAdminLimitReached
		}
	case domain.RoleSupervisor:
		if counts[domain.RoleSupervisor] >= domain.MaxSupervisors {
			return ErrSupervisorLimitReached
		}
	}
	return nil
}

// CanDelete decides whether actor may delete target. The admin account is
// never deletable, not even by itself.
func CanDelete(actor, target *domain.Account) error {
	if target.Role == domain.RoleAdmin {
		return ErrAdminUndeletable
	}
	if target.ID == actor.ID {
		return ErrSelfDeletion
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSupervisor:
		if target.Role == domain.RoleAgent {
			return nil
		}
		return ErrSupervisorAgentsOnly
	case domain.RoleAgent:
		return ErrAgentCannotManage
	}
	return ErrUnknownActor
}

// CanUpdate decides whether actor may apply changes to target.
func CanUpdate(actor, target *domain.Account, changes domain.AccountChanges) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleSupervisor:
		if target.Role != domain.RoleAgent && target.ID != actor.ID {
			return ErrSupervisorAgentsOnly
		}
	case domain.RoleAgent:
		if target.ID != actor.ID {
			return ErrOwnAccountOnly
		}
	default:
		return ErrUnknownActor
	}
	if changes.ChangesRole(target) {
		return ErrRoleChangeAdminOnly
	}
	return nil
}

// CanView decides whether actor may read target.
func CanView(actor, target *domain.Account) error {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSupervisor:
		return nil
	case domain.RoleAgent:
		if target.ID == actor.ID {
			return nil
		}
		return ErrOwnAccountOnly
	}
	return ErrUnknownActor
}

// CanViewAggregateStats decides whether actorRole may read account statistics.
func CanViewAggregateStats(actorRole domain.Role) error {
	if actorRole == domain.RoleAdmin {
		return nil
	}
	return ErrStatsAdminOnly
}
