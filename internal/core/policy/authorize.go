package policy

import (
	"fmt"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// Action names an account operation the routing layer asks about.
type Action uint8

const (
	ActionCreate Action = iota + 1
	ActionView
	ActionUpdate
	ActionDelete
	ActionResetPassword
	ActionViewStats
)

var actionNames = map[Action]string{
	ActionCreate:        "create",
	ActionView:          "view",
	ActionUpdate:        "update",
	ActionDelete:        "delete",
	ActionResetPassword: "reset_password",
	ActionViewStats:     "view_stats",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

var (
	ErrUnknownAction = fmt.Errorf("%w: unknown action", domain.ErrForbidden)
	ErrMissingTarget = fmt.Errorf("%w: action needs a target account", domain.ErrValidation)
)

// Authorize decides whether actor may perform action on target. For
// ActionCreate, target is the account about to be created and only its role
// is read. changes is only consulted for ActionUpdate. ActionViewStats
// ignores target.
func Authorize(action Action, actor, target *domain.Account, changes domain.AccountChanges) error {
	if actor == nil {
		return ErrUnknownActor
	}
	if action == ActionViewStats {
		return CanViewAggregateStats(actor.Role)
	}
	if _, ok := actionNames[action]; !ok {
		return ErrUnknownAction
	}
	if target == nil {
		return ErrMissingTarget
	}

	switch action {
	case ActionCreate:
		return CanCreate(actor.Role, target.Role)
	case ActionView:
		return CanView(actor, target)
	case ActionUpdate:
		return CanUpdate(actor, target, changes)
	case ActionDelete:
		return CanDelete(actor, target)
	default:
		// A reset is a password change and nothing else.
		var password string
		return CanUpdate(actor, target, domain.AccountChanges{Password: &password})
	}
}

// Permits is the role-only gate for action: it fails when no target exists
// that actorRole could be authorized for. Routes run it before the target is
// loaded; Authorize still decides per target.
func Permits(action Action, actorRole domain.Role) error {
	if !actorRole.Valid() {
		return ErrUnknownActor
	}
	switch action {
	case ActionCreate, ActionDelete:
		if actorRole == domain.RoleAgent {
			return ErrAgentCannotManage
		}
		return nil
	case ActionView, ActionUpdate, ActionResetPassword:
		return nil
	case ActionViewStats:
		return CanViewAggregateStats(actorRole)
	}
	return ErrUnknownAction
}
