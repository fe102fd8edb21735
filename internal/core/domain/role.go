package domain

import (
	"fmt"
	"strings"
)

// Role is the capability tier of an account. The zero value is not a valid
// role; use ParseRole to build one from untrusted input.
type Role uint8

const (
	roleUnknown Role = iota
	RoleAgent
	RoleSupervisor
	RoleAdmin
)

const (
	// MaxAdmins is the number of admin accounts the system may hold.
	MaxAdmins = 1
	// MaxSupervisors is the upper bound on supervisor accounts.
	MaxSupervisors = 4
)

var roleNames = map[Role]string{
	RoleAgent:      "agent",
	RoleSupervisor: "supervisor",
	RoleAdmin:      "admin",
}

// Roles lists every valid role from most to least privileged.
func Roles() []Role {
	return []Role{RoleAdmin, RoleSupervisor, RoleAgent}
}

// ParseRole converts a role name to a Role. "superviseur" is accepted as an
// alias for records migrated from the legacy store.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "supervisor", "superviseur":
		return RoleSupervisor, nil
	case "agent":
		return RoleAgent, nil
	}
	return roleUnknown, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool {
	return r > other
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: invalid role %d", ErrValidation, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleCounts holds the number of stored accounts per role.
type RoleCounts map[Role]int
