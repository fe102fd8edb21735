package domain

import "time"

// Account is the identity record of a broker employee.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GivenName    string    `json:"given_name"`
	FamilyName   string    `json:"family_name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sanitized returns a copy of the account without its password digest.
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.PasswordHash = ""
	return &clone
}

// AccountChanges is a partial update. Nil fields are left untouched.
type AccountChanges struct {
	Username   *string
	Email      *string
	Password   *string
	GivenName  *string
	FamilyName *string
	Role       *Role
	Active     *bool
}

// ChangesRole reports whether the changes move target to a different role.
func (c AccountChanges) ChangesRole(target *Account) bool {
	return c.Role != nil && *c.Role != target.Role
}

// IsEmpty reports whether no field is set.
func (c AccountChanges) IsEmpty() bool {
	return c.Username == nil && c.Email == nil && c.Password == nil &&
		c.GivenName == nil && c.FamilyName == nil && c.Role == nil && c.Active == nil
}

// Apply writes the non-password changes onto a. The password is handled by
// the caller because it must go through the hasher.
func (c AccountChanges) Apply(a *Account) {
	if c.Username != nil {
		a.Username = *c.Username
	}
	if c.Email != nil {
		a.Email = *c.Email
	}
	if c.GivenName != nil {
		a.GivenName = *c.GivenName
	}
	if c.FamilyName != nil {
		a.FamilyName = *c.FamilyName
	}
	if c.Role != nil {
		a.Role = *c.Role
	}
	if c.Active != nil {
		a.Active = *c.Active
	}
}

// AccountStats is the aggregate view available to the administrator.
type AccountStats struct {
	Total      int `json:"total"`
	Admin      int `json:"admin"`
	Supervisor int `json:"supervisor"`
	Agent      int `json:"agent"`
	Active     int `json:"active"`
	Inactive   int `json:"inactive"`
}

// StatsOf tallies accounts by role and activity.
func StatsOf(accounts []*Account) AccountStats {
	var s AccountStats
	for _, a := range accounts {
		s.Total++
		switch a.Role {
		case RoleAdmin:
			s.Admin++
		case RoleSupervisor:
			s.Supervisor++
		case RoleAgent:
			s.Agent++
		}
		if a.Active {
			s.Active++
		} else {
			s.Inactive++
		}
	}
	return s
}
