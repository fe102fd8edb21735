package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/assurminut/crm-identity/internal/core/domain"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// SeedFile lists the accounts loaded into an empty store.
//
//	[[accounts]]
//	username    = "marie"
//	email       = "marie@crm.com"
//	password    = "change-me"
//	given_name  = "Marie"
//	family_name = "Durand"
//	role        = "supervisor"
type SeedFile struct {
	Accounts []SeedAccount `toml:"accounts"`
}

type SeedAccount struct {
	Username   string      `toml:"username"`
	Email      string      `toml:"email"`
	Password   string      `toml:"password"`
	GivenName  string      `toml:"given_name"`
	FamilyName string      `toml:"family_name"`
	Role       domain.Role `toml:"role"`
}

// LoadSeed parses the seed file at path. Unknown keys are rejected so typos
// do not silently drop fields.
func LoadSeed(path string) (*SeedFile, error) {
	var f SeedFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("seed file %s: unknown keys %v", path, undecoded)
	}
	for i, a := range f.Accounts {
		if a.Username == "" || a.Password == "" {
			return nil, fmt.Errorf("seed file %s: account %d needs a username and a password", path, i+1)
		}
		if !a.Role.Valid() {
			return nil, fmt.Errorf("seed file %s: account %q has no role", path, a.Username)
		}
	}
	return &f, nil
}

// Inputs converts the seed accounts into creation requests.
func (f *SeedFile) Inputs() []ports.CreateAccountInput {
	inputs := make([]ports.CreateAccountInput, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		inputs = append(inputs, ports.CreateAccountInput{
			Username:   a.Username,
			Email:      a.Email,
			Password:   a.Password,
			GivenName:  a.GivenName,
			FamilyName: a.FamilyName,
			Role:       a.Role,
		})
	}
	return inputs
}
