package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMongo, cfg.Store.Driver)
	assert.Equal(t, 8*time.Second, cfg.Store.Timeout)
	assert.Equal(t, CacheMemory, cfg.Cache.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, AuditSinkStore, cfg.Audit.Sink)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, "admin@crm.com", cfg.Admin.Email)
	assert.Equal(t, domain.RoleAdmin, cfg.Admin.Input().Role)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORE_DRIVER":   "sqlite",
		"SQLITE_PATH":    ":memory:",
		"CACHE_DRIVER":   "none",
		"AUTH_CACHE_TTL": "90s",
		"STORE_TIMEOUT":  "2s",
		"LOGIN_RATE":     "0.5",
		"AUDIT_SINK":     "log",
	}))
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, ":memory:", cfg.Store.SQLite.Path)
	assert.Equal(t, CacheNone, cfg.Cache.Driver)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.InDelta(t, 0.5, cfg.Auth.LoginRate, 1e-9)
	assert.Equal(t, AuditSinkLog, cfg.Audit.Sink)
}

func TestLoadFrom_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":              {"STORE_DRIVER": "mysql"},
		"unknown cache":              {"CACHE_DRIVER": "memcached"},
		"production without secret":  {"ENV": "production"},
		"malformed duration":         {"STORE_TIMEOUT": "soon"},
		"non positive audit workers": {"AUDIT_WORKERS": "0"},
		"unknown audit sink":         {"AUDIT_SINK": "kafka"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[accounts]]
username    = "marie"
email       = "marie@crm.com"
password    = "marie123"
given_name  = "Marie"
family_name = "Durand"
role        = "superviseur"

[[accounts]]
username    = "paul"
email       = "paul@crm.com"
password    = "paul123"
given_name  = "Paul"
family_name = "Martin"
role        = "agent"
`), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	inputs := seed.Inputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, domain.RoleSupervisor, inputs[0].Role)
	assert.Equal(t, "Durand", inputs[0].FamilyName)
	assert.Equal(t, domain.RoleAgent, inputs[1].Role)
}

func TestLoadSeed_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown role": "[[accounts]]\nusername = \"x\"\npassword = \"y\"\nrole = \"owner\"\n",
		"missing role": "[[accounts]]\nusername = \"x\"\npassword = \"y\"\n",
		"unknown key":  "[[accounts]]\nusername = \"x\"\npassword = \"y\"\nrole = \"agent\"\nnickname = \"z\"\n",
		"no password":  "[[accounts]]\nusername = \"x\"\nrole = \"agent\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seed.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadSeed(path)
			assert.Error(t, err)
		})
	}
}
