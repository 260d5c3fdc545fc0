// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func noEnv(string) string { return "" }

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(LoadOptions{Flags: flagsWith(t, "--store.driver=memory"), Getenv: noEnv})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "gatehouse_session", cfg.Server.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Server.SessionSweep)
	assert.Equal(t, 10*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.True(t, cfg.Providers.Slack.RefreshName, "slack refreshes names by default")
	assert.False(t, cfg.Providers.Google.RefreshName)
	assert.False(t, cfg.Providers.Outlook.RefreshName)
	assert.Empty(t, cfg.Providers.Enabled())
}

func TestLoad_FileOverridesDefaultsAndFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  session_ttl: 2h
log:
  format: text
store:
  driver: memory
providers:
  google:
    enabled: true
    client_id: gid
    client_secret: gsecret
    refresh_name: true
`)

	cfg, err := Load(LoadOptions{Path: path, Flags: flagsWith(t, "--server.addr=:7000"), Getenv: noEnv})
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr, "flag wins over file")
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "text", cfg.Log.Format, "file wins over default")
	assert.Equal(t, "info", cfg.Log.Level, "untouched flag does not override default")
	assert.Equal(t, []auth.Provider{auth.ProviderGoogle}, cfg.Providers.Enabled())
	assert.True(t, cfg.Providers.Google.RefreshName)
	assert.Equal(t, "http://localhost:8080/auth/google/callback", cfg.CallbackURL(auth.ProviderGoogle))
}

func TestLoad_DatabaseURLFromEnvironment(t *testing.T) {
	path := writeFile(t, "store:\n  driver: postgres\n")

	cfg, err := Load(LoadOptions{Path: path, Getenv: func(k string) string {
		if k == "DATABASE_URL" {
			return "postgres://env/db"
		}
		return ""
	}})
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)

	t.Run("file value wins", func(t *testing.T) {
		path := writeFile(t, "database:\n  url: postgres://file/db\n")
		cfg, err := Load(LoadOptions{Path: path, Getenv: func(string) string { return "postgres://env/db" }})
		require.NoError(t, err)
		assert.Equal(t, "postgres://file/db", cfg.Database.URL)
	})

	t.Run("postgres without any url", func(t *testing.T) {
		_, err := Load(LoadOptions{Path: path, Getenv: noEnv})
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "key", "database.url")
	})
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.yaml"), Getenv: noEnv})
	errutil.AssertErrorCode(t, err, "CONFIG_NOT_FOUND")
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(LoadOptions{Path: writeFile(t, "server: [unclosed"), Getenv: noEnv})
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{
				Addr: ":8080", BaseURL: "http://localhost:8080", CookieName: "c",
				SessionTTL: time.Hour, SessionSweep: time.Minute,
			},
			Log:       LogConfig{Format: "json", Level: "info"},
			Store:     StoreConfig{Driver: DriverMemory},
			Providers: ProvidersConfig{Timeout: time.Second},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"relative base url", func(c *Config) { c.Server.BaseURL = "/app" }, "server.base_url"},
		{"zero ttl", func(c *Config) { c.Server.SessionTTL = 0 }, "server.session_ttl"},
		{"negative sweep", func(c *Config) { c.Server.SessionSweep = -time.Second }, "server.session_sweep"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"zero timeout", func(c *Config) { c.Providers.Timeout = 0 }, "providers.timeout"},
		{"enabled provider without secret", func(c *Config) {
			c.Providers.Outlook = ProviderConfig{Enabled: true, ClientID: "id"}
		}, "providers.outlook"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}
}

func TestConfig_CallbackURLExplicit(t *testing.T) {
	cfg := &Config{Server: ServerConfig{BaseURL: "https://gh.example/"}}
	assert.Equal(t, "https://gh.example/auth/slack/callback", cfg.CallbackURL(auth.ProviderSlack))

	cfg.Providers.Slack.RedirectURL = "https://other.example/cb"
	assert.Equal(t, "https://other.example/cb", cfg.CallbackURL(auth.ProviderSlack))
}

func flagsWith(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := Flags()
	require.NoError(t, flags.Parse(args))
	return flags
}
