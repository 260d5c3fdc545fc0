// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads gatehouse settings from built-in defaults, a YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/xdg"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete gatehouse configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" json:"server,omitempty"`
	Metrics   MetricsConfig   `koanf:"metrics" json:"metrics,omitempty"`
	Log       LogConfig       `koanf:"log" json:"log,omitempty"`
	Store     StoreConfig     `koanf:"store" json:"store,omitempty"`
	Database  DatabaseConfig  `koanf:"database" json:"database,omitempty"`
	Providers ProvidersConfig `koanf:"providers" json:"providers,omitempty"`
}

// ServerConfig configures the HTTP listener and session cookies.
type ServerConfig struct {
	Addr         string        `koanf:"addr" json:"addr,omitempty" jsonschema:"description=HTTP listen address"`
	BaseURL      string        `koanf:"base_url" json:"base_url,omitempty" jsonschema:"format=uri,description=Public URL used to build provider callbacks"`
	CookieName   string        `koanf:"cookie_name" json:"cookie_name,omitempty"`
	CookieSecure bool          `koanf:"cookie_secure" json:"cookie_secure,omitempty"`
	SessionTTL   time.Duration `koanf:"session_ttl" json:"session_ttl,omitempty" jsonschema:"type=string,description=Session lifetime such as 24h"`
	SessionSweep time.Duration `koanf:"session_sweep" json:"session_sweep,omitempty" jsonschema:"type=string,description=Expired session sweep interval (0 disables)"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects the repository implementation.
type StoreConfig struct {
	Driver string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url" json:"url,omitempty"`
}

// ProvidersConfig configures the external identity providers.
type ProvidersConfig struct {
	Timeout time.Duration  `koanf:"timeout" json:"timeout,omitempty" jsonschema:"type=string,description=Upper bound on one provider code exchange"`
	Slack   ProviderConfig `koanf:"slack" json:"slack,omitempty"`
	Google  ProviderConfig `koanf:"google" json:"google,omitempty"`
	Outlook ProviderConfig `koanf:"outlook" json:"outlook,omitempty"`
}

// ProviderConfig configures one provider. Endpoint fields left empty use the
// provider's built-in values.
type ProviderConfig struct {
	Enabled      bool     `koanf:"enabled" json:"enabled,omitempty"`
	ClientID     string   `koanf:"client_id" json:"client_id,omitempty"`
	ClientSecret string   `koanf:"client_secret" json:"client_secret,omitempty"`
	IssuerURL    string   `koanf:"issuer_url" json:"issuer_url,omitempty"`
	AuthURL      string   `koanf:"auth_url" json:"auth_url,omitempty"`
	TokenURL     string   `koanf:"token_url" json:"token_url,omitempty"`
	UserInfoURL  string   `koanf:"user_info_url" json:"user_info_url,omitempty"`
	RedirectURL  string   `koanf:"redirect_url" json:"redirect_url,omitempty"`
	Scopes       []string `koanf:"scopes" json:"scopes,omitempty"`
	RefreshName  bool     `koanf:"refresh_name" json:"refresh_name,omitempty" jsonschema:"description=Overwrite the stored name on every login"`
}

// Provider returns the settings for p.
func (c ProvidersConfig) Provider(p auth.Provider) ProviderConfig {
	switch p {
	case auth.ProviderSlack:
		return c.Slack
	case auth.ProviderGoogle:
		return c.Google
	case auth.ProviderOutlook:
		return c.Outlook
	default:
		return ProviderConfig{}
	}
}

// Enabled returns the enabled providers in a stable order.
func (c ProvidersConfig) Enabled() []auth.Provider {
	var out []auth.Provider
	for _, p := range auth.Providers() {
		if c.Provider(p).Enabled {
			out = append(out, p)
		}
	}
	return out
}

// CallbackURL returns the redirect URL for p, derived from the base URL
// unless configured explicitly.
func (c *Config) CallbackURL(p auth.Provider) string {
	if u := c.Providers.Provider(p).RedirectURL; u != "" {
		return u
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/auth/" + string(p) + "/callback"
}

// defaults are applied before any file or flag.
var defaults = map[string]any{
	"server.addr":                    ":8080",
	"server.base_url":                "http://localhost:8080",
	"server.cookie_name":             "gatehouse_session",
	"server.cookie_secure":           false,
	"server.session_ttl":             "24h",
	"server.session_sweep":           "10m",
	"metrics.addr":                   "127.0.0.1:9100",
	"log.format":                     "json",
	"log.level":                      "info",
	"store.driver":                   DriverPostgres,
	"providers.timeout":              "10s",
	"providers.slack.refresh_name":   true,
	"providers.google.refresh_name":  false,
	"providers.outlook.refresh_name": false,
}

// Flags returns the flag set Load understands. Flag names are config keys.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("config", pflag.ContinueOnError)
	flags.String("server.addr", ":8080", "HTTP listen address")
	flags.String("server.base_url", "http://localhost:8080", "public base URL")
	flags.String("metrics.addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	flags.String("log.format", "json", "log format (json or text)")
	flags.String("log.level", "info", "log level (debug, info, warn, error)")
	flags.String("store.driver", DriverPostgres, "storage driver (postgres or memory)")
	flags.String("database.url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	return flags
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is the YAML file to read. Empty means the XDG default, which may
	// be absent.
	Path string
	// Flags are applied last. Only flags the user set override lower layers.
	Flags *pflag.FlagSet
	// Getenv reads the environment. Defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds and validates a Config.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	path, required := opts.Path, true
	if path == "" {
		required = false
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			path = ""
		}
	}
	if path != "" {
		err := k.Load(file.Provider(path), yaml.Parser())
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist) && !required:
		case errors.Is(err, fs.ErrNotExist):
			return nil, oops.Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
		default:
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.Provider(opts.Flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("operation", "load flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = opts.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr", "server.addr is required")
	}
	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("server.base_url", "server.base_url must be an absolute URL, got %q", c.Server.BaseURL)
	}
	if c.Server.CookieName == "" {
		return invalid("server.cookie_name", "server.cookie_name is required")
	}
	if c.Server.SessionTTL <= 0 {
		return invalid("server.session_ttl", "server.session_ttl must be positive")
	}
	if c.Server.SessionSweep < 0 {
		return invalid("server.session_sweep", "server.session_sweep cannot be negative")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "database.url or DATABASE_URL is required for the postgres driver")
		}
	default:
		return invalid("store.driver", "store.driver must be 'postgres' or 'memory', got %q", c.Store.Driver)
	}
	if c.Providers.Timeout <= 0 {
		return invalid("providers.timeout", "providers.timeout must be positive")
	}
	for _, p := range c.Providers.Enabled() {
		pc := c.Providers.Provider(p)
		if pc.ClientID == "" || pc.ClientSecret == "" {
			return invalid("providers."+string(p), "providers.%s needs client_id and client_secret when enabled", p)
		}
	}
	return nil
}
