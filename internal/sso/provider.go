// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package sso turns an OAuth2 or OpenID Connect authorization code into an
// auth.Assertion the identity resolver can consume.
package sso

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Kind selects the protocol a provider speaks.
type Kind string

// Supported kinds.
const (
	KindOAuth2 Kind = "oauth2"
	KindOIDC   Kind = "oidc"
)

// Provider is one external identity provider.
type Provider interface {
	// Name is the provider the assertions are issued for.
	Name() auth.Provider

	// AuthCodeURL is where the browser is sent to sign in.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a verified assertion.
	Exchange(ctx context.Context, code string) (*auth.Assertion, error)
}

// Config describes one provider. Empty fields are filled from Preset.
type Config struct {
	Kind         Kind
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// OIDC discovery.
	IssuerURL string
	// DiscoveryIssuer is the issuer the discovery document reports when it
	// differs from IssuerURL (multi-tenant endpoints).
	DiscoveryIssuer string
	SkipIssuerCheck bool

	// Plain OAuth2 endpoints.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// Dotted paths into the userinfo document or ID token claims.
	IDField   string
	NameField string
}

// Preset returns the built-in settings for a known provider.
func Preset(p auth.Provider) (Config, bool) {
	switch p {
	case auth.ProviderSlack:
		return Config{
			Kind:        KindOAuth2,
			AuthURL:     "https://slack.com/oauth/authorize",
			TokenURL:    "https://slack.com/api/oauth.access",
			UserInfoURL: "https://slack.com/api/users.identity",
			Scopes:      []string{"identity.basic"},
			IDField:     "user.id",
			NameField:   "user.name",
		}, true
	case auth.ProviderGoogle:
		return Config{
			Kind:      KindOIDC,
			IssuerURL: "https://accounts.google.com",
			Scopes:    []string{"openid", "profile", "email"},
			IDField:   "sub",
			NameField: "name",
		}, true
	case auth.ProviderOutlook:
		return Config{
			Kind:            KindOIDC,
			IssuerURL:       "https://login.microsoftonline.com/common/v2.0",
			DiscoveryIssuer: "https://login.microsoftonline.com/{tenantid}/v2.0",
			SkipIssuerCheck: true,
			Scopes:          []string{"openid", "profile", "offline_access"},
			IDField:         "sub",
			NameField:       "name",
		}, true
	default:
		return Config{}, false
	}
}

// WithDefaults returns c with every empty field taken from d.
func (c Config) WithDefaults(d Config) Config {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	c.Kind = Kind(pick(string(c.Kind), string(d.Kind)))
	c.ClientID = pick(c.ClientID, d.ClientID)
	c.ClientSecret = pick(c.ClientSecret, d.ClientSecret)
	c.RedirectURL = pick(c.RedirectURL, d.RedirectURL)
	c.IssuerURL = pick(c.IssuerURL, d.IssuerURL)
	c.DiscoveryIssuer = pick(c.DiscoveryIssuer, d.DiscoveryIssuer)
	c.AuthURL = pick(c.AuthURL, d.AuthURL)
	c.TokenURL = pick(c.TokenURL, d.TokenURL)
	c.UserInfoURL = pick(c.UserInfoURL, d.UserInfoURL)
	c.IDField = pick(c.IDField, d.IDField)
	c.NameField = pick(c.NameField, d.NameField)
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), d.Scopes...)
	}
	c.SkipIssuerCheck = c.SkipIssuerCheck || d.SkipIssuerCheck
	return c
}

// Validate checks the fields the configured Kind needs.
func (c Config) Validate() error {
	var missing []string
	need := func(v, key string) {
		if v == "" {
			missing = append(missing, key)
		}
	}
	need(c.ClientID, "client_id")
	need(c.ClientSecret, "client_secret")
	need(c.RedirectURL, "redirect_url")
	need(c.IDField, "id_field")

	switch c.Kind {
	case KindOAuth2:
		need(c.AuthURL, "auth_url")
		need(c.TokenURL, "token_url")
		need(c.UserInfoURL, "user_info_url")
	case KindOIDC:
		need(c.IssuerURL, "issuer_url")
	default:
		return oops.Code("SSO_CONFIG_INVALID").With("kind", string(c.Kind)).Errorf("unsupported provider kind")
	}

	if len(missing) > 0 {
		return oops.Code("SSO_CONFIG_INVALID").
			With("missing", missing).
			Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// New builds the provider described by cfg. OIDC providers perform
// discovery, so ctx bounds that network call.
func New(ctx context.Context, name auth.Provider, cfg Config) (Provider, error) {
	if !name.Valid() {
		return nil, oops.Code("SSO_CONFIG_INVALID").With("provider", string(name)).Errorf("unsupported provider")
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.With("provider", string(name)).Wrap(err)
	}
	if cfg.Kind == KindOIDC {
		return NewOIDCProvider(ctx, name, cfg)
	}
	return NewOAuth2Provider(name, cfg)
}

// Registry holds the enabled providers by name.
type Registry struct {
	providers map[auth.Provider]Provider
}

// NewRegistry creates a Registry. Later providers replace earlier ones with
// the same name.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[auth.Provider]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[auth.Provider(name)]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []auth.Provider {
	names := make([]auth.Provider, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}
