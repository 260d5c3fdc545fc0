// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package sso

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/samber/oops"
	"golang.org/x/oauth2"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// OIDCProvider authenticates against an OpenID Connect provider and reads
// the identity from the verified ID token.
type OIDCProvider struct {
	name     auth.Provider
	cfg      Config
	verifier *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

// NewOIDCProvider discovers the issuer and creates an OIDCProvider.
func NewOIDCProvider(ctx context.Context, name auth.Provider, cfg Config) (*OIDCProvider, error) {
	if cfg.DiscoveryIssuer != "" {
		ctx = oidc.InsecureIssuerURLContext(ctx, cfg.DiscoveryIssuer)
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, oops.Code("SSO_DISCOVERY_FAILED").
			With("provider", string(name)).
			With("issuer", cfg.IssuerURL).
			Wrap(err)
	}

	return &OIDCProvider{
		name: name,
		cfg:  cfg,
		verifier: provider.Verifier(&oidc.Config{
			ClientID:        cfg.ClientID,
			SkipIssuerCheck: cfg.SkipIssuerCheck,
		}),
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
		},
	}, nil
}

// Name implements Provider.
func (p *OIDCProvider) Name() auth.Provider { return p.name }

// AuthCodeURL implements Provider.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// Exchange implements Provider.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*auth.Assertion, error) {
	if code == "" {
		return nil, oops.Code("SSO_MISSING_CODE").With("provider", string(p.name)).Errorf("missing authorization code")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, p.exchangeFailed(err, "exchange code")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, oops.Code("SSO_EXCHANGE_FAILED").
			With("provider", string(p.name)).
			Errorf("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, p.exchangeFailed(err, "verify id token")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, p.exchangeFailed(err, "decode claims")
	}

	id := lookup(claims, p.cfg.IDField)
	if id == "" {
		id = idToken.Subject
	}
	if id == "" {
		return nil, oops.Code("SSO_EXCHANGE_FAILED").
			With("provider", string(p.name)).
			Errorf("id token has no subject")
	}
	return &auth.Assertion{
		Provider:   p.name,
		ExternalID: id,
		Name:       lookup(claims, p.cfg.NameField),
	}, nil
}

func (p *OIDCProvider) exchangeFailed(err error, operation string) error {
	return oops.Code("SSO_EXCHANGE_FAILED").
		With("provider", string(p.name)).
		With("operation", operation).
		Wrap(err)
}
