// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package sso

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/samber/oops"
	"golang.org/x/oauth2"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// maxUserInfoBytes caps the userinfo response body.
const maxUserInfoBytes = 1 << 20

// OAuth2Provider authenticates against a plain OAuth2 provider and reads the
// identity from its userinfo endpoint.
type OAuth2Provider struct {
	name   auth.Provider
	cfg    Config
	oauth2 *oauth2.Config
}

// NewOAuth2Provider creates an OAuth2Provider.
func NewOAuth2Provider(name auth.Provider, cfg Config) (*OAuth2Provider, error) {
	if cfg.UserInfoURL == "" {
		return nil, oops.Code("SSO_CONFIG_INVALID").
			With("provider", string(name)).
			Errorf("user_info_url is required")
	}
	return &OAuth2Provider{
		name: name,
		cfg:  cfg,
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
	}, nil
}

// Name implements Provider.
func (p *OAuth2Provider) Name() auth.Provider { return p.name }

// AuthCodeURL implements Provider.
func (p *OAuth2Provider) AuthCodeURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// Exchange implements Provider.
func (p *OAuth2Provider) Exchange(ctx context.Context, code string) (*auth.Assertion, error) {
	if code == "" {
		return nil, oops.Code("SSO_MISSING_CODE").With("provider", string(p.name)).Errorf("missing authorization code")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, p.exchangeFailed(err, "exchange code")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, p.exchangeFailed(err, "build userinfo request")
	}
	resp, err := p.oauth2.Client(ctx, token).Do(req)
	if err != nil {
		return nil, p.exchangeFailed(err, "fetch userinfo")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, p.exchangeFailed(err, "read userinfo")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, oops.Code("SSO_EXCHANGE_FAILED").
			With("provider", string(p.name)).
			With("status", resp.StatusCode).
			Errorf("userinfo request failed")
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, p.exchangeFailed(err, "decode userinfo")
	}
	// Slack reports API errors in-band with a 200.
	if ok, present := doc["ok"].(bool); present && !ok {
		return nil, oops.Code("SSO_EXCHANGE_FAILED").
			With("provider", string(p.name)).
			With("api_error", lookup(doc, "error")).
			Errorf("userinfo request rejected")
	}

	id := lookup(doc, p.cfg.IDField)
	if id == "" {
		return nil, oops.Code("SSO_EXCHANGE_FAILED").
			With("provider", string(p.name)).
			With("field", p.cfg.IDField).
			Errorf("userinfo has no user ID")
	}
	return &auth.Assertion{
		Provider:   p.name,
		ExternalID: id,
		Name:       lookup(doc, p.cfg.NameField),
	}, nil
}

func (p *OAuth2Provider) exchangeFailed(err error, operation string) error {
	return oops.Code("SSO_EXCHANGE_FAILED").
		With("provider", string(p.name)).
		With("operation", operation).
		Wrap(err)
}
