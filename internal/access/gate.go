// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package access decides whether a session principal may reach a route.
//
// Every check denies by default: a nil principal is anonymous, and a
// resource that cannot be found is treated as owned by nobody.
package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Check names used in denial metrics and logs.
const (
	CheckAuthenticated = "authenticated"
	CheckOwnsOrAdmin   = "owns_or_admin"
	CheckRole          = "role"
)

// OwnerLookup returns the owner of the resource identified by id. It must
// return an error wrapping auth.ErrNotFound when no such resource exists.
type OwnerLookup func(ctx context.Context, id ulid.ULID) (ulid.ULID, error)

// Gate evaluates access predicates against an explicitly passed principal.
type Gate struct {
	logger *slog.Logger
}

// NewGate creates a Gate with a no-op logger.
func NewGate() *Gate {
	return &Gate{logger: slog.New(slog.DiscardHandler)}
}

// NewGateWithLogger creates a Gate that logs denials at debug level.
func NewGateWithLogger(logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Gate{logger: logger}, nil
}

// IsAuthenticated reports whether p is a restored session principal.
func (g *Gate) IsAuthenticated(p *auth.Principal) bool {
	if p == nil {
		g.deny(CheckAuthenticated, "anonymous")
		return false
	}
	return true
}

// OwnsOrAdmin reports whether p owns a resource with the given owner, or is
// an ADMIN. A zero owner ID is never matched.
func (g *Gate) OwnsOrAdmin(p *auth.Principal, ownerID ulid.ULID) bool {
	if p == nil {
		g.deny(CheckOwnsOrAdmin, "anonymous")
		return false
	}
	if p.Role == auth.RoleAdmin {
		return true
	}
	if ownerID.IsZero() || ownerID != p.UserID {
		g.deny(CheckOwnsOrAdmin, "not_owner")
		return false
	}
	return true
}

// HasRole reports whether p holds exactly role. ADMIN does not imply GUEST.
func (g *Gate) HasRole(p *auth.Principal, role auth.Role) bool {
	if p == nil {
		g.deny(CheckRole, "anonymous")
		return false
	}
	if p.Role != role {
		g.deny(CheckRole, "wrong_role")
		return false
	}
	return true
}

// CheckOwnership resolves the owner of resourceID and applies OwnsOrAdmin.
//
// Anonymous principals are denied without calling lookup. A resource that
// does not exist is denied. Only lookup failures other than not-found are
// returned as errors.
func (g *Gate) CheckOwnership(ctx context.Context, p *auth.Principal, lookup OwnerLookup, resourceID ulid.ULID) (bool, error) {
	if p == nil {
		g.deny(CheckOwnsOrAdmin, "anonymous")
		return false, nil
	}
	if lookup == nil {
		return false, oops.Code("ACCESS_CHECK_FAILED").Errorf("owner lookup is required")
	}

	owner, err := lookup(ctx, resourceID)
	if errors.Is(err, auth.ErrNotFound) {
		g.deny(CheckOwnsOrAdmin, "not_found")
		return false, nil
	}
	if err != nil {
		return false, oops.Code("ACCESS_CHECK_FAILED").
			With("resource_id", resourceID.String()).
			With("user_id", p.UserID.String()).
			Wrap(err)
	}
	return g.OwnsOrAdmin(p, owner), nil
}

func (g *Gate) deny(check, reason string) {
	RecordDenial(check, reason)
	g.logger.Debug("access denied", "check", check, "reason", reason)
}
