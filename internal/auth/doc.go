// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides the identity and session core of Gatehouse.
//
// # Domain Types
//
// Domain types should be created through their constructors:
//   - NewLocalUser - a password account with a validated username
//   - NewExternalUser - an account linked to exactly one provider external ID
//   - NewWebSession - a server-side session bound to a user ID
//
// # Services
//
// Service types coordinate the domain operations:
//   - Registrar - local signup
//   - IdentityResolver - find-or-create for provider assertions
//   - SessionStore - establish, restore and destroy web sessions
//   - Authenticator - runs a named Strategy and establishes a session on success
//
// Only Registrar and IdentityResolver write User records.
package auth
