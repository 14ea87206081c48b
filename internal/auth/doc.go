// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

/*
Package auth is the authentication gate for realtime connections and the
HTTP API.

An Authenticator turns an opaque credential into a verified
models.Subscriber (user id, organization id, role) or rejects it. The
realtime gateway calls it exactly once per connection attempt, before the
connection is registered, so unauthenticated connections never receive
events.

Key Components:

  - JWTManager: HS256 token issue and validation
  - JWTAuthenticator: Authenticator backed by JWTManager
  - CredentialFromRequest: token extraction from header, cookie or query
  - RequireAuth: chi-compatible middleware storing the subscriber in the context

Usage Example:

	manager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	authn := auth.NewJWTAuthenticator(manager)

	sub, err := authn.Authenticate(ctx, auth.CredentialFromRequest(r))
	if errors.Is(err, auth.ErrExpiredCredentials) {
	    // ask the client to refresh
	}

Errors:

  - ErrNoCredentials: nothing to authenticate
  - ErrInvalidCredentials: bad signature, malformed or wrong algorithm
  - ErrExpiredCredentials: token past its expiry
  - ErrMissingOrganization: valid token without an organization claim
*/
package auth
