// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package auth provides authentication primitives for the storefront.
//
// # Primitives
//
//   - Hasher - bcrypt or argon2id password digests with constant-time verify
//   - TokenService - HS256 session tokens valid for TokenTTL
//   - SessionCookie - carries the token in the auth_token cookie
//
// # Services
//
// Service coordinates registration, login and session lookup against a
// UserRepository. It is created with NewService, which validates its
// dependencies.
//
// # Errors
//
// Every error a Service returns carries an oops code. KindOf maps codes to
// a Kind so the transport layer can choose a status without inspecting
// messages. Tokens are stateless: there is no revocation, and a token stays
// valid until it expires or the signing secret changes.
package auth
