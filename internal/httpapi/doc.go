// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package httpapi serves the storefront JSON auth API.
//
// Routes are mounted under both /api/auth and /auth:
//
//	POST /api/auth/register  {email, password, name, phone?} -> {success, user, token}
//	POST /api/auth/login     {email, password}                -> {success, user, token}
//	POST /api/auth/logout                                     -> {success, message}
//	GET  /api/auth/me        (auth_token cookie)              -> {success, user}
//
// Failures are {success: false, message}. This package is the only place
// where auth error kinds become HTTP status codes.
package httpapi
