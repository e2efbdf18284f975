// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"net/http"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "auth_token"

// SessionCookie binds session tokens to HTTP cookies.
type SessionCookie struct {
	secure bool
}

// NewSessionCookie creates a SessionCookie. secure sets the Secure
// attribute and should be true in production.
func NewSessionCookie(secure bool) *SessionCookie {
	return &SessionCookie{secure: secure}
}

// Attach sets the session cookie on the response.
func (c *SessionCookie) Attach(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session token from the request, if any.
func (c *SessionCookie) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear tells the client to delete the session cookie.
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
