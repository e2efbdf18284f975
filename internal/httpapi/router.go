// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/observability"
)

// routePrefixes are the mount points of the auth routes.
var routePrefixes = []string{"/api/auth", "/auth"}

// Config wires the API handler.
type Config struct {
	Auth   AuthService
	Cookie *auth.SessionCookie

	// Metrics may be nil.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// AllowedOrigins are glob patterns for CORS.
	AllowedOrigins []string
}

// NewHandler builds the API with its middleware chain.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if cfg.Cookie == nil {
		return nil, oops.Errorf("session cookie is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	origins, err := newOriginMatcher(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	h := &Handler{auth: cfg.Auth, cookie: cfg.Cookie, metrics: cfg.Metrics}

	mux := http.NewServeMux()
	for _, prefix := range routePrefixes {
		handle(mux, "POST "+prefix+"/register", h.register)
		handle(mux, "POST "+prefix+"/login", h.login)
		handle(mux, "POST "+prefix+"/logout", h.logout)
		handle(mux, "GET "+prefix+"/me", h.me)
	}
	mux.HandleFunc("/", h.notFound)

	return chain(mux,
		recoverPanics(cfg.Logger),
		requestID(cfg.Logger),
		tracing(),
		logRequests(),
		instrument(cfg.Metrics),
		cors(origins),
	), nil
}

// handle registers fn and records pattern as the request's route.
func handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		infoFrom(r.Context()).route = pattern
		fn(w, r)
	})
}
