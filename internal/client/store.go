// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package client keeps a storefront user's session state in memory and
// mirrors it against the auth API.
//
// Actions never return errors. Register, Login and Logout report a Result;
// FetchUser reports a FetchResult. Local state is guarded by a mutex, but
// actions are not serialized: two overlapping logins may leave either
// outcome in place. Subscribers are called outside the lock, so with
// overlapping actions they may see snapshots out of order; State is the
// authority on the final state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Fallback messages used when the server gives none.
const (
	MsgRegisterFailed = "registration failed"
	MsgLoginFailed    = "login failed"
	MsgLogoutFailed   = "logout failed"
)

const apiPrefix = "/api/auth"

// User is the account as the API returns it.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	City      *string   `json:"city,omitempty"`
	ZipCode   *string   `json:"zipCode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is a snapshot of the client session.
type State struct {
	User            *User
	IsAuthenticated bool
	Loading         bool
}

// Result reports a register, login or logout action.
type Result struct {
	Success bool
	Message string
}

// FetchStatus tags a FetchResult.
type FetchStatus int

// Fetch outcomes.
const (
	// StatusAnonymous means the server reported no valid session.
	StatusAnonymous FetchStatus = iota
	// StatusAuthenticated means the session is valid and User is set.
	StatusAuthenticated
	// StatusFailed means the server could not be asked; Err is set.
	StatusFailed
)

func (s FetchStatus) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusFailed:
		return "failed"
	default:
		return "anonymous"
	}
}

// FetchResult is the outcome of FetchUser. Local state is anonymous after
// every outcome except StatusAuthenticated.
type FetchResult struct {
	Status FetchStatus
	User   *User
	Err    error
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// Store holds the session state for one user agent.
type Store struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets the HTTP client. The Store keeps a shallow copy, so
// a jar added for the session cookie never reaches c.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			cp := *c
			s.http = &cp
		}
	}
}

// WithLogger sets the logger for failed actions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store for the API at baseURL.
func New(baseURL string, opts ...Option) (*Store, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, oops.Code("CLIENT_BASE_URL_INVALID").With("base_url", baseURL).Wrap(err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("CLIENT_BASE_URL_INVALID").With("base_url", baseURL).Errorf("base url must be absolute")
	}

	s := &Store{
		base:   base,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, oops.Code("CLIENT_INIT_FAILED").Wrap(err)
		}
		s.http.Jar = jar
	}
	return s, nil
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Subscribe calls fn with every new state until the returned function is
// called. fn runs on the goroutine that changed the state.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Register creates an account and signs in.
func (s *Store) Register(ctx context.Context, in RegisterInput) Result {
	return s.authenticate(ctx, "/register", in, MsgRegisterFailed)
}

// Login signs in with email and password.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}
	return s.authenticate(ctx, "/login", body, MsgLoginFailed)
}

// Logout ends the session. Local state is cleared even when the request
// fails.
func (s *Store) Logout(ctx context.Context) Result {
	resp, err := s.do(ctx, http.MethodPost, "/logout", nil)
	s.update(func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
	})
	if err != nil {
		s.logger.WarnContext(ctx, "logout request failed", "error", err)
		return Result{Success: false, Message: MsgLogoutFailed}
	}
	if resp.status != http.StatusOK || !resp.body.Success {
		return Result{Success: false, Message: resp.message(MsgLogoutFailed)}
	}
	return Result{Success: true, Message: resp.body.Message}
}

// FetchUser asks the server who is signed in.
func (s *Store) FetchUser(ctx context.Context) FetchResult {
	resp, err := s.do(ctx, http.MethodGet, "/me", nil)

	switch {
	case err == nil && resp.status == http.StatusOK && resp.body.Success && resp.body.User != nil:
		user := *resp.body.User
		s.update(func(st *State) {
			st.User = &user
			st.IsAuthenticated = true
		})
		return FetchResult{Status: StatusAuthenticated, User: cloneUser(&user)}
	case err == nil && (resp.status == http.StatusUnauthorized || resp.status == http.StatusNotFound):
		s.demote()
		return FetchResult{Status: StatusAnonymous}
	case err == nil:
		err = oops.Code("CLIENT_FETCH_FAILED").
			With("status", resp.status).
			Errorf("unexpected response: %s", resp.message(http.StatusText(resp.status)))
	}

	s.demote()
	s.logger.DebugContext(ctx, "fetch user failed", "error", err)
	return FetchResult{Status: StatusFailed, Err: err}
}

func (s *Store) authenticate(ctx context.Context, path string, body any, fallback string) Result {
	s.update(func(st *State) { st.Loading = true })
	defer s.update(func(st *State) { st.Loading = false })

	resp, err := s.do(ctx, http.MethodPost, path, body)
	if err != nil {
		s.logger.WarnContext(ctx, "auth request failed", "path", path, "error", err)
		return Result{Success: false, Message: fallback}
	}
	if resp.status != http.StatusOK || !resp.body.Success || resp.body.User == nil {
		return Result{Success: false, Message: resp.message(fallback)}
	}

	user := *resp.body.User
	s.update(func(st *State) {
		st.User = &user
		st.IsAuthenticated = true
	})
	return Result{Success: true}
}

func (s *Store) demote() {
	s.update(func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
	})
}

// update applies fn under the lock and notifies subscribers outside it.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.snapshot()
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (s *Store) snapshot() State {
	st := s.state
	st.User = cloneUser(st.User)
	return st
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

type apiBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type apiResponse struct {
	status int
	body   apiBody
}

// message returns the server's message, or fallback.
func (r *apiResponse) message(fallback string) string {
	if r.body.Message != "" {
		return r.body.Message
	}
	return fallback
}

// do sends a request. Non-2xx statuses are not errors; a body that is not
// JSON leaves apiBody zero.
func (s *Store) do(ctx context.Context, method, path string, payload any) (*apiResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, oops.Code("CLIENT_ENCODE_FAILED").Wrap(err)
		}
		body = bytes.NewReader(raw)
	}

	endpoint := s.base.JoinPath(apiPrefix, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, oops.Code("CLIENT_REQUEST_FAILED").Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, oops.Code("CLIENT_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	out := &apiResponse{status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, oops.Code("CLIENT_READ_FAILED").With("path", path).Wrap(err)
	}
	_ = json.Unmarshal(raw, &out.body) //nolint:errcheck // non-JSON bodies fall back to defaults
	return out, nil
}
