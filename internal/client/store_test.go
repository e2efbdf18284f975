// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package client_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/auth/memstore"
	"github.com/fashionhall/storefront/internal/client"
	"github.com/fashionhall/storefront/internal/httpapi"
)

type backend struct {
	server *httptest.Server
	users  *memstore.UserRepository

	mu  sync.Mutex
	now time.Time
}

func (b *backend) advance(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = b.now.Add(d)
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{users: memstore.NewUserRepository(), now: time.Now()}

	hasher, err := auth.NewHasher(auth.HashBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService([]byte("client-test-secret"), auth.WithClock(func() time.Time {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.now
	}))
	require.NoError(t, err)
	svc, err := auth.NewService(b.users, hasher, tokens, auth.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	handler, err := httpapi.NewHandler(httpapi.Config{
		Auth:   svc,
		Cookie: auth.NewSessionCookie(false),
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	b.server = httptest.NewServer(handler)
	t.Cleanup(b.server.Close)
	return b
}

func newStore(t *testing.T, baseURL string) *client.Store {
	t.Helper()
	s, err := client.New(baseURL, client.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	return s
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "/relative", "://bad"} {
		_, err := client.New(raw)
		assert.Error(t, err, raw)
	}
}

func TestNew_DoesNotModifyCallerClient(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	shared := &http.Client{Timeout: 5 * time.Second}

	s, err := client.New(b.server.URL,
		client.WithHTTPClient(shared),
		client.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	assert.Nil(t, shared.Jar, "the caller's client must not receive the session jar")

	res := s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, client.StatusAuthenticated, s.FetchUser(ctx).Status)

	resp, err := shared.Get(b.server.URL + "/api/auth/me")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "the shared client must not carry the session")
}

func TestStore_RegisterFetchLogout(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	s := newStore(t, b.server.URL)

	assert.Equal(t, client.State{}, s.State())

	res := s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A", Phone: "0912"})
	require.True(t, res.Success, res.Message)

	st := s.State()
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.Loading)
	require.NotNil(t, st.User)
	assert.Equal(t, int64(1), st.User.ID)
	require.NotNil(t, st.User.Phone)
	assert.Equal(t, "0912", *st.User.Phone)

	fetched := s.FetchUser(ctx)
	assert.Equal(t, client.StatusAuthenticated, fetched.Status)
	require.NotNil(t, fetched.User)
	assert.Equal(t, "a@b.com", fetched.User.Email)
	assert.NoError(t, fetched.Err)

	out := s.Logout(ctx)
	assert.True(t, out.Success)
	assert.Equal(t, "logged out", out.Message)
	assert.Equal(t, client.State{}, s.State())

	again := s.FetchUser(ctx)
	assert.Equal(t, client.StatusAnonymous, again.Status)
	assert.Nil(t, again.User)
	assert.NoError(t, again.Err)
}

func TestStore_LoginFailures(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	s := newStore(t, b.server.URL)
	require.True(t, s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"}).Success)
	s.Logout(ctx)

	tests := []struct {
		name     string
		email    string
		password string
		wantMsg  string
	}{
		{"wrong password", "a@b.com", "nope-nope", "invalid credentials"},
		{"unknown email", "x@b.com", "nope-nope", "invalid credentials"},
		{"missing password", "a@b.com", "", "missing required field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Login(ctx, tt.email, tt.password)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantMsg, res.Message)
			st := s.State()
			assert.False(t, st.IsAuthenticated)
			assert.False(t, st.Loading)
		})
	}

	res := s.Login(ctx, "a@b.com", "secret1")
	assert.True(t, res.Success)
	assert.True(t, s.State().IsAuthenticated)
}

func TestStore_RegisterConflictMessage(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	first := newStore(t, b.server.URL)
	second := newStore(t, b.server.URL)

	in := client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"}
	require.True(t, first.Register(ctx, in).Success)

	res := second.Register(ctx, in)
	assert.False(t, res.Success)
	assert.Equal(t, "email already registered", res.Message)
	assert.False(t, second.State().IsAuthenticated)
}

func TestStore_ExpiredSessionDemotes(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	s := newStore(t, b.server.URL)
	require.True(t, s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"}).Success)

	b.advance(auth.TokenTTL + time.Second)

	res := s.FetchUser(ctx)
	assert.Equal(t, client.StatusAnonymous, res.Status)
	assert.False(t, s.State().IsAuthenticated)
	assert.Nil(t, s.State().User)
}

func TestStore_DeletedUserDemotes(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	s := newStore(t, b.server.URL)
	require.True(t, s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"}).Success)

	require.NoError(t, b.users.Delete(ctx, 1))

	res := s.FetchUser(ctx)
	assert.Equal(t, client.StatusAnonymous, res.Status)
	assert.False(t, s.State().IsAuthenticated)
}

func TestStore_ServerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("plain text 500 uses fallbacks", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)
		s := newStore(t, srv.URL)

		assert.Equal(t, client.Result{Message: client.MsgRegisterFailed}, s.Register(ctx, client.RegisterInput{}))
		assert.Equal(t, client.Result{Message: client.MsgLoginFailed}, s.Login(ctx, "a@b.com", "secret1"))
		assert.Equal(t, client.Result{Message: client.MsgLogoutFailed}, s.Logout(ctx))

		res := s.FetchUser(ctx)
		assert.Equal(t, client.StatusFailed, res.Status)
		assert.Error(t, res.Err)
	})

	t.Run("JSON error message is passed through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"message":"registration failed"}`))
		}))
		t.Cleanup(srv.Close)
		s := newStore(t, srv.URL)

		res := s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"})
		assert.Equal(t, "registration failed", res.Message)
	})

	t.Run("unreachable server", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		s := newStore(t, url)

		assert.Equal(t, client.MsgLoginFailed, s.Login(ctx, "a@b.com", "secret1").Message)
		assert.False(t, s.State().Loading)

		res := s.FetchUser(ctx)
		assert.Equal(t, client.StatusFailed, res.Status)
		assert.Error(t, res.Err)
	})
}

func TestStore_LogoutClearsLocalStateOnFailure(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	s := newStore(t, b.server.URL)
	require.True(t, s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"}).Success)

	b.server.Close()

	res := s.Logout(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, client.MsgLogoutFailed, res.Message)
	assert.Equal(t, client.State{}, s.State())
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	s := newStore(t, b.server.URL)

	var (
		mu     sync.Mutex
		states []client.State
	)
	unsubscribe := s.Subscribe(func(st client.State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st)
	})

	require.True(t, s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"}).Success)

	mu.Lock()
	require.Len(t, states, 3)
	assert.True(t, states[0].Loading)
	assert.False(t, states[0].IsAuthenticated)
	assert.True(t, states[1].Loading)
	assert.True(t, states[1].IsAuthenticated)
	assert.False(t, states[2].Loading)
	assert.True(t, states[2].IsAuthenticated)
	mu.Unlock()

	unsubscribe()
	unsubscribe()
	s.Logout(ctx)

	mu.Lock()
	assert.Len(t, states, 3, "no notifications after unsubscribe")
	mu.Unlock()
}

func TestStore_StateIsACopy(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	s := newStore(t, b.server.URL)
	require.True(t, s.Register(ctx, client.RegisterInput{Email: "a@b.com", Password: "secret1", Name: "A"}).Success)

	st := s.State()
	st.User.Name = "mutated"
	assert.Equal(t, "A", s.State().User.Name)
}
