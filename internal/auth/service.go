// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// TokenIssuer issues and verifies session tokens.
type TokenIssuer interface {
	Issue(id Identity) (string, error)
	Verify(token string) (*TokenPayload, error)
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// Service provides registration, login and session lookup.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service.
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}

	s := &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates input, creates the user and issues a session token.
// Checks run in order: presence, email syntax, password length, uniqueness.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, string, error) {
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return nil, "", oops.Code(CodeMissingField).Errorf("email, password and name are required")
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, "", err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, "", err
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, "", oops.Code(CodeEmailTaken).With("email", in.Email).Wrap(ErrEmailTaken)
	case !errors.Is(err, ErrNotFound):
		return nil, "", oops.Code(CodeRegisterFailed).
			With("operation", "check email uniqueness").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", oops.Code(CodeRegisterFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	user := &User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Phone:        optionalString(in.Phone),
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, ErrEmailTaken) {
			return nil, "", oops.Code(CodeEmailTaken).With("email", in.Email).Wrap(ErrEmailTaken)
		}
		return nil, "", oops.Code(CodeRegisterFailed).
			With("operation", "create user").
			Wrap(err)
	}

	token, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, "", oops.Code(CodeRegisterFailed).
			With("operation", "issue token").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, token, nil
}

// Login verifies credentials and issues a session token.
// Unknown email and wrong password produce the same error, and both paths
// run one hash verification so timing does not reveal which one failed.
// Password length is not re-validated here.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	if email == "" || password == "" {
		return nil, "", oops.Code(CodeMissingField).Errorf("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", oops.Code(CodeLoginFailed).
			With("operation", "get user by email").
			Wrap(err)
	}

	found := err == nil && user != nil
	var targetHash string
	if found {
		targetHash = user.PasswordHash
	} else {
		targetHash = s.dummyPasswordHash()
	}

	valid := s.hasher.Verify(password, targetHash)
	if !found || !valid {
		s.logger.DebugContext(ctx, "login rejected")
		return nil, "", oops.Code(CodeInvalidCredentials).Errorf("invalid credentials")
	}

	token, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, "", oops.Code(CodeLoginFailed).
			With("operation", "issue token").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return user, token, nil
}

// CurrentUser resolves the user a session token belongs to.
// An empty token means no session was presented.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code(CodeSessionMissing).Errorf("not logged in")
	}

	payload, err := s.tokens.Verify(token)
	if err != nil {
		return nil, oops.Code(CodeSessionInvalid).Wrap(ErrInvalidToken)
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeUserNotFound).With("user_id", payload.UserID).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code(CodeCurrentUserFailed).
			With("operation", "get user by id").
			With("user_id", payload.UserID).
			Wrap(err)
	}
	return user, nil
}

// dummyPasswordHash returns the digest verified against when the email is
// unknown. The verification result is discarded. It is computed once with
// the configured hasher so its cost tracks the real work factor.
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("storefront-timing-equalizer")
		if err != nil {
			s.logger.Warn("failed to compute dummy password hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
