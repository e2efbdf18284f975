// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// TokenTTL is how long an issued session token stays valid.
const TokenTTL = 7 * 24 * time.Hour

// Identity is what a session token asserts.
type Identity struct {
	UserID int64
	Email  string
}

// TokenPayload is the verified content of a session token.
type TokenPayload struct {
	UserID    int64
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the JWT body: {"userId", "email", "iat", "exp"}.
type tokenClaims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed session tokens.
// The secret is fixed at construction; rotating it means building a new
// service, which invalidates every outstanding token.
type TokenService struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_EMPTY").Errorf("token signing secret cannot be empty")
	}

	s := &TokenService{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// Issue signs a token for id, valid for TokenTTL from now.
func (s *TokenService) Issue(id Identity) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID: id.UserID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code(CodeTokenIssueFailed).With("user_id", id.UserID).Wrap(err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the payload.
// Every failure returns ErrInvalidToken so callers cannot tell a forged
// token from an expired or garbled one.
func (s *TokenService) Verify(token string) (*TokenPayload, error) {
	claims := &tokenClaims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	return &TokenPayload{
		UserID:    claims.UserID,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
