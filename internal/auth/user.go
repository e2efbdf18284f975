// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"context"
	"regexp"
	"time"
	"unicode/utf16"

	"github.com/samber/oops"
)

// Registration password bounds. MaxPasswordBytes is the bcrypt input limit.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

// emailRegex is deliberately permissive: something@something.something
// with no whitespace and exactly one @ before the domain. Whitespace covers
// \v, Unicode separators and the BOM as well as ASCII space characters.
var emailRegex = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// User is a storefront account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Address      *string
	City         *string
	ZipCode      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized form of User sent to clients.
type PublicUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	City      *string   `json:"city"`
	ZipCode   *string   `json:"zipCode"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns the user without the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Address:   u.Address,
		City:      u.City,
		ZipCode:   u.ZipCode,
		CreatedAt: u.CreatedAt,
	}
}

// Identity returns the claims a session token is issued for.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and sets its ID and timestamps.
	// Returns an error wrapping ErrEmailTaken if the email is already in use.
	// The check and the insert are atomic.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by exact email.
	// Returns an error wrapping ErrNotFound if no user matches.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	// Returns an error wrapping ErrNotFound if no user matches.
	GetByID(ctx context.Context, id int64) (*User, error)
}

// ValidateEmail checks email syntax.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeInvalidEmail).With("email", email).Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword checks the registration password policy.
func ValidatePassword(password string) error {
	if utf16Len(password) < MinPasswordLength {
		return oops.Code(CodePasswordTooShort).
			With("min_length", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return oops.Code(CodePasswordTooLong).
			With("max_bytes", MaxPasswordBytes).
			Errorf("password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

// utf16Len counts UTF-16 code units, so characters outside the BMP count
// twice, matching the length browsers report for the same input.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// optionalString maps "" to nil.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
