// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors. Repositories and services wrap these with oops codes;
// callers match them with errors.Is.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when a user with the same email already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidToken is the single result for any token that fails
	// verification: bad signature, expired, or malformed.
	ErrInvalidToken = errors.New("token invalid or expired")
)

// Error codes attached to classified auth errors.
const (
	CodeInvalidBody         = "AUTH_INVALID_BODY"
	CodeBodyTooLarge        = "AUTH_BODY_TOO_LARGE"
	CodeMissingField        = "AUTH_MISSING_FIELD"
	CodeInvalidEmail        = "AUTH_INVALID_EMAIL"
	CodePasswordTooShort    = "AUTH_PASSWORD_TOO_SHORT"
	CodePasswordTooLong     = "AUTH_PASSWORD_TOO_LONG"
	CodeEmailTaken          = "AUTH_EMAIL_TAKEN"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeSessionMissing      = "SESSION_MISSING"
	CodeSessionInvalid      = "SESSION_INVALID"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeRegisterFailed      = "AUTH_REGISTER_FAILED"
	CodeLoginFailed         = "AUTH_LOGIN_FAILED"
	CodeCurrentUserFailed   = "AUTH_CURRENT_USER_FAILED"
	CodeTokenIssueFailed    = "TOKEN_ISSUE_FAILED"
	CodeHashFailed          = "AUTH_HASH_FAILED"
	CodeUnsupportedHashAlgo = "AUTH_UNSUPPORTED_HASH"
)

// Kind classifies an error for the transport boundary.
type Kind int

// Error kinds, ordered from least to most severe for the caller.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindConflict
	KindNotFound
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// KindOf classifies err. Errors that carry no recognised code and wrap no
// known sentinel are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case CodeInvalidBody, CodeBodyTooLarge, CodeMissingField, CodeInvalidEmail, CodePasswordTooShort, CodePasswordTooLong:
			return KindValidation
		case CodeInvalidCredentials, CodeSessionMissing, CodeSessionInvalid:
			return KindAuthentication
		case CodeEmailTaken:
			return KindConflict
		case CodeUserNotFound:
			return KindNotFound
		}
	}

	switch {
	case errors.Is(err, ErrEmailTaken):
		return KindConflict
	case errors.Is(err, ErrInvalidToken):
		return KindAuthentication
	default:
		return KindInternal
	}
}

// CodeOf returns the oops code carried by err, or "" when there is none.
func CodeOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}
