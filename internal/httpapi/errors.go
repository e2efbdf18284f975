// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package httpapi

import (
	"net/http"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/logging"
	"github.com/fashionhall/storefront/pkg/errutil"
)

// operation names an endpoint for metrics and its internal-error message.
type operation struct {
	event   string
	failMsg string
}

var (
	opRegister = operation{event: "register", failMsg: "registration failed"}
	opLogin    = operation{event: "login", failMsg: "login failed"}
	opMe       = operation{event: "me", failMsg: "failed to fetch user"}
)

// publicMessages are the client-facing messages per error code.
var publicMessages = map[string]string{
	auth.CodeInvalidBody:        "invalid request body",
	auth.CodeBodyTooLarge:       "request body too large",
	auth.CodeMissingField:       "missing required field",
	auth.CodeInvalidEmail:       "invalid email format",
	auth.CodePasswordTooShort:   "password must be at least 6 characters",
	auth.CodePasswordTooLong:    "password must be at most 72 bytes",
	auth.CodeEmailTaken:         "email already registered",
	auth.CodeInvalidCredentials: "invalid credentials",
	auth.CodeSessionMissing:     "not logged in",
	auth.CodeSessionInvalid:     "token invalid or expired",
	auth.CodeUserNotFound:       "user not found",
}

// kindDefaults covers classified errors whose code has no message.
var kindDefaults = map[auth.Kind]string{
	auth.KindValidation:     "invalid request",
	auth.KindAuthentication: "token invalid or expired",
	auth.KindConflict:       "email already registered",
	auth.KindNotFound:       "user not found",
}

func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindAuthentication:
		return http.StatusUnauthorized
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicError maps err to a status and a message safe to show clients.
// Internal errors never expose their text.
func publicError(op operation, err error) (int, string) {
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		return http.StatusInternalServerError, op.failMsg
	}
	code := auth.CodeOf(err)
	if code == auth.CodeBodyTooLarge {
		return http.StatusRequestEntityTooLarge, publicMessages[code]
	}
	if msg, ok := publicMessages[code]; ok {
		return statusFor(kind), msg
	}
	return statusFor(kind), kindDefaults[kind]
}

// fail writes the error response for op and records the outcome.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op operation, err error) {
	ctx := r.Context()
	status, msg := publicError(op, err)

	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(ctx, logging.FromContext(ctx), op.failMsg, err)
	}
	h.metrics.RecordAuthEvent(op.event, outcomeFor(auth.KindOf(err)))

	writeJSON(ctx, w, status, errorResponse{Success: false, Message: msg})
}

func outcomeFor(kind auth.Kind) string {
	if kind == auth.KindInternal {
		return "error"
	}
	return kind.String()
}
