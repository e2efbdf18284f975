// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

// Package errutil logs and asserts oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level without a request context.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext logs err at error level. For oops errors the code and the
// merged context are added as attributes; other errors log their string.
// ctx lets the handler attach trace identifiers.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.ErrorContext(ctx, msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code, _ := any(oopsErr.Code()).(string); code != "" {
		attrs = append(attrs, "code", code)
	}
	if oopsCtx := oopsErr.Context(); len(oopsCtx) > 0 {
		attrs = append(attrs, "context", oopsCtx)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
