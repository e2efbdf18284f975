// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/logging"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx).DebugContext(ctx, "failed to write response", "error", err)
	}
}

// decodeJSON reads a JSON object into dst. An empty body leaves dst zero so
// field presence checks report what is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code(auth.CodeBodyTooLarge).With("limit", tooLarge.Limit).Wrap(err)
		}
		return oops.Code(auth.CodeInvalidBody).Wrap(err)
	}
	if dec.More() {
		return oops.Code(auth.CodeInvalidBody).Errorf("unexpected data after JSON object")
	}
	return nil
}
