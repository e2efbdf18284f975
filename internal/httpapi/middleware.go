// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fashionhall/storefront/internal/logging"
	"github.com/fashionhall/storefront/internal/observability"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

const tracerName = "github.com/fashionhall/storefront/internal/httpapi"

// unmatchedRoute labels requests no route handled.
const unmatchedRoute = "unmatched"

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mw ...middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// requestInfo is shared by every layer of one request. Handlers fill in the
// matched route; outer middleware read it after the handler returns.
type requestInfo struct {
	id    string
	route string
}

type requestInfoKey struct{}

func infoFrom(ctx context.Context) *requestInfo {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info
	}
	return &requestInfo{route: unmatchedRoute}
}

// RequestIDFrom returns the id assigned to the request in ctx.
func RequestIDFrom(ctx context.Context) string {
	return infoFrom(ctx).id
}

// statusRecorder captures the response status.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func recordStatus(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b) //nolint:wrapcheck // passthrough
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// recoverPanics turns a handler panic into a 500 response.
func recoverPanics(logger *slog.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recordStatus(w)
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(p)
				}
				logger.ErrorContext(r.Context(), "handler panic",
					"panic", p,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()))
				if !rec.wroteHeader {
					writeJSON(r.Context(), rec, http.StatusInternalServerError,
						errorResponse{Success: false, Message: "internal server error"})
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// requestID assigns a ULID, or keeps a well-formed incoming one, and stores
// a request-scoped logger in the context.
func requestID(logger *slog.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := ulid.ParseStrict(id); err != nil {
				id = ulid.Make().String()
			}
			w.Header().Set(RequestIDHeader, id)

			info := &requestInfo{id: id, route: unmatchedRoute}
			ctx := context.WithValue(r.Context(), requestInfoKey{}, info)
			ctx = logging.WithLogger(ctx, logger.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tracing opens a server span per request.
func tracing() middleware {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				))
			defer span.End()

			rec := recordStatus(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			info := infoFrom(ctx)
			span.SetName(r.Method + " " + info.route)
			span.SetAttributes(
				attribute.String("http.route", info.route),
				attribute.Int("http.response.status_code", rec.status),
				attribute.String("request.id", info.id),
			)
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}

// logRequests writes one record per completed request.
func logRequests() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recordStatus(w)
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logging.FromContext(ctx).Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"route", infoFrom(ctx).route,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}

// instrument records request count and latency by route.
func instrument(metrics *observability.Metrics) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recordStatus(w)
			next.ServeHTTP(rec, r)
			metrics.ObserveRequest(infoFrom(r.Context()).route, rec.status, time.Since(start))
		})
	}
}

// originMatcher matches Origin headers against glob patterns. A '*' does
// not cross a '.', so https://*.example.com matches one subdomain level.
type originMatcher []glob.Glob

func newOriginMatcher(patterns []string) (originMatcher, error) {
	m := make(originMatcher, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimSuffix(p, "/"), '.')
		if err != nil {
			return nil, oops.Code("CORS_PATTERN_INVALID").With("pattern", p).Wrap(err)
		}
		m = append(m, g)
	}
	return m, nil
}

func (m originMatcher) allows(origin string) bool {
	for _, g := range m {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// cors allows credentialed requests from matching origins and answers
// preflight requests before routing.
func cors(origins originMatcher) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := origins.allows(origin)
			h := w.Header()
			h.Add("Vary", "Origin")
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
