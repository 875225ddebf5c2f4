// Package middleware provides the HTTP middleware for the ingestion
// surface: request identification, access logging, per-client rate
// limiting, and admin key verification.
package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys in this package.
type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFrom returns the request ID from ctx, or empty.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestID assigns a UUID to each request and exposes it via the request
// context and the X-Request-ID response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// ClientKey derives the coarse client identity for a request: a
// client-supplied session token when present, else the remote network
// address. Session scoping and rate limiting share this key.
func ClientKey(r *http.Request) string {
	if token := r.URL.Query().Get("s"); token != "" {
		return "tok:" + token
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}

// Chain applies middleware around h, first entry outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
