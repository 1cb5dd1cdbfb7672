// Package metadata captures client transport metadata (IP, User-Agent) into
// the request context so services can label sessions and audit events without
// touching net/http.
package metadata

import (
	"context"
	"net/http"
	"strings"
)

type contextKeyClientIP struct{}
type contextKeyUserAgent struct{}

// ClientMetadata stores the client IP and User-Agent in the context. Apply it
// early in the chain, before any handler that signs users in.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyClientIP{}, ClientIPFromRequest(r))
		ctx = context.WithValue(ctx, contextKeyUserAgent{}, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP returns the client IP captured by ClientMetadata, or "".
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(contextKeyClientIP{}).(string)
	return ip
}

// GetUserAgent returns the User-Agent captured by ClientMetadata, or "".
func GetUserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(contextKeyUserAgent{}).(string)
	return ua
}

// WithClientMetadata injects both values directly, for service tests that do
// not run the HTTP chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIP)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

// ClientIPFromRequest resolves the originating client IP behind proxies:
// first X-Forwarded-For entry, then X-Real-IP, then the socket address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
