// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and the audit publisher read them.
// Keeping the package free of net/http lets services avoid transport imports.
//
// Usage in services (read values):
//
//	caller := requestcontext.Caller(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithCaller(ctx, identity)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "attesta/pkg/domain"
)

type (
	callerKey      struct{}
	requestIDKey   struct{}
	clientIPKey    struct{}
	clientAgentKey struct{}
	requestTimeKey struct{}
)

// WithCaller records the authenticated principal for the request.
func WithCaller(ctx context.Context, caller id.Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the authenticated principal, or the zero Identity when the
// request is unauthenticated.
func Caller(ctx context.Context) id.Identity {
	if caller, ok := ctx.Value(callerKey{}).(id.Identity); ok {
		return caller
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// WithClientMetadata records the client IP and a normalized user-agent label
// for audit annotation.
func WithClientMetadata(ctx context.Context, clientIP, clientAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, clientAgentKey{}, clientAgent)
}

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

func ClientAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(clientAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithTime pins the request clock. Tests use this to exercise expiry without
// sleeping.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
