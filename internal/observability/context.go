// Package observability carries request-scoped logging state through context.
package observability

import (
	"context"
	"log/slog"
)

type (
	loggerKey    struct{}
	requestIDKey struct{}
	clientIDKey  struct{}
)

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, lg)
}

// LoggerFromContext returns the request logger, or slog.Default when none is set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ContextWithRequestID stores the request id used to correlate service and
// client logs with the access log line.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string { return stringFrom(ctx, requestIDKey{}) }

// ContextWithClientID stores the rate-limit client key (the real client IP).
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return withString(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext returns the client key or "".
func ClientIDFromContext(ctx context.Context) string { return stringFrom(ctx, clientIDKey{}) }

func withString(ctx context.Context, key any, v string) context.Context {
	if ctx == nil || v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}
