// Package shield provides the HTTP middleware stack in front of the
// entrypage API: security headers, body limits, request tracing, bearer
// token authentication and per-client rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(shield.StackConfig{MaxBody: 4 << 20}) {
//	    r.Use(mw)
//	}
//	r.With(shield.BearerToken(hash)).Post("/v1/build", build)
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// StackConfig sizes the default API stack.
type StackConfig struct {
	// MaxBody caps request bodies in bytes. Zero disables the cap.
	MaxBody int64
	// RateLimit caps requests per client per window. Zero disables it.
	RateLimit RateLimitConfig
	// Logger is the base of per-request loggers. Defaults to slog.Default().
	Logger *slog.Logger
}

// APIStack returns the standard middleware for the JSON API, outermost
// first: HeadToGet, SecurityHeaders, TraceID, RateLimiter, MaxBody.
// Authentication is applied per route with BearerToken.
func APIStack(cfg StackConfig) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		TraceIDWith(cfg.Logger),
	}
	if cfg.RateLimit.MaxRequests > 0 {
		stack = append(stack, NewRateLimiter(cfg.RateLimit, "/healthz").Middleware)
	}
	if cfg.MaxBody > 0 {
		stack = append(stack, MaxBody(cfg.MaxBody))
	}
	return stack
}
