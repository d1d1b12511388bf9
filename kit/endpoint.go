// CLAUDE:SUMMARY Transport-agnostic endpoint type, middleware chaining and request logging shared by the HTTP API and MCP tools.
// Package kit holds the small transport-agnostic layer shared by the HTTP
// API and the MCP tools: one Endpoint signature, composable middleware, and
// typed context values.
package kit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Endpoint handles one decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middleware so that the first argument is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs each call with its name, transport, trace ID and duration.
// Failures are logged at warn level.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"duration", time.Since(start),
			}
			if id := GetTraceID(ctx); id != "" {
				attrs = append(attrs, "trace_id", id)
			}
			if caller := GetCaller(ctx); caller != "" {
				attrs = append(attrs, "caller", caller)
			}
			if err != nil {
				logger.WarnContext(ctx, "endpoint failed", append(attrs, "error", err)...)
				return nil, err
			}
			logger.DebugContext(ctx, "endpoint done", attrs...)
			return resp, nil
		}
	}
}

// ErrPanic is wrapped by the error Recover returns for a panicking endpoint.
var ErrPanic = errors.New("kit: endpoint panicked")

// Recover turns a panic inside the endpoint into an error wrapping ErrPanic.
func Recover() Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()
			return next(ctx, req)
		}
	}
}
