package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/entrypage/idgen"
	"github.com/hazyhaar/entrypage/kit"
)

var traceIDs = idgen.Prefixed("trc_", idgen.Default)

// TraceID is TraceIDWith(nil).
func TraceID(next http.Handler) http.Handler { return TraceIDWith(nil)(next) }

// TraceIDWith tags each request with a trace ID, stored under
// kit.TraceIDKey, echoed in X-Trace-ID, and attached to a per-request
// logger derived from base. An incoming X-Trace-ID is kept when it is a
// safe identifier.
func TraceIDWith(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("X-Trace-ID")
			if !validTraceID(traceID) {
				traceID = traceIDs()
			}
			ctx := kit.WithTraceID(r.Context(), traceID)
			ctx = kit.WithTransport(ctx, kit.TransportHTTP)
			w.Header().Set("X-Trace-ID", traceID)

			logger := base
			if logger == nil {
				logger = slog.Default()
			}
			logger = logger.With(
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			logger.Debug("request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validTraceID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
