package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/crystalbeauty/pkg/logger"
)

// IdentityFunc resolves the acting identity for a request context.
type IdentityFunc func(ctx context.Context) (string, bool)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, identity, trace_id and span_id, then stores it in
// context via logger.NewContext.
//
// Mount it after RequestLogging, Tracing and BearerToken so every field is
// already present in the request context.
func RequestLogger(base *slog.Logger, identify IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if identify != nil {
				if id, ok := identify(ctx); ok {
					ctx = logger.WithIdentity(ctx, id)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
