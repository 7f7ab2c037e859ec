package middleware

import (
	"log/slog"
	"net/http"

	"github.com/AlamKhalidDev/product-search/pkg/logger"
)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, client_id, trace_id, and span_id, then stores it in
// context via logger.NewContext. Downstream handlers retrieve it with
// logger.FromContext(ctx).
//
// identify resolves the caller identity (the same key the rate governor uses);
// it may be nil. Mount after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger, identify func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if logger.ClientIDFromContext(ctx) == "" && identify != nil {
				if id := identify(r); id != "" {
					ctx = logger.WithClientID(ctx, id)
				}
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
