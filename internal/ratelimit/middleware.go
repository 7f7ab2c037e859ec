package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/AlamKhalidDev/product-search/pkg/errors"
	"github.com/AlamKhalidDev/product-search/pkg/httputil"
	"github.com/AlamKhalidDev/product-search/pkg/logger"
)

// Response headers set by Middleware.
const (
	HeaderRetryAfter = "Retry-After"
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_ratelimit_decisions_total",
		Help: "Rate governor decisions by policy and outcome",
	},
	[]string{"policy", "outcome"},
)

// Middleware spends one point of policy per request before calling next.
// Rejected requests get 429 with Retry-After; a governor fault is a 500.
func Middleware(g Governor, policy Policy, log *slog.Logger) func(http.Handler) http.Handler {
	accepted := decisionsTotal.WithLabelValues(policy.Name, "accepted")
	rejected := decisionsTotal.WithLabelValues(policy.Name, "rejected")
	faulted := decisionsTotal.WithLabelValues(policy.Name, "fault")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := logger.ClientIDFromContext(ctx)
			if id == "" {
				id = Identify(r)
			}

			d, err := g.Consume(ctx, id)
			if err != nil {
				faulted.Inc()
				httputil.WriteError(w, r, apperrors.Internal(fmt.Errorf("%s governor: %w", policy.Name, err)), log)
				return
			}

			w.Header().Set(HeaderLimit, strconv.Itoa(policy.Points))
			if !d.Accepted {
				rejected.Inc()
				log.WarnContext(ctx, "rate limit exceeded",
					slog.String("policy", policy.Name),
					slog.String("client_id", id),
					slog.String("path", r.URL.Path),
					slog.Int64("ms_before_next", d.MsBeforeNext),
				)
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(d.RetryAfterSeconds()))
				w.Header().Set(HeaderRemaining, "0")
				httputil.WriteError(w, r, apperrors.TooManyRequests("too many requests"), log)
				return
			}

			accepted.Inc()
			w.Header().Set(HeaderRemaining, strconv.Itoa(d.RemainingPoints))
			next.ServeHTTP(w, r)
		})
	}
}
