package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AlamKhalidDev/product-search/internal/ratelimit"
	"github.com/AlamKhalidDev/product-search/internal/service"
	"github.com/AlamKhalidDev/product-search/pkg/health"
	"github.com/AlamKhalidDev/product-search/pkg/middleware"
)

// Limiter pairs a governor with the policy it enforces.
type Limiter struct {
	Governor ratelimit.Governor
	Policy   ratelimit.Policy
}

// RouterConfig carries everything NewRouter wires besides the service.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig

	// SearchLimiter and AutocompleteLimiter guard their endpoints. A nil
	// Governor leaves the endpoint unmetered.
	SearchLimiter       Limiter
	AutocompleteLimiter Limiter

	// CacheMaxAge is the Cache-Control max-age for autocomplete and product
	// lookups. Zero disables the header.
	CacheMaxAge int
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	searchService *service.SearchService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName,
		middleware.WithSkipPrefixes("/health", "/metrics"),
		middleware.WithRequestAttributes(searchAttributes),
	))
	r.Use(middleware.RequestLogger(logger, ratelimit.Identify))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	searchHandler := NewSearchHandler(searchService, logger)
	indexHandler := NewIndexHandler(searchService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(limit(cfg.SearchLimiter, logger)...).Get("/search", searchHandler.Search)

		r.Group(func(r chi.Router) {
			if cfg.CacheMaxAge > 0 {
				r.Use(middleware.CacheControl(cfg.CacheMaxAge))
			}
			r.With(limit(cfg.AutocompleteLimiter, logger)...).Get("/autocomplete", searchHandler.Autocomplete)
			r.Get("/products/{handle}", searchHandler.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(chimw.AllowContentType("application/json"))
			r.Post("/products", indexHandler.IndexProduct)
			r.Post("/index/bulk", indexHandler.BulkIndex)
		})
		r.Delete("/products/{id}", indexHandler.DeleteProduct)
		r.Post("/index", indexHandler.Reindex)
	})

	return r
}

func limit(l Limiter, logger *slog.Logger) []func(http.Handler) http.Handler {
	if l.Governor == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{ratelimit.Middleware(l.Governor, l.Policy, logger)}
}

// searchAttributes tags spans with the shape of a search, not its filter values.
func searchAttributes(r *http.Request) []attribute.KeyValue {
	q := r.URL.Query()
	if !q.Has("q") {
		return nil
	}
	filters := 0
	for _, name := range []string{"vendor", "productType", "tag", "status", "minPrice", "maxPrice"} {
		if q.Get(name) != "" {
			filters++
		}
	}
	return []attribute.KeyValue{
		attribute.Int("search.query_length", len(q.Get("q"))),
		attribute.Int("search.filter_count", filters),
		attribute.String("search.sort", q.Get("sort")),
	}
}
