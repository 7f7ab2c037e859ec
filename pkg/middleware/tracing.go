package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for inbound HTTP spans.
const TracerName = "github.com/AlamKhalidDev/product-search/pkg/middleware"

type tracingOptions struct {
	skip       []string
	attributes func(*http.Request) []attribute.KeyValue
}

// TracingOption customises the Tracing middleware.
type TracingOption func(*tracingOptions)

// WithSkipPrefixes disables spans for paths starting with any prefix, such as
// probes and the metrics scrape.
func WithSkipPrefixes(prefixes ...string) TracingOption {
	return func(o *tracingOptions) { o.skip = append(o.skip, prefixes...) }
}

// WithRequestAttributes adds attributes derived from the request to each span.
func WithRequestAttributes(fn func(*http.Request) []attribute.KeyValue) TracingOption {
	return func(o *tracingOptions) { o.attributes = fn }
}

// Tracing returns middleware that opens a server span per request. Inbound W3C
// trace context is honoured and the span is renamed to the chi route pattern
// once routing has happened.
func Tracing(serviceName string, opts ...TracingOption) func(http.Handler) http.Handler {
	var o tracingOptions
	for _, opt := range opts {
		opt(&o)
	}
	tracer := otel.Tracer(TracerName, trace.WithInstrumentationAttributes(attribute.String("service.name", serviceName)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range o.skip {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			propagator := otel.GetTextMapPropagator()
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			attrs := []attribute.KeyValue{
				semconv.HTTPMethod(r.Method),
				semconv.HTTPTarget(r.URL.RequestURI()),
				semconv.HTTPScheme(scheme(r)),
				semconv.UserAgentOriginal(r.UserAgent()),
			}
			if o.attributes != nil {
				attrs = append(attrs, o.attributes(r)...)
			}
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			rec := newStatusRecorder(w)
			propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			next.ServeHTTP(rec, r.WithContext(ctx))

			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					span.SetName(r.Method + " " + pattern)
					span.SetAttributes(attribute.String("http.route", pattern))
				}
			}
			span.SetAttributes(semconv.HTTPStatusCode(rec.status), attribute.Int("http.response_size", rec.bytes))
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}
