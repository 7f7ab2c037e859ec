package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogram(t *testing.T, obs prometheus.Observer) *dto.Histogram {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, obs.(prometheus.Metric).Write(m))
	return m.GetHistogram()
}

func metricsRouter(service string, inFlight *float64) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/v1/products/{handle}", func(w http.ResponseWriter, r *http.Request) {
		if inFlight != nil {
			*inFlight = testutil.ToFloat64(httpRequestsInFlight.WithLabelValues(service))
		}
		if chi.URLParam(r, "handle") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(make([]byte, 300))
	})
	return r
}

func TestPrometheusMetrics_LabelsByRoute(t *testing.T) {
	const service = "metrics-route"
	r := metricsRouter(service, nil)

	for _, path := range []string{"/api/v1/products/a", "/api/v1/products/b", "/api/v1/products/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	route := "/api/v1/products/{handle}"
	assert.Equal(t, 2.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(service, http.MethodGet, route, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(service, http.MethodGet, route, "404")))
	assert.EqualValues(t, 3, histogram(t, httpRequestDuration.WithLabelValues(service, http.MethodGet, route)).GetSampleCount())

	size := histogram(t, httpResponseSize.WithLabelValues(service, route))
	assert.EqualValues(t, 3, size.GetSampleCount())
	assert.Equal(t, 600.0, size.GetSampleSum())
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	const service = "metrics-unmatched"
	metricsRouter(service, nil).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(service, http.MethodGet, unmatchedRoute, "404")))
}

func TestPrometheusMetrics_InFlight(t *testing.T) {
	const service = "metrics-inflight"
	var during float64
	metricsRouter(service, &during).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products/a", nil))

	assert.Equal(t, 1.0, during)
	assert.Equal(t, 0.0, testutil.ToFloat64(httpRequestsInFlight.WithLabelValues(service)))
}

func TestStatusRecorder(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusOK)
	_, _ = rec.Write([]byte("hello"))

	assert.Equal(t, http.StatusTeapot, rec.status)
	assert.Equal(t, 5, rec.bytes)
	assert.NotNil(t, rec.Unwrap())
	rec.Flush()
}
