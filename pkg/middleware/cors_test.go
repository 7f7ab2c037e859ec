package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/v1/search", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORS_Origins(t *testing.T) {
	restricted := CORSConfig{AllowedOrigins: []string{"https://shop.example.com", "https://*.preview.example.com"}}

	tests := []struct {
		name       string
		cfg        CORSConfig
		origin     string
		wantOrigin string
		wantVary   bool
	}{
		{"wildcard", DefaultCORSConfig(), "https://anything.test", "*", false},
		{"exact match", restricted, "https://shop.example.com", "https://shop.example.com", true},
		{"subdomain pattern", restricted, "https://pr-12.preview.example.com", "https://pr-12.preview.example.com", true},
		{"bare pattern host", restricted, "https://.preview.example.com", "", false},
		{"wrong scheme", restricted, "http://shop.example.com", "", false},
		{"unknown origin", restricted, "https://evil.test", "", false},
		{"no origin", restricted, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reached := corsRequest(t, tt.cfg, http.MethodGet, tt.origin, false)
			assert.True(t, reached)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantVary, rec.Header().Get("Vary") == "Origin")
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://shop.example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		MaxAge:         600,
	}

	rec, reached := corsRequest(t, cfg, http.MethodOptions, "https://shop.example.com", true)
	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Accept, Content-Type, X-API-Key, X-Correlation-ID", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	rec, reached = corsRequest(t, cfg, http.MethodOptions, "https://evil.test", true)
	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// A plain OPTIONS without a requested method is routed normally.
	_, reached = corsRequest(t, cfg, http.MethodOptions, "https://shop.example.com", false)
	assert.True(t, reached)
}

func TestCORS_ExposesRateLimitHeaders(t *testing.T) {
	rec, _ := corsRequest(t, DefaultCORSConfig(), http.MethodGet, "https://shop.test", false)
	assert.Equal(t, "Retry-After, X-RateLimit-Remaining, X-Correlation-ID", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_CredentialsEchoOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowCredentials = true

	rec, _ := corsRequest(t, cfg, http.MethodGet, "https://shop.test", false)
	assert.Equal(t, "https://shop.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
