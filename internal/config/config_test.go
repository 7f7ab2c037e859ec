package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.ElasticsearchURLs)
	assert.Equal(t, "products", cfg.ElasticsearchIndex)
	assert.Equal(t, EngineElasticsearch, cfg.SearchEngine)
	assert.Equal(t, 5*time.Second, cfg.EngineTimeout)
	assert.Equal(t, RateLimitMemory, cfg.RateLimitBackend)
	assert.Equal(t, 15, cfg.SearchRatePoints)
	assert.Equal(t, 10*time.Second, cfg.SearchRateWindow)
	assert.Equal(t, 30, cfg.AutocompleteRatePoints)
	assert.Equal(t, 10*time.Second, cfg.AutocompleteRateWindow)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SEARCH_ENGINE", "bleve")
	t.Setenv("BLEVE_PATH", "/var/lib/search/products.bleve")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("SEARCH_RATE_POINTS", "100")
	t.Setenv("SEARCH_RATE_WINDOW", "1m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com,https://admin.example.com")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, EngineBleve, cfg.SearchEngine)
	assert.Equal(t, "/var/lib/search/products.bleve", cfg.BlevePath)
	assert.Equal(t, RateLimitRedis, cfg.RateLimitBackend)
	assert.Equal(t, 100, cfg.SearchRatePoints)
	assert.Equal(t, time.Minute, cfg.SearchRateWindow)
	assert.Len(t, cfg.CORSAllowedOrigins, 2)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"port zero", "SEARCH_HTTP_PORT", "0", "invalid HTTP port"},
		{"port too high", "SEARCH_HTTP_PORT", "99999", "invalid HTTP port"},
		{"unknown engine", "SEARCH_ENGINE", "solr", "unknown SEARCH_ENGINE"},
		{"unknown governor", "RATE_LIMIT_BACKEND", "memcached", "unknown RATE_LIMIT_BACKEND"},
		{"zero points", "SEARCH_RATE_POINTS", "0", "points must be positive"},
		{"negative window", "AUTOCOMPLETE_RATE_WINDOW", "-1s", "windows must be positive"},
		{"zero timeout", "ENGINE_TIMEOUT", "0s", "ENGINE_TIMEOUT"},
		{"sample rate", "OTEL_SAMPLE_RATE", "1.5", "OTEL_SAMPLE_RATE"},
		{"watch without export", "CATALOG_WATCH", "true", "CATALOG_WATCH requires CATALOG_CSV_PATH"},
		{"not a number", "SEARCH_RATE_POINTS", "many", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
