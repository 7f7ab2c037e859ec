package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/AlamKhalidDev/product-search/pkg/config"
)

// Engine backends.
const (
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
	EngineBleve         = "bleve"
)

// Rate governor backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CacheMaxAge     int           `env:"CACHE_MAX_AGE" envDefault:"0"`

	// Search engine selection (elasticsearch, memory or bleve)
	SearchEngine  string        `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	EngineTimeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"5s"`

	// Elasticsearch
	ElasticsearchURLs     []string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchIndex    string   `env:"ELASTICSEARCH_INDEX" envDefault:"products"`
	ElasticsearchUsername string   `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string   `env:"ELASTICSEARCH_PASSWORD"`

	// Bleve; empty keeps the index in memory
	BlevePath string `env:"BLEVE_PATH"`

	// Rate governor
	RateLimitBackend       string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	SearchRatePoints       int           `env:"SEARCH_RATE_POINTS" envDefault:"15"`
	SearchRateWindow       time.Duration `env:"SEARCH_RATE_WINDOW" envDefault:"10s"`
	AutocompleteRatePoints int           `env:"AUTOCOMPLETE_RATE_POINTS" envDefault:"30"`
	AutocompleteRateWindow time.Duration `env:"AUTOCOMPLETE_RATE_WINDOW" envDefault:"10s"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Catalog source for reindexing. Postgres wins over SQLite, and either
	// store wins over the CSV export.
	CatalogDatabaseURL string `env:"CATALOG_DATABASE_URL"`
	CatalogSQLitePath  string `env:"CATALOG_SQLITE_PATH"`
	CatalogCSVPath     string `env:"CATALOG_CSV_PATH"`
	// CatalogWatch reindexes whenever the CSV export is rewritten.
	CatalogWatch bool `env:"CATALOG_WATCH" envDefault:"false"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"product-search"`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{EngineElasticsearch, EngineMemory, EngineBleve}, c.SearchEngine) {
		return fmt.Errorf("unknown SEARCH_ENGINE %q", c.SearchEngine)
	}
	if c.SearchEngine == EngineElasticsearch && len(c.ElasticsearchURLs) == 0 {
		return fmt.Errorf("ELASTICSEARCH_URL is required for the elasticsearch engine")
	}
	if c.EngineTimeout <= 0 {
		return fmt.Errorf("ENGINE_TIMEOUT must be positive")
	}
	if !slices.Contains([]string{RateLimitMemory, RateLimitRedis}, c.RateLimitBackend) {
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	if c.SearchRatePoints <= 0 || c.AutocompleteRatePoints <= 0 {
		return fmt.Errorf("rate limit points must be positive")
	}
	if c.SearchRateWindow <= 0 || c.AutocompleteRateWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.CatalogWatch && c.CatalogCSVPath == "" {
		return fmt.Errorf("CATALOG_WATCH requires CATALOG_CSV_PATH")
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1]: %v", c.OTelSampleRate)
	}
	return nil
}
