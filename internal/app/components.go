package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlamKhalidDev/product-search/internal/catalog"
	"github.com/AlamKhalidDev/product-search/internal/catalog/postgres"
	"github.com/AlamKhalidDev/product-search/internal/catalog/sqlite"
	"github.com/AlamKhalidDev/product-search/internal/config"
	"github.com/AlamKhalidDev/product-search/internal/engine"
	"github.com/AlamKhalidDev/product-search/internal/engine/bleveindex"
	esengine "github.com/AlamKhalidDev/product-search/internal/engine/elasticsearch"
	"github.com/AlamKhalidDev/product-search/internal/engine/memory"
	"github.com/AlamKhalidDev/product-search/internal/service"
	"github.com/AlamKhalidDev/product-search/pkg/database"
	"github.com/AlamKhalidDev/product-search/pkg/httpclient"
)

// NewEngine builds the search backend selected by cfg.SearchEngine.
func NewEngine(cfg *config.Config, logger *slog.Logger) (engine.SearchEngine, error) {
	switch cfg.SearchEngine {
	case config.EngineElasticsearch:
		transport := httpclient.NewBreakerTransport(
			httpclient.NewTransport(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("elasticsearch"),
			logger,
		)
		eng, err := esengine.New(esengine.Config{
			Addresses: cfg.ElasticsearchURLs,
			Index:     cfg.ElasticsearchIndex,
			Username:  cfg.ElasticsearchUsername,
			Password:  cfg.ElasticsearchPassword,
			Transport: transport,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		logger.Info("elasticsearch search engine initialized",
			slog.Any("addresses", cfg.ElasticsearchURLs),
			slog.String("index", eng.IndexName()),
		)
		return eng, nil

	case config.EngineBleve:
		eng, err := bleveindex.New(bleveindex.Config{Path: cfg.BlevePath}, logger)
		if err != nil {
			return nil, fmt.Errorf("init bleve engine: %w", err)
		}
		logger.Info("bleve search engine initialized", slog.String("path", cfg.BlevePath))
		return eng, nil

	case config.EngineMemory:
		logger.Info("in-memory search engine initialized")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown search engine %q", cfg.SearchEngine)
	}
}

// Catalog is the configured catalog source: a staging store (Postgres or
// SQLite), a CSV export, or a store plus the export it is loaded from.
type Catalog struct {
	Pool   *pgxpool.Pool
	SQLite *sqlite.Store
	Store  catalog.Store
	File   *catalog.FileSource
}

var _ io.Closer = (*Catalog)(nil)

// OpenCatalog connects to the staging store and applies its schema. It
// returns nil when no catalog source is configured.
func OpenCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Catalog, error) {
	if cfg.CatalogDatabaseURL == "" && cfg.CatalogSQLitePath == "" && cfg.CatalogCSVPath == "" {
		return nil, nil
	}

	c := &Catalog{}
	if cfg.CatalogCSVPath != "" {
		c.File = &catalog.FileSource{Path: cfg.CatalogCSVPath, Parser: catalog.NewParser()}
	}

	switch {
	case cfg.CatalogDatabaseURL != "":
		pool, err := database.NewPostgresPool(ctx, database.DefaultPostgresConfig(cfg.CatalogDatabaseURL), logger)
		if err != nil {
			return nil, fmt.Errorf("open catalog store: %w", err)
		}
		store := postgres.NewStore(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate catalog store: %w", err)
		}
		c.Pool, c.Store = pool, store
		logger.Info("catalog staging store ready", slog.String("backend", "postgres"))

	case cfg.CatalogSQLitePath != "":
		store, err := sqlite.Open(ctx, cfg.CatalogSQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open catalog store: %w", err)
		}
		c.SQLite, c.Store = store, store
	}
	return c, nil
}

// Source returns what reindexing reads from; the store wins over the file.
// A nil Catalog has no source.
func (c *Catalog) Source() service.CatalogSource {
	switch {
	case c == nil:
		return nil
	case c.Store != nil:
		return c.Store
	case c.File != nil:
		return c.File
	default:
		return nil
	}
}

// Restage copies the CSV export into the staging store. It is a no-op
// returning 0 unless both are configured.
func (c *Catalog) Restage(ctx context.Context) (int64, error) {
	if c == nil || c.Store == nil || c.File == nil {
		return 0, nil
	}
	products, err := c.File.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	return c.Store.Replace(ctx, products)
}

// Ping checks the staging store, if any.
func (c *Catalog) Ping(ctx context.Context) error {
	switch {
	case c.Pool != nil:
		return c.Pool.Ping(ctx)
	case c.SQLite != nil:
		return c.SQLite.Ping(ctx)
	default:
		return nil
	}
}

// Close releases the store.
func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.SQLite != nil {
		return c.SQLite.Close()
	}
	return nil
}
