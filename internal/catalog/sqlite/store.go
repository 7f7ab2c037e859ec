// Package sqlite keeps the staged catalog in a local SQLite file, for single
// node deployments without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AlamKhalidDev/product-search/internal/catalog"
	"github.com/AlamKhalidDev/product-search/internal/domain"
)

//go:embed schema.sql
var schema string

const insertProduct = `
	INSERT INTO catalog_products (
		id, title, handle, description, vendor, tags, image, price,
		created_at, updated_at, product_type, status, total_inventory,
		seo_title, seo_description
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Store is a catalog.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ catalog.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	// One connection serialises writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	logger.Info("sqlite catalog store ready", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Replace swaps the staged catalog for products in one transaction and
// restarts load positions.
func (s *Store) Replace(ctx context.Context, products []domain.Product) (n int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM catalog_products"); err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'catalog_products'"); err != nil {
		return 0, fmt.Errorf("reset positions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertProduct)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range products {
		args, err := values(&products[i])
		if err != nil {
			return 0, err
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert product %s: %w", products[i].ID, err)
		}
		n++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	s.logger.InfoContext(ctx, "catalog replaced", slog.Int64("products", n))
	return n, nil
}

// Upsert inserts or replaces a single product, keeping its position.
func (s *Store) Upsert(ctx context.Context, p *domain.Product) error {
	args, err := values(p)
	if err != nil {
		return err
	}
	query := insertProduct + `
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			handle = excluded.handle,
			description = excluded.description,
			vendor = excluded.vendor,
			tags = excluded.tags,
			image = excluded.image,
			price = excluded.price,
			updated_at = excluded.updated_at,
			product_type = excluded.product_type,
			status = excluded.status,
			total_inventory = excluded.total_inventory,
			seo_title = excluded.seo_title,
			seo_description = excluded.seo_description`

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// Delete removes a product. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM catalog_products WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ListProducts returns every staged product in load order.
func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, handle, description, vendor, tags, image, price,
		       created_at, updated_at, product_type, status, total_inventory,
		       seo_title, seo_description
		FROM catalog_products
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var (
			p                domain.Product
			tags             string
			created, updated string
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Handle, &p.Description, &p.Vendor, &tags, &p.Image, &p.Price,
			&created, &updated, &p.ProductType, &p.Status, &p.TotalInventory,
			&p.SeoTitle, &p.SeoDescription,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil || p.Tags == nil {
			p.Tags = []string{}
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("product %s: created_at: %w", p.ID, err)
		}
		if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("product %s: updated_at: %w", p.ID, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Count returns the number of staged products.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM catalog_products").Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func values(p *domain.Product) ([]any, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return []any{
		p.ID, p.Title, p.Handle, p.Description, p.Vendor, string(encoded), p.Image, p.Price,
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		p.ProductType, p.Status, p.TotalInventory, p.SeoTitle, p.SeoDescription,
	}, nil
}
