// Package postgres stages catalog products in PostgreSQL so the search
// index can be rebuilt without re-reading the export.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for the staging table.
func Migrations() fs.FS {
	sub, _ := fs.Sub(migrationFiles, "migrations")
	return sub
}

const table = "catalog_products"

var columns = []string{
	"id", "title", "handle", "description", "vendor", "tags", "image", "price",
	"created_at", "updated_at", "product_type", "status", "total_inventory",
	"seo_title", "seo_description",
}

// Store implements the catalog staging store on PostgreSQL.
type Store struct {
	db     database.DBTX
	tracer database.QueryTracer
	logger *slog.Logger
}

// NewStore creates a new PostgreSQL-backed catalog store.
func NewStore(db database.DBTX, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		tracer: database.QueryTracer{SlowThreshold: 500 * time.Millisecond, Logger: logger},
	}
}

// Migrate applies the staging schema.
func (s *Store) Migrate(ctx context.Context) error {
	return database.RunMigrations(ctx, s.db, "catalog", Migrations(), s.logger)
}

// Replace swaps the staged catalog for products in one transaction.
func (s *Store) Replace(ctx context.Context, products []domain.Product) (n int64, err error) {
	ctx, end := s.tracer.Start(ctx, "ReplaceCatalog", "COPY "+table)
	defer func() { end(err) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "TRUNCATE "+table+" RESTART IDENTITY"); err != nil {
		return 0, fmt.Errorf("truncate catalog: %w", err)
	}

	rows := make([][]any, 0, len(products))
	for i := range products {
		rows = append(rows, values(&products[i]))
	}
	n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy catalog: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	return n, nil
}

// Upsert inserts or replaces a single product, keeping its position.
func (s *Store) Upsert(ctx context.Context, p *domain.Product) (err error) {
	query := `
		INSERT INTO catalog_products (
			id, title, handle, description, vendor, tags, image, price,
			created_at, updated_at, product_type, status, total_inventory,
			seo_title, seo_description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			handle = EXCLUDED.handle,
			description = EXCLUDED.description,
			vendor = EXCLUDED.vendor,
			tags = EXCLUDED.tags,
			image = EXCLUDED.image,
			price = EXCLUDED.price,
			updated_at = EXCLUDED.updated_at,
			product_type = EXCLUDED.product_type,
			status = EXCLUDED.status,
			total_inventory = EXCLUDED.total_inventory,
			seo_title = EXCLUDED.seo_title,
			seo_description = EXCLUDED.seo_description`

	ctx, end := s.tracer.Start(ctx, "UpsertProduct", "INSERT INTO "+table)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, query, values(p)...); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// Delete removes a product. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	ctx, end := s.tracer.Start(ctx, "DeleteProduct", "DELETE FROM "+table)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, "DELETE FROM catalog_products WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// ListProducts returns every staged product in load order.
func (s *Store) ListProducts(ctx context.Context) (products []domain.Product, err error) {
	query := `
		SELECT id, title, handle, description, vendor, tags, image, price,
			   created_at, updated_at, product_type, status, total_inventory,
			   seo_title, seo_description
		FROM catalog_products
		ORDER BY position`

	ctx, end := s.tracer.Start(ctx, "ListProducts", "SELECT FROM "+table)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err = rows.Scan(
			&p.ID, &p.Title, &p.Handle, &p.Description, &p.Vendor, &p.Tags, &p.Image, &p.Price,
			&p.CreatedAt, &p.UpdatedAt, &p.ProductType, &p.Status, &p.TotalInventory,
			&p.SeoTitle, &p.SeoDescription,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Count returns the number of staged products.
func (s *Store) Count(ctx context.Context) (n int64, err error) {
	ctx, end := s.tracer.Start(ctx, "CountProducts", "SELECT count(*) FROM "+table)
	defer func() { end(err) }()

	if err = s.db.QueryRow(ctx, "SELECT count(*) FROM catalog_products").Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func values(p *domain.Product) []any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		p.ID, p.Title, p.Handle, p.Description, p.Vendor, tags, p.Image, p.Price,
		p.CreatedAt, p.UpdatedAt, p.ProductType, p.Status, p.TotalInventory,
		p.SeoTitle, p.SeoDescription,
	}
}
