package catalog

import (
	"context"

	"github.com/AlamKhalidDev/product-search/internal/domain"
)

// Store is a staging store the index is rebuilt from. Load order is kept so
// reindexing is deterministic.
type Store interface {
	// Replace swaps the whole staged catalog and returns the rows written.
	Replace(ctx context.Context, products []domain.Product) (int64, error)
	Upsert(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
	Count(ctx context.Context) (int64, error)
}
