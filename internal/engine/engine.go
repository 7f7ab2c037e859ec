package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

// DefaultIndexName is the product index used when none is configured.
const DefaultIndexName = "products"

// BulkBatchSize bounds the number of documents sent per bulk request.
const BulkBatchSize = 1000

// ErrIndexNotFound is returned when the product index does not exist.
var ErrIndexNotFound = errors.New("index not found")

// ErrNotFound is returned by GetByHandle when no product has the handle.
var ErrNotFound = errors.New("document not found")

// Error is a failure reported by the search engine.
type Error struct {
	Op     string
	Status int
	Type   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Type != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Type, e.Reason)
	default:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hit is one matching document.
type Hit struct {
	Product   domain.Product
	Score     float64
	Highlight *domain.Highlight
}

// SearchResponse is the engine's answer to a StructuredQuery. Aggregations
// are kept raw, keyed by aggregation name.
type SearchResponse struct {
	Hits         []Hit
	Total        int
	TookMs       int64
	Aggregations map[string]json.RawMessage
}

// Searcher runs read queries.
type Searcher interface {
	Search(ctx context.Context, q *query.StructuredQuery) (*SearchResponse, error)
	Suggest(ctx context.Context, q *query.CompletionQuery) ([]domain.Product, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Product, error)
}

// Indexer maintains the index. Only ingestion paths use it.
type Indexer interface {
	CreateIndex(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
	Index(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	BulkIndex(ctx context.Context, products []domain.Product) error
	Refresh(ctx context.Context) error
}

// SearchEngine is implemented by every backend.
type SearchEngine interface {
	Searcher
	Indexer
	Ping(ctx context.Context) error
	Close() error
}

// Batches splits products into chunks of at most size.
func Batches(products []domain.Product, size int) [][]domain.Product {
	if size <= 0 {
		size = BulkBatchSize
	}
	var out [][]domain.Product
	for start := 0; start < len(products); start += size {
		end := min(start+size, len(products))
		out = append(out, products[start:end])
	}
	return out
}

// IsIndexNotFound reports whether err means the product index is missing.
func IsIndexNotFound(err error) bool {
	return errors.Is(err, ErrIndexNotFound)
}
