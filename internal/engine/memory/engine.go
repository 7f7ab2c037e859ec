package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/engine"
	"github.com/AlamKhalidDev/product-search/internal/engine/eval"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

// Engine is an in-memory implementation of engine.SearchEngine. It evaluates
// the same structured queries the Elasticsearch backend sends over the wire.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu     sync.RWMutex
	docs   map[string]eval.Doc
	seq    int64
	exists bool
}

var _ engine.SearchEngine = (*Engine)(nil)

// New creates an engine whose index already exists and is empty.
func New() *Engine {
	return &Engine{
		docs:   make(map[string]eval.Doc),
		exists: true,
	}
}

// snapshot returns the stored documents in insertion order.
func (e *Engine) snapshot() ([]eval.Doc, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.exists {
		return nil, engine.ErrIndexNotFound
	}
	docs := make([]eval.Doc, 0, len(e.docs))
	for _, d := range e.docs {
		docs = append(docs, d)
	}
	eval.SortBySeq(docs)
	return docs, nil
}

// Search executes q against the stored products.
func (e *Engine) Search(ctx context.Context, q *query.StructuredQuery) (*engine.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	docs, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return eval.Search(docs, q, eval.MustScorer(q)), nil
}

// Suggest returns products whose title completes the prefix.
func (e *Engine) Suggest(ctx context.Context, q *query.CompletionQuery) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory suggest: %w", err)
	}
	docs, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return eval.Suggest(docs, q), nil
}

// GetByHandle returns the product with the given handle.
func (e *Engine) GetByHandle(_ context.Context, handle string) (*domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.exists {
		return nil, engine.ErrIndexNotFound
	}
	for _, d := range e.docs {
		if d.Product.Handle == handle {
			p := d.Product
			return &p, nil
		}
	}
	return nil, engine.ErrNotFound
}

// CreateIndex drops any stored products and recreates the index.
func (e *Engine) CreateIndex(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs = make(map[string]eval.Doc)
	e.exists = true
	return nil
}

// DeleteIndex removes the index. Searches fail with ErrIndexNotFound until
// it is recreated or a product is indexed.
func (e *Engine) DeleteIndex(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs = make(map[string]eval.Doc)
	e.exists = false
	return nil
}

// Index adds or replaces a single product.
func (e *Engine) Index(_ context.Context, product *domain.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.put(*product)
	return nil
}

// put stores p, keeping the original sequence on replacement. Callers hold mu.
func (e *Engine) put(p domain.Product) {
	e.exists = true
	if old, ok := e.docs[p.ID]; ok {
		e.docs[p.ID] = eval.Doc{Product: p, Seq: old.Seq}
		return
	}
	e.seq++
	e.docs[p.ID] = eval.Doc{Product: p, Seq: e.seq}
}

// Delete removes a product by ID. Unknown IDs are ignored.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, id)
	return nil
}

// BulkIndex stores products in batches of engine.BulkBatchSize.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.Product) error {
	for _, batch := range engine.Batches(products, engine.BulkBatchSize) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("memory bulk index: %w", err)
		}
		e.mu.Lock()
		for _, p := range batch {
			e.put(p)
		}
		e.mu.Unlock()
	}
	return nil
}

// Refresh is a no-op; writes are visible immediately.
func (e *Engine) Refresh(_ context.Context) error { return nil }

// Ping always succeeds.
func (e *Engine) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (e *Engine) Close() error { return nil }

// Count returns the number of stored products.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}
