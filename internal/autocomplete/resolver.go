// Package autocomplete resolves typeahead prefixes into product suggestions.
package autocomplete

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/engine"
	"github.com/AlamKhalidDev/product-search/internal/filter"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

// Suggester is the part of the engine the resolver needs.
type Suggester interface {
	Suggest(ctx context.Context, q *query.CompletionQuery) ([]domain.Product, error)
}

// Resolver turns a prefix into at most limit suggested products.
type Resolver struct {
	engine Suggester
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(eng Suggester, logger *slog.Logger) *Resolver {
	return &Resolver{engine: eng, logger: logger}
}

// Suggest returns products whose title completes prefix, in completion score
// order. A blank prefix yields an empty list without touching the engine; a
// missing index yields an empty list too.
func (r *Resolver) Suggest(ctx context.Context, prefix string, limit int) ([]domain.Product, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []domain.Product{}, nil
	}

	switch {
	case limit <= 0:
		limit = filter.DefaultAutocompleteLimit
	case limit > filter.MaxAutocompleteLimit:
		limit = filter.MaxAutocompleteLimit
	}

	products, err := r.engine.Suggest(ctx, query.Completion(prefix, limit))
	if err != nil {
		if engine.IsIndexNotFound(err) {
			r.logger.WarnContext(ctx, "autocomplete degraded: index not found", slog.String("prefix", prefix))
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("autocomplete: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}
