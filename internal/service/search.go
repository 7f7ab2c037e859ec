package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AlamKhalidDev/product-search/internal/autocomplete"
	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/engine"
	"github.com/AlamKhalidDev/product-search/internal/facet"
	"github.com/AlamKhalidDev/product-search/internal/query"
	apperrors "github.com/AlamKhalidDev/product-search/pkg/errors"
	"github.com/AlamKhalidDev/product-search/pkg/httpclient"
	"github.com/AlamKhalidDev/product-search/pkg/pagination"
	"github.com/AlamKhalidDev/product-search/pkg/tracing"
)

// DefaultEngineTimeout bounds a single engine call.
const DefaultEngineTimeout = 5 * time.Second

var tracer = tracing.Tracer("search-service")

// SearchService runs searches, completions and product lookups against the
// engine, and keeps the index in sync with the catalog.
type SearchService struct {
	engine    engine.SearchEngine
	completer *autocomplete.Resolver
	catalog   CatalogSource
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSearchService creates a new search service. catalog may be nil when the
// deployment has no staging store; Reindex then fails.
func NewSearchService(eng engine.SearchEngine, catalog CatalogSource, timeout time.Duration, logger *slog.Logger) *SearchService {
	if timeout <= 0 {
		timeout = DefaultEngineTimeout
	}
	return &SearchService{
		engine:    eng,
		completer: autocomplete.NewResolver(eng, logger),
		catalog:   catalog,
		timeout:   timeout,
		logger:    logger,
	}
}

// Search executes a normalized search request. A missing index yields an
// empty result rather than an error.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	page := pagination.New(req.Page, req.PageSize)
	if !page.InWindow(pagination.MaxWindow) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("page %d is beyond the first %d results", page.Page, pagination.MaxWindow))
	}
	q := query.Build(req)

	ctx, span := tracer.Start(ctx, "SearchService.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.text", req.Text),
		attribute.Int("search.page", page.Page),
		attribute.Int("search.size", page.Size),
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.engine.Search(ctx, q)
	if err != nil {
		if engine.IsIndexNotFound(err) {
			degradedTotal.WithLabelValues("search").Inc()
			s.logger.WarnContext(ctx, "search degraded: index not found")
			return domain.EmptySearchResult(page.Page, page.Size), nil
		}
		observe("search", err)
		tracing.RecordError(span, err)
		return nil, unavailable(fmt.Errorf("search: %w", err))
	}
	observe("search", nil)

	products := make([]domain.ProductHit, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		products = append(products, domain.ProductHit{Product: h.Product, Highlight: h.Highlight})
	}

	meta := pagination.NewMeta(resp.Total, page)
	span.SetAttributes(attribute.Int("search.total", resp.Total))

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", req.Text),
		slog.Int("total", resp.Total),
		slog.Int64("took_ms", resp.TookMs),
	)

	return &domain.SearchResult{
		Products:     products,
		Total:        resp.Total,
		Page:         meta.Page,
		Size:         meta.Size,
		TotalPages:   meta.TotalPages,
		Aggregations: facet.Reshape(resp.Aggregations),
	}, nil
}

// Suggest returns typeahead suggestions for prefix.
func (s *SearchService) Suggest(ctx context.Context, req domain.AutocompleteRequest) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "SearchService.Suggest")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.completer.Suggest(ctx, req.Prefix, req.Limit)
	observe("suggest", err)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, unavailable(err)
	}
	return products, nil
}

// GetProduct returns the product with the given handle.
func (s *SearchService) GetProduct(ctx context.Context, handle string) (*domain.Product, error) {
	if handle == "" {
		return nil, apperrors.InvalidInput("handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.engine.GetByHandle(ctx, handle)
	switch {
	case err == nil:
		observe("get", nil)
		return p, nil
	case errors.Is(err, engine.ErrNotFound), engine.IsIndexNotFound(err):
		observe("get", nil)
		return nil, apperrors.NotFound("product", handle)
	default:
		observe("get", err)
		return nil, unavailable(fmt.Errorf("get product: %w", err))
	}
}

// unavailable maps an open breaker or an exhausted engine deadline to 503 so
// clients retry instead of treating the failure as a server bug.
func unavailable(err error) error {
	if errors.Is(err, httpclient.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ServiceUnavailable("search engine unavailable", err)
	}
	return err
}
