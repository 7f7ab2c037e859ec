package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/engine"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

// Config holds connection settings for the cluster.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string

	// Transport is used for every request; nil selects the client default.
	Transport http.RoundTripper
}

// Engine is an Elasticsearch-backed implementation of engine.SearchEngine.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

var _ engine.SearchEngine = (*Engine)(nil)

// esHit is one entry of hits.hits.
type esHit struct {
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    domain.Product      `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

// esSearchResponse is the structure used to decode Elasticsearch search responses.
type esSearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// esSuggestResponse is the structure used to decode completion suggester responses.
type esSuggestResponse struct {
	Suggest map[string][]struct {
		Options []struct {
			Source domain.Product `json:"_source"`
		} `json:"options"`
	} `json:"suggest"`
}

// esBulkResponse is the structure used to decode Elasticsearch bulk responses.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// esErrorResponse is used to decode Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

const indexNotFound = "index_not_found_exception"

// New creates a client for the given cluster. It does not contact the
// cluster; call Ping to verify connectivity.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = engine.DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,

		// Engine calls are bounded by the caller's deadline and not retried.
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	return &Engine{
		client:    client,
		indexName: cfg.Index,
		logger:    logger,
	}, nil
}

// IndexName returns the index this engine reads and writes.
func (e *Engine) IndexName() string {
	return e.indexName
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// Close releases client resources.
func (e *Engine) Close() error {
	return nil
}

// Search executes a structured query. A missing index yields
// engine.ErrIndexNotFound.
func (e *Engine) Search(ctx context.Context, q *query.StructuredQuery) (*engine.SearchResponse, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &engine.Error{Op: "elasticsearch search", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("search", res, true)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	hits := make([]engine.Hit, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		hit := engine.Hit{Product: h.Source, Highlight: highlightOf(h.Highlight)}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		hits = append(hits, hit)
	}

	return &engine.SearchResponse{
		Hits:         hits,
		Total:        esResp.Hits.Total.Value,
		TookMs:       esResp.Took,
		Aggregations: esResp.Aggregations,
	}, nil
}

func highlightOf(h map[string][]string) *domain.Highlight {
	if len(h) == 0 {
		return nil
	}
	return &domain.Highlight{
		Title:       h[query.FieldTitle],
		Description: h[query.FieldDescription],
	}
}

// Suggest runs a completion query and returns the suggested documents in
// suggester order.
func (e *Engine) Suggest(ctx context.Context, q *query.CompletionQuery) ([]domain.Product, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &engine.Error{Op: "elasticsearch suggest", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("suggest", res, true)
	}

	var esResp esSuggestResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch suggest: decode response: %w", err)
	}

	products := []domain.Product{}
	entries := esResp.Suggest[query.SuggestName]
	if len(entries) == 0 {
		return products, nil
	}
	for _, opt := range entries[0].Options {
		products = append(products, opt.Source)
	}
	return products, nil
}

// GetByHandle returns the product with the given handle or engine.ErrNotFound.
func (e *Engine) GetByHandle(ctx context.Context, handle string) (*domain.Product, error) {
	body, err := json.Marshal(map[string]any{
		"query": query.Term{Field: query.FieldHandle, Value: handle},
		"size":  1,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch get by handle: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &engine.Error{Op: "elasticsearch get by handle", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("get by handle", res, true)
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch get by handle: decode response: %w", err)
	}
	if len(esResp.Hits.Hits) == 0 {
		return nil, engine.ErrNotFound
	}
	p := esResp.Hits.Hits[0].Source
	return &p, nil
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	exists, err := e.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		e.logger.Info("elasticsearch index already exists", "index", e.indexName)
		return nil
	}
	return e.createIndex(ctx)
}

// CreateIndex drops the index if present and recreates it with the mapping.
func (e *Engine) CreateIndex(ctx context.Context) error {
	exists, err := e.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := e.DeleteIndex(ctx); err != nil {
			return err
		}
	}
	return e.createIndex(ctx)
}

func (e *Engine) indexExists(ctx context.Context) (bool, error) {
	res, err := e.client.Indices.Exists(
		[]string{e.indexName},
		e.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("check index exists: unexpected status %s", res.Status())
	}
}

func (e *Engine) createIndex(ctx context.Context) error {
	res, err := e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res, false)
	}

	e.logger.Info("elasticsearch index created", "index", e.indexName)
	return nil
}

// DeleteIndex removes the entire index. A missing index is not an error.
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete(
		[]string{e.indexName},
		e.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res, false)
	}

	e.logger.Info("elasticsearch index deleted", "index", e.indexName)
	return nil
}

// Refresh makes recent writes visible to search.
func (e *Engine) Refresh(ctx context.Context) error {
	res, err := e.client.Indices.Refresh(
		e.client.Indices.Refresh.WithIndex(e.indexName),
		e.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch refresh: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("refresh", res, true)
	}
	return nil
}

// Index adds or updates a single product, visible to search on return.
func (e *Engine) Index(ctx context.Context, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal product: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(product.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("index", res, false)
	}

	e.logger.Debug("indexed product", "id", product.ID, "title", product.Title)
	return nil
}

// Delete removes a product by ID. A missing document is not an error.
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(
		e.indexName,
		id,
		e.client.Delete.WithRefresh("true"),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res, false)
	}

	e.logger.Debug("deleted product", "id", id)
	return nil
}

// BulkIndex writes products in batches of engine.BulkBatchSize without
// refreshing; call Refresh once ingestion is complete.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.Product) error {
	for i, batch := range engine.Batches(products, engine.BulkBatchSize) {
		if err := e.bulk(ctx, batch); err != nil {
			return fmt.Errorf("elasticsearch bulk index: batch %d: %w", i, err)
		}
	}
	e.logger.Info("bulk indexed products", "count", len(products))
	return nil
}

func (e *Engine) bulk(ctx context.Context, products []domain.Product) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for i := range products {
		action := map[string]any{
			"index": map[string]any{
				"_index": e.indexName,
				"_id":    products[i].ID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode action: %w", err)
		}
		if err := enc.Encode(products[i]); err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("false"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("bulk", res, false)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("partial errors: %s", strings.Join(errMsgs, "; "))
	}
	return nil
}

// responseError classifies an error response. When missingIndex is set, a
// 404 or index_not_found_exception maps to engine.ErrIndexNotFound.
func responseError(op string, res *esapi.Response, missingIndex bool) error {
	var errResp esErrorResponse
	decoded := json.NewDecoder(res.Body).Decode(&errResp) == nil && errResp.Error.Type != ""

	if missingIndex && (errResp.Error.Type == indexNotFound || (res.StatusCode == http.StatusNotFound && !decoded)) {
		return fmt.Errorf("elasticsearch %s: %w", op, engine.ErrIndexNotFound)
	}

	engErr := &engine.Error{Op: "elasticsearch " + op, Status: res.StatusCode}
	if decoded {
		engErr.Type = errResp.Error.Type
		engErr.Reason = errResp.Error.Reason
	}
	return engErr
}
