// Package bleveindex is an embedded search backend built on Bleve. Free text
// is matched and scored by Bleve; facet filters, aggregations and ordering
// are evaluated over the stored products.
package bleveindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/engine"
	"github.com/AlamKhalidDev/product-search/internal/engine/eval"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

const (
	fieldSource = "source"
	fieldSeq    = "seq"
)

// textFields are analyzed with the standard analyzer.
var textFields = []string{
	query.FieldTitle,
	query.FieldDescription,
	query.FieldVendor,
	query.FieldTags,
	query.FieldProductType,
	query.FieldSeoTitle,
	query.FieldSeoDescription,
}

// Config selects where the index lives. An empty Path keeps it in memory.
type Config struct {
	Path string
}

// Engine implements engine.SearchEngine over a Bleve index.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	index  bleve.Index
	docs   map[string]eval.Doc
	seq    int64
	closed bool
}

var _ engine.SearchEngine = (*Engine)(nil)

// New opens the index at cfg.Path, or creates it when absent.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	e := &Engine{cfg: cfg, logger: logger, docs: make(map[string]eval.Doc)}

	if cfg.Path != "" {
		if _, err := os.Stat(cfg.Path); err == nil {
			idx, openErr := bleve.Open(cfg.Path)
			if openErr != nil {
				return nil, fmt.Errorf("bleve open %s: %w", cfg.Path, openErr)
			}
			e.index = idx
			if err := e.load(); err != nil {
				_ = idx.Close()
				return nil, err
			}
			logger.Info("bleve index opened", slog.String("path", cfg.Path), slog.Int("documents", len(e.docs)))
			return e, nil
		}
	}

	if err := e.open(); err != nil {
		return nil, err
	}
	return e, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	for _, f := range textFields {
		doc.AddFieldMappingsAt(f, text)
	}

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	kw.Store = false
	kw.IncludeInAll = false
	doc.AddFieldMappingsAt(query.FieldHandle, kw)

	src := bleve.NewTextFieldMapping()
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.DocValues = false
	doc.AddFieldMappingsAt(fieldSource, src)

	seq := bleve.NewNumericFieldMapping()
	seq.Store = true
	seq.IncludeInAll = false
	doc.AddFieldMappingsAt(fieldSeq, seq)

	im.DefaultMapping = doc
	return im
}

// open creates a fresh index. Callers hold mu or own e exclusively.
func (e *Engine) open() error {
	var (
		idx bleve.Index
		err error
	)
	if e.cfg.Path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		idx, err = bleve.New(e.cfg.Path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("bleve create index: %w", err)
	}
	e.index = idx
	e.docs = make(map[string]eval.Doc)
	e.seq = 0
	return nil
}

// load rebuilds the product table from stored sources.
func (e *Engine) load() error {
	count, err := e.index.DocCount()
	if err != nil {
		return fmt.Errorf("bleve doc count: %w", err)
	}
	if count == 0 {
		return nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = []string{fieldSource, fieldSeq}
	res, err := e.index.Search(req)
	if err != nil {
		return fmt.Errorf("bleve load: %w", err)
	}
	for _, hit := range res.Hits {
		raw, _ := hit.Fields[fieldSource].(string)
		var p domain.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return fmt.Errorf("bleve load %s: %w", hit.ID, err)
		}
		seq, _ := hit.Fields[fieldSeq].(float64)
		d := eval.Doc{Product: p, Seq: int64(seq)}
		e.docs[hit.ID] = d
		e.seq = max(e.seq, d.Seq)
	}
	return nil
}

func document(d eval.Doc) (map[string]any, error) {
	src, err := json.Marshal(d.Product)
	if err != nil {
		return nil, fmt.Errorf("marshal product %s: %w", d.Product.ID, err)
	}
	p := d.Product
	return map[string]any{
		query.FieldTitle:          p.Title,
		query.FieldDescription:    p.Description,
		query.FieldVendor:         p.Vendor,
		query.FieldTags:           p.Tags,
		query.FieldProductType:    p.ProductType,
		query.FieldSeoTitle:       p.SeoTitle,
		query.FieldSeoDescription: p.SeoDescription,
		query.FieldHandle:         p.Handle,
		fieldSource:               string(src),
		fieldSeq:                  float64(d.Seq),
	}, nil
}

// snapshot returns stored documents in insertion order.
func (e *Engine) snapshot() []eval.Doc {
	docs := make([]eval.Doc, 0, len(e.docs))
	for _, d := range e.docs {
		docs = append(docs, d)
	}
	eval.SortBySeq(docs)
	return docs
}

// Search matches free text with Bleve and evaluates filters and facets over
// the matched products.
func (e *Engine) Search(ctx context.Context, q *query.StructuredQuery) (*engine.SearchResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil {
		return nil, engine.ErrIndexNotFound
	}

	scorer := eval.MustScorer(q)
	if m, ok := textClause(q); ok {
		scores, err := e.textScores(ctx, m)
		if err != nil {
			return nil, &engine.Error{Op: "bleve search", Err: err}
		}
		scorer = func(d *eval.Doc) float64 { return scores[d.Product.ID] }
	}
	return eval.Search(e.snapshot(), q, scorer), nil
}

func textClause(q *query.StructuredQuery) (query.MultiMatch, bool) {
	for _, c := range q.Must {
		if m, ok := c.(query.MultiMatch); ok {
			return m, true
		}
	}
	return query.MultiMatch{}, false
}

// textScores returns the Bleve score of every product matching m.
func (e *Engine) textScores(ctx context.Context, m query.MultiMatch) (map[string]float64, error) {
	scores := map[string]float64{}
	q := matchQuery(m)
	if q == nil || len(e.docs) == 0 {
		return scores, nil
	}

	req := bleve.NewSearchRequest(q)
	req.Size = len(e.docs)
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, hit := range res.Hits {
		// Bleve scores can be tiny; keep every hit strictly positive.
		scores[hit.ID] = math.Max(hit.Score, math.SmallestNonzeroFloat64)
	}
	return scores, nil
}

// matchQuery is best-fields: a disjunction over fields, where each field is a
// conjunction of per-term fuzzy matches when the operator is "and".
func matchQuery(m query.MultiMatch) blevequery.Query {
	terms := eval.Tokenize(m.Query)
	if len(terms) == 0 {
		return nil
	}

	perField := make([]blevequery.Query, 0, len(m.Fields))
	for _, f := range m.Fields {
		name, boost := eval.SplitBoost(f)
		termQueries := make([]blevequery.Query, 0, len(terms))
		for _, term := range terms {
			tq := bleve.NewMatchQuery(term)
			tq.SetField(name)
			if m.Fuzziness == "AUTO" {
				tq.SetFuzziness(eval.AutoFuzziness(term))
			}
			termQueries = append(termQueries, tq)
		}

		var fq blevequery.Query
		if m.Operator == "and" {
			cq := bleve.NewConjunctionQuery(termQueries...)
			cq.SetBoost(boost)
			fq = cq
		} else {
			dq := bleve.NewDisjunctionQuery(termQueries...)
			dq.SetBoost(boost)
			fq = dq
		}
		perField = append(perField, fq)
	}
	return bleve.NewDisjunctionQuery(perField...)
}

// Suggest completes titles from the stored products.
func (e *Engine) Suggest(_ context.Context, q *query.CompletionQuery) ([]domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil {
		return nil, engine.ErrIndexNotFound
	}
	return eval.Suggest(e.snapshot(), q), nil
}

// GetByHandle looks the handle up in the keyword-analyzed handle field.
func (e *Engine) GetByHandle(ctx context.Context, handle string) (*domain.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil {
		return nil, engine.ErrIndexNotFound
	}

	tq := bleve.NewTermQuery(handle)
	tq.SetField(query.FieldHandle)
	req := bleve.NewSearchRequest(tq)
	req.Size = 1
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, &engine.Error{Op: "bleve get by handle", Err: err}
	}
	if len(res.Hits) == 0 {
		return nil, engine.ErrNotFound
	}
	d, ok := e.docs[res.Hits[0].ID]
	if !ok {
		return nil, engine.ErrNotFound
	}
	p := d.Product
	return &p, nil
}

// CreateIndex drops the index if present and creates an empty one.
func (e *Engine) CreateIndex(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.drop(); err != nil {
		return err
	}
	return e.open()
}

// DeleteIndex drops the index. A missing index is not an error.
func (e *Engine) DeleteIndex(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.drop()
}

func (e *Engine) drop() error {
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			return fmt.Errorf("bleve close: %w", err)
		}
		e.index = nil
	}
	if e.cfg.Path != "" {
		if err := os.RemoveAll(e.cfg.Path); err != nil {
			return fmt.Errorf("bleve remove %s: %w", e.cfg.Path, err)
		}
	}
	e.docs = make(map[string]eval.Doc)
	return nil
}

// ensure creates the index on first write. Callers hold mu.
func (e *Engine) ensure() error {
	if e.index != nil {
		return nil
	}
	return e.open()
}

// next assigns the document sequence, keeping it on replacement.
func (e *Engine) next(p domain.Product) eval.Doc {
	if old, ok := e.docs[p.ID]; ok {
		return eval.Doc{Product: p, Seq: old.Seq}
	}
	e.seq++
	return eval.Doc{Product: p, Seq: e.seq}
}

// Index adds or replaces a single product.
func (e *Engine) Index(_ context.Context, product *domain.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensure(); err != nil {
		return err
	}
	d := e.next(*product)
	doc, err := document(d)
	if err != nil {
		return err
	}
	if err := e.index.Index(product.ID, doc); err != nil {
		return &engine.Error{Op: "bleve index", Err: err}
	}
	e.docs[product.ID] = d
	return nil
}

// Delete removes a product by ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.index == nil {
		return nil
	}
	if err := e.index.Delete(id); err != nil {
		return &engine.Error{Op: "bleve delete", Err: err}
	}
	delete(e.docs, id)
	return nil
}

// BulkIndex writes products in Bleve batches of engine.BulkBatchSize.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensure(); err != nil {
		return err
	}
	for _, chunk := range engine.Batches(products, engine.BulkBatchSize) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("bleve bulk index: %w", err)
		}
		batch := e.index.NewBatch()
		staged := make([]eval.Doc, 0, len(chunk))
		for _, p := range chunk {
			d := e.next(p)
			doc, err := document(d)
			if err != nil {
				return err
			}
			if err := batch.Index(p.ID, doc); err != nil {
				return &engine.Error{Op: "bleve bulk index", Err: err}
			}
			staged = append(staged, d)
		}
		if err := e.index.Batch(batch); err != nil {
			return &engine.Error{Op: "bleve bulk index", Err: err}
		}
		for _, d := range staged {
			e.docs[d.Product.ID] = d
		}
		e.logger.Debug("bleve batch indexed", slog.Int("documents", len(staged)))
	}
	return nil
}

// Refresh is a no-op; Bleve writes are searchable once applied.
func (e *Engine) Refresh(_ context.Context) error { return nil }

// Ping fails once the engine is closed.
func (e *Engine) Ping(_ context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return errors.New("bleve engine closed")
	}
	return nil
}

// Close closes the underlying index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.index == nil {
		return nil
	}
	err := e.index.Close()
	e.index = nil
	return err
}
