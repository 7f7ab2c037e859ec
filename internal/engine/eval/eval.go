// Package eval executes structured queries over products held in process.
// It backs the memory and bleve engines so that every backend answers a
// query with the same hits, facets and ordering rules.
package eval

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/engine"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

// Doc is a stored product and its insertion sequence, which breaks ties.
type Doc struct {
	Product domain.Product
	Seq     int64
}

// SortBySeq orders docs by insertion.
func SortBySeq(docs []Doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
}

// Scorer scores a document against the main query. Zero excludes it.
type Scorer func(d *Doc) float64

// MustScorer scores documents with the query's must clauses.
func MustScorer(q *query.StructuredQuery) Scorer {
	return func(d *Doc) float64 {
		if len(q.Must) == 0 {
			return 1
		}
		total := 0.0
		for _, c := range q.Must {
			s := score(&d.Product, c)
			if s == 0 {
				return 0
			}
			total += s
		}
		return total
	}
}

type scored struct {
	doc   *Doc
	score float64
}

// Search runs q over docs.
func Search(docs []Doc, q *query.StructuredQuery, scorer Scorer) *engine.SearchResponse {
	start := time.Now()

	matched := make([]scored, 0, len(docs))
	for i := range docs {
		if s := scorer(&docs[i]); s > 0 {
			matched = append(matched, scored{doc: &docs[i], score: s})
		}
	}

	post := q.PostFilterClauses()
	hits := make([]scored, 0, len(matched))
	for _, m := range matched {
		if matches(&m.doc.Product, post) {
			hits = append(hits, m)
		}
	}
	sortHits(hits, q.Sort)

	aggs := make(map[string]json.RawMessage, len(q.Aggs))
	for _, a := range q.Aggs {
		aggs[a.Name] = aggregate(matched, a)
	}

	resp := &engine.SearchResponse{
		Hits:         []engine.Hit{},
		Total:        len(hits),
		Aggregations: aggs,
	}

	terms, fuzziness := highlightTerms(q)
	from := max(q.From, 0)
	end := min(from+q.Size, len(hits))
	for i := from; i < end; i++ {
		h := engine.Hit{Product: hits[i].doc.Product, Score: hits[i].score}
		if q.Highlight != nil && len(terms) > 0 {
			h.Highlight = highlightOf(&h.Product, q.Highlight.Fields, terms, fuzziness)
		}
		resp.Hits = append(resp.Hits, h)
	}
	resp.TookMs = time.Since(start).Milliseconds()
	return resp
}

func sortHits(hits []scored, clauses []query.SortClause) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		for _, c := range clauses {
			cmp := compareField(&a.doc.Product, &b.doc.Product, c.Field)
			if cmp == 0 {
				continue
			}
			if c.Order == domain.OrderAsc {
				return cmp < 0
			}
			return cmp > 0
		}
		if len(clauses) == 0 && a.score != b.score {
			return a.score > b.score
		}
		return a.doc.Seq < b.doc.Seq
	})
}

func compareField(a, b *domain.Product, field string) int {
	switch field {
	case query.FieldPrice:
		return compareFloat(a.Price, b.Price)
	case query.FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case query.FieldTitleKeyword:
		return strings.Compare(a.Title, b.Title)
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type bucketJSON struct {
	Key      any      `json:"key"`
	From     *float64 `json:"from,omitempty"`
	To       *float64 `json:"to,omitempty"`
	DocCount int64    `json:"doc_count"`
}

type aggJSON struct {
	DocCount int64 `json:"doc_count"`
	Values   struct {
		Buckets []bucketJSON `json:"buckets"`
	} `json:"values"`
}

// aggregate computes one facet aggregation in the wrapped shape the engine
// returns: {"doc_count": n, "values": {"buckets": [...]}}.
func aggregate(matched []scored, a query.Aggregation) json.RawMessage {
	var in []*domain.Product
	for _, m := range matched {
		if matches(&m.doc.Product, a.Filter) {
			in = append(in, &m.doc.Product)
		}
	}

	out := aggJSON{DocCount: int64(len(in))}
	switch v := a.Values.(type) {
	case query.TermsAgg:
		out.Values.Buckets = termBuckets(in, v)
	case query.RangeAgg:
		out.Values.Buckets = rangeBuckets(in, v)
	}
	if out.Values.Buckets == nil {
		out.Values.Buckets = []bucketJSON{}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// termBuckets orders by count descending then key ascending, capped at Size.
func termBuckets(in []*domain.Product, t query.TermsAgg) []bucketJSON {
	counts := map[string]int64{}
	for _, p := range in {
		seen := map[string]bool{}
		for _, v := range keywordsOf(p, t.Field) {
			if seen[v] {
				continue
			}
			seen[v] = true
			counts[v]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if t.Size > 0 && len(keys) > t.Size {
		keys = keys[:t.Size]
	}

	out := make([]bucketJSON, 0, len(keys))
	for _, k := range keys {
		out = append(out, bucketJSON{Key: k, DocCount: counts[k]})
	}
	return out
}

func rangeBuckets(in []*domain.Product, r query.RangeAgg) []bucketJSON {
	out := make([]bucketJSON, 0, len(r.Ranges))
	for _, rb := range r.Ranges {
		b := bucketJSON{Key: rb.Key, From: rb.From, To: rb.To}
		for _, p := range in {
			if v, ok := numberOf(p, r.Field); ok && rb.Contains(v) {
				b.DocCount++
			}
		}
		out = append(out, b)
	}
	return out
}

// highlightTerms collects the free-text terms of the main query.
func highlightTerms(q *query.StructuredQuery) (terms []string, fuzziness string) {
	for _, c := range q.Must {
		if m, ok := c.(query.MultiMatch); ok {
			return Tokenize(m.Query), m.Fuzziness
		}
	}
	return nil, ""
}

func highlightOf(p *domain.Product, fields []string, terms []string, fuzziness string) *domain.Highlight {
	h := &domain.Highlight{}
	for _, f := range fields {
		switch f {
		case query.FieldTitle:
			h.Title = highlight(p.Title, terms, fuzziness)
		case query.FieldDescription:
			h.Description = highlight(p.Description, terms, fuzziness)
		}
	}
	if h.Empty() {
		return nil
	}
	return h
}

// Suggest answers a completion query: titles starting with the prefix rank
// ahead of fuzzy prefix matches, then shorter titles first.
func Suggest(docs []Doc, q *query.CompletionQuery) []domain.Product {
	prefix := strings.ToLower(strings.TrimSpace(q.Prefix))
	out := []domain.Product{}
	if prefix == "" {
		return out
	}

	type candidate struct {
		doc   *Doc
		exact bool
	}
	var found []candidate
	for i := range docs {
		title := strings.ToLower(docs[i].Product.Title)
		switch {
		case strings.HasPrefix(title, prefix):
			found = append(found, candidate{doc: &docs[i], exact: true})
		case q.Fuzziness == "AUTO" && fuzzyPrefix(title, prefix):
			found = append(found, candidate{doc: &docs[i]})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.exact != b.exact {
			return a.exact
		}
		la, lb := utf8.RuneCountInString(a.doc.Product.Title), utf8.RuneCountInString(b.doc.Product.Title)
		if la != lb {
			return la < lb
		}
		return a.doc.Seq < b.doc.Seq
	})

	for _, c := range found {
		if q.Size > 0 && len(out) >= q.Size {
			break
		}
		out = append(out, c.doc.Product)
	}
	return out
}

// fuzzyPrefix keeps the first character fixed and allows AUTO edits on the
// rest of a prefix of at least three characters.
func fuzzyPrefix(title, prefix string) bool {
	pr := []rune(prefix)
	tr := []rune(title)
	if len(pr) < 3 || len(tr) == 0 || tr[0] != pr[0] {
		return false
	}
	edits := AutoFuzziness(prefix)
	for n := len(pr) - edits; n <= len(pr)+edits; n++ {
		if n < 1 || n > len(tr) {
			continue
		}
		if editDistance(string(tr[:n]), prefix) <= edits {
			return true
		}
	}
	return false
}
