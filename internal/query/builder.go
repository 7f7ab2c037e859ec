package query

import (
	"encoding/json"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/pkg/pagination"
)

// Index field names.
const (
	FieldTitle          = "title"
	FieldTitleKeyword   = "title.keyword"
	FieldTitleComplete  = "title.completion"
	FieldDescription    = "description"
	FieldVendor         = "vendor"
	FieldVendorKeyword  = "vendor.keyword"
	FieldTags           = "tags"
	FieldProductType    = "productType"
	FieldStatus         = "status"
	FieldPrice          = "price"
	FieldCreatedAt      = "createdAt"
	FieldHandle         = "handle"
	FieldSeoTitle       = "seoTitle"
	FieldSeoDescription = "seoDescription"
)

// TextFields are the boosted fields searched by free text.
var TextFields = []string{
	FieldTitle + "^3",
	FieldDescription + "^2",
	FieldVendor,
	FieldTags,
	FieldProductType,
	FieldSeoTitle,
	FieldSeoDescription,
}

// Bucket caps per facet.
const (
	VendorBuckets      = 20
	ProductTypeBuckets = 20
	TagBuckets         = 40
)

// SortClause orders hits by a non-analyzed field.
type SortClause struct {
	Field string
	Order domain.SortOrder
}

func (s SortClause) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{s.Field: object{"order": s.Order}})
}

// Highlight requests marked-up fragments for Fields.
type Highlight struct {
	Fields []string
}

func (h Highlight) MarshalJSON() ([]byte, error) {
	fields := make(object, len(h.Fields))
	for _, f := range h.Fields {
		fields[f] = object{}
	}
	return json.Marshal(object{"fields": fields})
}

// FacetClause is a post-filter clause tagged with the facet it constrains.
type FacetClause struct {
	Facet  domain.Facet
	Clause Clause
}

// StructuredQuery is a complete engine search request.
type StructuredQuery struct {
	Must       []Clause
	PostFilter []FacetClause
	Aggs       []Aggregation
	Sort       []SortClause
	Highlight  *Highlight
	From       int
	Size       int
}

// PostFilterClauses returns the post-filter clauses without facet tags.
func (q *StructuredQuery) PostFilterClauses() AllOf {
	out := make(AllOf, 0, len(q.PostFilter))
	for _, fc := range q.PostFilter {
		out = append(out, fc.Clause)
	}
	return out
}

type wireQuery struct {
	Query          Must           `json:"query"`
	PostFilter     Clause         `json:"post_filter,omitempty"`
	Aggs           map[string]any `json:"aggs,omitempty"`
	Sort           []SortClause   `json:"sort,omitempty"`
	Highlight      *Highlight     `json:"highlight,omitempty"`
	From           int            `json:"from"`
	Size           int            `json:"size"`
	TrackTotalHits bool           `json:"track_total_hits"`
}

// MarshalJSON renders the Elasticsearch search body.
func (q *StructuredQuery) MarshalJSON() ([]byte, error) {
	w := wireQuery{
		Query:          Must(q.Must),
		Sort:           q.Sort,
		Highlight:      q.Highlight,
		From:           q.From,
		Size:           q.Size,
		TrackTotalHits: true,
	}
	if len(q.PostFilter) > 0 {
		w.PostFilter = q.PostFilterClauses()
	}
	if len(q.Aggs) > 0 {
		w.Aggs = make(map[string]any, len(q.Aggs))
		for _, a := range q.Aggs {
			w.Aggs[a.Name] = a
		}
	}
	return json.Marshal(w)
}

// Build translates a validated search request.
func Build(req domain.SearchRequest) *StructuredQuery {
	page := pagination.New(req.Page, req.PageSize)
	return build(req.Text, req.Filters, req.Sort, page.Offset(), page.Size)
}

func build(text string, filters domain.FilterSet, sort domain.SortSpec, from, size int) *StructuredQuery {
	q := &StructuredQuery{
		Must:       []Clause{textClause(text)},
		PostFilter: postFilter(filters),
		Sort:       sortClauses(sort),
		From:       from,
		Size:       size,
	}
	q.Aggs = aggregations(q.PostFilter)
	if text != "" {
		q.Highlight = &Highlight{Fields: []string{FieldTitle, FieldDescription}}
	}
	return q
}

func textClause(text string) Clause {
	if text == "" {
		return MatchAll{}
	}
	return MultiMatch{
		Query:     text,
		Fields:    TextFields,
		Fuzziness: "AUTO",
		Operator:  "and",
	}
}

// facetFields lists term facets in clause order.
var facetFields = []struct {
	facet domain.Facet
	field string
}{
	{domain.FacetVendor, FieldVendorKeyword},
	{domain.FacetProductType, FieldProductType},
	{domain.FacetTag, FieldTags},
	{domain.FacetStatus, FieldStatus},
}

func postFilter(filters domain.FilterSet) []FacetClause {
	var out []FacetClause
	for _, ff := range facetFields {
		values := filters.Values(ff.facet)
		switch len(values) {
		case 0:
			continue
		case 1:
			out = append(out, FacetClause{Facet: ff.facet, Clause: Term{Field: ff.field, Value: values[0]}})
		default:
			out = append(out, FacetClause{Facet: ff.facet, Clause: AnyTerm{Field: ff.field, Values: values}})
		}
	}
	if !filters.Price.IsZero() {
		out = append(out, FacetClause{
			Facet:  domain.FacetPrice,
			Clause: Range{Field: FieldPrice, Gte: filters.Price.Min, Lte: filters.Price.Max},
		})
	}
	return out
}

func aggregations(post []FacetClause) []Aggregation {
	return []Aggregation{
		{Name: AggVendors, Facet: domain.FacetVendor, Filter: excluding(post, domain.FacetVendor),
			Values: TermsAgg{Field: FieldVendorKeyword, Size: VendorBuckets}},
		{Name: AggProductTypes, Facet: domain.FacetProductType, Filter: excluding(post, domain.FacetProductType),
			Values: TermsAgg{Field: FieldProductType, Size: ProductTypeBuckets}},
		{Name: AggTags, Facet: domain.FacetTag, Filter: excluding(post, domain.FacetTag),
			Values: TermsAgg{Field: FieldTags, Size: TagBuckets}},
		{Name: AggPriceRange, Facet: domain.FacetPrice, Filter: excluding(post, domain.FacetPrice),
			Values: RangeAgg{Field: FieldPrice, Ranges: PriceBuckets()}},
	}
}

func excluding(post []FacetClause, facet domain.Facet) AllOf {
	out := AllOf{}
	for _, fc := range post {
		if fc.Facet != facet {
			out = append(out, fc.Clause)
		}
	}
	return out
}

func sortClauses(sort domain.SortSpec) []SortClause {
	order := sort.Order
	if order == "" {
		order = domain.OrderDesc
	}
	switch sort.Field {
	case domain.SortTitle:
		return []SortClause{{Field: FieldTitleKeyword, Order: order}}
	case domain.SortPrice:
		return []SortClause{{Field: FieldPrice, Order: order}}
	case domain.SortCreatedAt:
		return []SortClause{{Field: FieldCreatedAt, Order: order}}
	default:
		return nil
	}
}
