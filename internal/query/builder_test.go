package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlamKhalidDev/product-search/internal/domain"
)

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func status(s domain.Status) *domain.Status { return &s }

func price(f float64) *float64 { return &f }

func request(text string, filters domain.FilterSet) domain.SearchRequest {
	return domain.SearchRequest{
		Text:     text,
		Filters:  filters,
		Sort:     domain.DefaultSort(),
		Page:     1,
		PageSize: 10,
	}
}

func facetsOf(q *StructuredQuery) []domain.Facet {
	var out []domain.Facet
	for _, fc := range q.PostFilter {
		out = append(out, fc.Facet)
	}
	return out
}

func TestBuild_EmptyTextMatchesAll(t *testing.T) {
	q := Build(request("", domain.FilterSet{}))

	require.Len(t, q.Must, 1)
	assert.Equal(t, MatchAll{}, q.Must[0])
	assert.Nil(t, q.Highlight)
	assert.Empty(t, q.PostFilter)

	body := toMap(t, q)
	assert.NotContains(t, body, "post_filter")
	assert.NotContains(t, body, "sort")
	assert.NotContains(t, body, "highlight")
	assert.Equal(t, true, body["track_total_hits"])
	assert.Equal(t, map[string]any{"bool": map[string]any{"must": []any{map[string]any{"match_all": map[string]any{}}}}}, body["query"])
}

func TestBuild_TextIsFuzzyMultiMatch(t *testing.T) {
	q := Build(request("blue shirt", domain.FilterSet{}))

	mm, ok := q.Must[0].(MultiMatch)
	require.True(t, ok)
	assert.Equal(t, "blue shirt", mm.Query)
	assert.Equal(t, "AUTO", mm.Fuzziness)
	assert.Equal(t, "and", mm.Operator)
	assert.Equal(t, []string{"title^3", "description^2", "vendor", "tags", "productType", "seoTitle", "seoDescription"}, mm.Fields)

	require.NotNil(t, q.Highlight)
	assert.Equal(t, []string{"title", "description"}, q.Highlight.Fields)
	body := toMap(t, q)
	assert.Equal(t, map[string]any{"fields": map[string]any{"title": map[string]any{}, "description": map[string]any{}}}, body["highlight"])
}

func TestBuild_OneClausePerNonEmptyFacet(t *testing.T) {
	tests := []struct {
		name    string
		filters domain.FilterSet
		want    []domain.Facet
	}{
		{"none", domain.FilterSet{}, nil},
		{"vendor only", domain.FilterSet{Vendors: []string{"Acme"}}, []domain.Facet{domain.FacetVendor}},
		{"empty slices absent", domain.FilterSet{Vendors: []string{}, Tags: nil}, nil},
		{"all", domain.FilterSet{
			Vendors:      []string{"Acme", "Zenith"},
			ProductTypes: []string{"Shirts"},
			Tags:         []string{"summer", "sale"},
			Status:       status(domain.StatusActive),
			Price:        domain.PriceRange{Min: price(10)},
		}, []domain.Facet{domain.FacetVendor, domain.FacetProductType, domain.FacetTag, domain.FacetStatus, domain.FacetPrice}},
		{"price max only", domain.FilterSet{Price: domain.PriceRange{Max: price(5)}}, []domain.Facet{domain.FacetPrice}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Build(request("", tt.filters))
			assert.Equal(t, tt.want, facetsOf(q))
			for _, c := range q.Must {
				_, isTerm := c.(Term)
				assert.False(t, isTerm, "facet clauses never go to must")
			}
		})
	}
}

func TestBuild_SingleValueIsTermMultiIsShould(t *testing.T) {
	q := Build(request("", domain.FilterSet{
		Vendors: []string{"Acme", "Zenith"},
		Tags:    []string{"summer"},
	}))

	require.Len(t, q.PostFilter, 2)
	assert.Equal(t, AnyTerm{Field: "vendor.keyword", Values: []string{"Acme", "Zenith"}}, q.PostFilter[0].Clause)
	assert.Equal(t, Term{Field: "tags", Value: "summer"}, q.PostFilter[1].Clause)

	body := toMap(t, q)
	filter := body["post_filter"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	require.Len(t, filter, 2)
	assert.Equal(t, map[string]any{"bool": map[string]any{
		"should": []any{
			map[string]any{"term": map[string]any{"vendor.keyword": "Acme"}},
			map[string]any{"term": map[string]any{"vendor.keyword": "Zenith"}},
		},
		"minimum_should_match": float64(1),
	}}, filter[0])
	assert.Equal(t, map[string]any{"term": map[string]any{"tags": "summer"}}, filter[1])
}

func TestBuild_StatusIsUpperCased(t *testing.T) {
	q := Build(request("", domain.FilterSet{Status: status(domain.StatusDraft)}))
	require.Len(t, q.PostFilter, 1)
	assert.Equal(t, Term{Field: "status", Value: "DRAFT"}, q.PostFilter[0].Clause)
}

func TestBuild_PriceRangeOnlyPresentBounds(t *testing.T) {
	q := Build(request("", domain.FilterSet{Price: domain.PriceRange{Min: price(10)}}))
	filter := toMap(t, q)["post_filter"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	assert.Equal(t, map[string]any{"range": map[string]any{"price": map[string]any{"gte": float64(10)}}}, filter[0])

	q = Build(request("", domain.FilterSet{Price: domain.PriceRange{Min: price(0), Max: price(50)}}))
	filter = toMap(t, q)["post_filter"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	assert.Equal(t, map[string]any{"range": map[string]any{"price": map[string]any{"gte": float64(0), "lte": float64(50)}}}, filter[0])
}

func TestBuild_Sort(t *testing.T) {
	tests := []struct {
		sort domain.SortSpec
		want []SortClause
	}{
		{domain.SortSpec{Field: domain.SortRelevance, Order: domain.OrderDesc}, nil},
		{domain.SortSpec{Field: domain.SortRelevance, Order: domain.OrderAsc}, nil},
		{domain.SortSpec{Field: domain.SortTitle, Order: domain.OrderAsc}, []SortClause{{Field: "title.keyword", Order: domain.OrderAsc}}},
		{domain.SortSpec{Field: domain.SortPrice, Order: domain.OrderDesc}, []SortClause{{Field: "price", Order: domain.OrderDesc}}},
		{domain.SortSpec{Field: domain.SortCreatedAt, Order: domain.OrderAsc}, []SortClause{{Field: "createdAt", Order: domain.OrderAsc}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort.Field)+"/"+string(tt.sort.Order), func(t *testing.T) {
			req := request("", domain.FilterSet{})
			req.Sort = tt.sort
			assert.Equal(t, tt.want, Build(req).Sort)
		})
	}

	req := request("", domain.FilterSet{})
	req.Sort = domain.SortSpec{Field: domain.SortTitle, Order: domain.OrderAsc}
	assert.Equal(t, []any{map[string]any{"title.keyword": map[string]any{"order": "asc"}}}, toMap(t, Build(req))["sort"])
}

func TestBuild_Pagination(t *testing.T) {
	tests := []struct{ page, size, from int }{
		{1, 12, 0},
		{3, 12, 24},
		{2, 10, 10},
	}
	for _, tt := range tests {
		req := request("", domain.FilterSet{})
		req.Page, req.PageSize = tt.page, tt.size
		q := Build(req)
		assert.Equal(t, tt.from, q.From)
		assert.Equal(t, tt.size, q.Size)
	}
}

func TestBuild_AggregationsAlwaysRequested(t *testing.T) {
	q := Build(request("", domain.FilterSet{}))
	aggs := toMap(t, q)["aggs"].(map[string]any)

	assert.Len(t, aggs, 4)
	vendors := aggs["vendors"].(map[string]any)
	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, vendors["filter"])
	assert.Equal(t, map[string]any{"terms": map[string]any{"field": "vendor.keyword", "size": float64(20)}},
		vendors["aggs"].(map[string]any)["values"])

	types := aggs["productTypes"].(map[string]any)["aggs"].(map[string]any)["values"]
	assert.Equal(t, map[string]any{"terms": map[string]any{"field": "productType", "size": float64(20)}}, types)

	tags := aggs["tags"].(map[string]any)["aggs"].(map[string]any)["values"]
	assert.Equal(t, map[string]any{"terms": map[string]any{"field": "tags", "size": float64(40)}}, tags)

	priceAgg := aggs["priceRange"].(map[string]any)["aggs"].(map[string]any)["values"].(map[string]any)["range"].(map[string]any)
	assert.Equal(t, "price", priceAgg["field"])
	assert.Equal(t, []any{
		map[string]any{"key": "0-25", "from": float64(0), "to": float64(25)},
		map[string]any{"key": "25-50", "from": float64(25), "to": float64(50)},
		map[string]any{"key": "50-100", "from": float64(50), "to": float64(100)},
		map[string]any{"key": "100+", "from": float64(100)},
	}, priceAgg["ranges"])
}

func TestBuild_FacetAggregationExcludesOwnFilter(t *testing.T) {
	q := Build(request("", domain.FilterSet{
		Vendors: []string{"Acme"},
		Tags:    []string{"summer"},
		Price:   domain.PriceRange{Max: price(50)},
	}))

	byName := map[string]Aggregation{}
	for _, a := range q.Aggs {
		byName[a.Name] = a
	}

	vendorTerm := Term{Field: "vendor.keyword", Value: "Acme"}
	tagTerm := Term{Field: "tags", Value: "summer"}
	priceRange := Range{Field: "price", Lte: price(50)}

	assert.Equal(t, AllOf{tagTerm, priceRange}, byName[AggVendors].Filter)
	assert.Equal(t, AllOf{vendorTerm, tagTerm, priceRange}, byName[AggProductTypes].Filter)
	assert.Equal(t, AllOf{vendorTerm, priceRange}, byName[AggTags].Filter)
	assert.Equal(t, AllOf{vendorTerm, tagTerm}, byName[AggPriceRange].Filter)
}

func TestBuild_Idempotent(t *testing.T) {
	req := request("blue shirt", domain.FilterSet{
		Vendors: []string{"Zenith", "Acme"},
		Tags:    []string{"b", "a"},
		Status:  status(domain.StatusActive),
		Price:   domain.PriceRange{Min: price(1), Max: price(2)},
	})

	first, err := json.Marshal(Build(req))
	require.NoError(t, err)
	second, err := json.Marshal(Build(req))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, Build(req), Build(req))

	// Value order follows input order.
	assert.Equal(t, []string{"Zenith", "Acme"}, Build(req).PostFilter[0].Clause.(AnyTerm).Values)
}

func TestBuild_BlueShirtScenario(t *testing.T) {
	q := Build(domain.SearchRequest{
		Text:     "blue shirt",
		Filters:  domain.FilterSet{Vendors: []string{"Acme", "Zenith"}, Price: domain.PriceRange{Min: price(10), Max: price(50)}},
		Sort:     domain.SortSpec{Field: domain.SortPrice, Order: domain.OrderAsc},
		Page:     2,
		PageSize: 12,
	})

	assert.Equal(t, "blue shirt", q.Must[0].(MultiMatch).Query)
	assert.Equal(t, "AUTO", q.Must[0].(MultiMatch).Fuzziness)
	require.Len(t, q.PostFilter, 2)
	assert.Equal(t, AnyTerm{Field: "vendor.keyword", Values: []string{"Acme", "Zenith"}}, q.PostFilter[0].Clause)
	assert.Equal(t, Range{Field: "price", Gte: price(10), Lte: price(50)}, q.PostFilter[1].Clause)
	assert.Equal(t, []SortClause{{Field: "price", Order: domain.OrderAsc}}, q.Sort)
	assert.Equal(t, 12, q.From)
	assert.Equal(t, 12, q.Size)
}

func TestRange_Contains(t *testing.T) {
	r := Range{Gte: price(10), Lte: price(50)}
	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(50))
	assert.False(t, r.Contains(9.99))
	assert.False(t, r.Contains(50.01))
	assert.True(t, Range{}.Contains(-1))
}

func TestRangeBucket_HalfOpen(t *testing.T) {
	buckets := PriceBuckets()
	assert.True(t, buckets[0].Contains(0))
	assert.False(t, buckets[0].Contains(25))
	assert.True(t, buckets[1].Contains(25))
	assert.True(t, buckets[3].Contains(1e6))
}

func TestCompletion(t *testing.T) {
	body := toMap(t, Completion("shi", 5))
	assert.Equal(t, true, body["_source"])
	assert.Equal(t, map[string]any{"title_suggest": map[string]any{
		"prefix": "shi",
		"completion": map[string]any{
			"field": "title.completion",
			"fuzzy": map[string]any{"fuzziness": "AUTO"},
			"size":  float64(5),
		},
	}}, body["suggest"])
}
