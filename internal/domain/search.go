package domain

import (
	"strings"
)

// Status is the lifecycle state of a product as accepted by the API.
type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusArchived Status = "archived"
)

// ValidStatuses returns the accepted status values.
func ValidStatuses() []Status {
	return []Status{StatusActive, StatusDraft, StatusArchived}
}

// IndexValue is the form the status takes inside the index. The API is
// lower-case; stored documents carry the upper-case catalog export value.
func (s Status) IndexValue() string {
	return strings.ToUpper(string(s))
}

// Facet names a filterable dimension.
type Facet string

const (
	FacetVendor      Facet = "vendor"
	FacetProductType Facet = "productType"
	FacetTag         Facet = "tag"
	FacetStatus      Facet = "status"
	FacetPrice       Facet = "price"
)

// SortField is a sortable attribute.
type SortField string

const (
	SortRelevance SortField = "relevance"
	SortCreatedAt SortField = "createdAt"
	SortPrice     SortField = "price"
	SortTitle     SortField = "title"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SortSpec selects result ordering. SortRelevance means engine score order.
type SortSpec struct {
	Field SortField `json:"field"`
	Order SortOrder `json:"order"`
}

// DefaultSort is relevance, descending.
func DefaultSort() SortSpec {
	return SortSpec{Field: SortRelevance, Order: OrderDesc}
}

// PriceRange is an inclusive price bound; either side may be absent.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsZero reports whether neither bound is set.
func (p PriceRange) IsZero() bool {
	return p.Min == nil && p.Max == nil
}

// FilterSet is the normalized set of facet selections. Slices keep first-seen
// order without duplicates; an empty slice means the facet is not filtered.
type FilterSet struct {
	Vendors      []string   `json:"vendors,omitempty"`
	ProductTypes []string   `json:"productTypes,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Status       *Status    `json:"status,omitempty"`
	Price        PriceRange `json:"price"`
}

// Values returns the selected values for a term facet.
func (f FilterSet) Values(facet Facet) []string {
	switch facet {
	case FacetVendor:
		return f.Vendors
	case FacetProductType:
		return f.ProductTypes
	case FacetTag:
		return f.Tags
	case FacetStatus:
		if f.Status != nil {
			return []string{f.Status.IndexValue()}
		}
	}
	return nil
}

// SearchRequest is one validated search call.
type SearchRequest struct {
	Text     string    `json:"text"`
	Filters  FilterSet `json:"filters"`
	Sort     SortSpec  `json:"sort"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// AutocompleteRequest is one validated typeahead call.
type AutocompleteRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
}

// Bucket is one facet value and the number of matching documents.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// FacetResult maps a facet name to its buckets in engine order.
type FacetResult map[Facet][]Bucket

// SearchResult is a page of products plus facet counts.
type SearchResult struct {
	Products     []ProductHit `json:"products"`
	Total        int          `json:"total"`
	Page         int          `json:"page"`
	Size         int          `json:"size"`
	TotalPages   int          `json:"total_pages"`
	Aggregations FacetResult  `json:"aggregations"`
}

// EmptySearchResult is returned when the index does not exist yet.
func EmptySearchResult(page, size int) *SearchResult {
	return &SearchResult{
		Products:     []ProductHit{},
		Page:         page,
		Size:         size,
		Aggregations: FacetResult{},
	}
}
