package query

import (
	"encoding/json"

	"github.com/AlamKhalidDev/product-search/internal/domain"
)

// Aggregation names in the engine request and response.
const (
	AggVendors      = "vendors"
	AggProductTypes = "productTypes"
	AggTags         = "tags"
	AggPriceRange   = "priceRange"

	// AggValues is the bucket aggregation nested under each facet filter.
	AggValues = "values"
)

// BucketAgg is a bucket-producing aggregation.
type BucketAgg interface {
	json.Marshaler
	isBucketAgg()
}

// TermsAgg counts the most frequent values of a keyword field.
type TermsAgg struct {
	Field string
	Size  int
}

func (TermsAgg) isBucketAgg() {}

func (t TermsAgg) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{"terms": object{"field": t.Field, "size": t.Size}})
}

// RangeBucket is a half-open [From, To) interval; nil sides are unbounded.
type RangeBucket struct {
	Key  string
	From *float64
	To   *float64
}

// Contains reports whether v falls in the bucket.
func (b RangeBucket) Contains(v float64) bool {
	if b.From != nil && v < *b.From {
		return false
	}
	if b.To != nil && v >= *b.To {
		return false
	}
	return true
}

func (b RangeBucket) MarshalJSON() ([]byte, error) {
	o := object{"key": b.Key}
	if b.From != nil {
		o["from"] = *b.From
	}
	if b.To != nil {
		o["to"] = *b.To
	}
	return json.Marshal(o)
}

// RangeAgg counts documents per fixed numeric interval.
type RangeAgg struct {
	Field  string
	Ranges []RangeBucket
}

func (RangeAgg) isBucketAgg() {}

func (r RangeAgg) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{"range": object{"field": r.Field, "ranges": r.Ranges}})
}

// Aggregation is one facet's counts: Values computed over documents that
// match the main query and Filter. Filter holds every post-filter clause
// except the facet's own, so a facet never narrows its own buckets.
type Aggregation struct {
	Name   string
	Facet  domain.Facet
	Filter AllOf
	Values BucketAgg
}

func (a Aggregation) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{
		"filter": a.Filter,
		"aggs":   object{AggValues: a.Values},
	})
}

// PriceBuckets are the fixed price histogram intervals.
func PriceBuckets() []RangeBucket {
	return []RangeBucket{
		{Key: "0-25", From: float(0), To: float(25)},
		{Key: "25-50", From: float(25), To: float(50)},
		{Key: "50-100", From: float(50), To: float(100)},
		{Key: "100+", From: float(100)},
	}
}

func float(f float64) *float64 { return &f }
