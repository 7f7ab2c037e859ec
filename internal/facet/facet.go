package facet

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

// mapping ties each engine aggregation to the facet it feeds.
var mapping = []struct {
	agg   string
	facet domain.Facet
	keep  func(string) bool
}{
	{query.AggVendors, domain.FacetVendor, nil},
	{query.AggProductTypes, domain.FacetProductType, nil},
	{query.AggTags, domain.FacetTag, DisplayTag},
	{query.AggPriceRange, domain.FacetPrice, nil},
}

type rawBucket struct {
	Key      json.RawMessage `json:"key"`
	DocCount int64           `json:"doc_count"`
}

type rawAgg struct {
	Buckets []rawBucket `json:"buckets"`
	Values  *struct {
		Buckets []rawBucket `json:"buckets"`
	} `json:"values"`
}

// Reshape maps raw engine aggregations onto the facet model. Every facet is
// present in the result; one the engine did not return has no buckets.
func Reshape(raw map[string]json.RawMessage) domain.FacetResult {
	out := make(domain.FacetResult, len(mapping))
	for _, m := range mapping {
		out[m.facet] = buckets(raw[m.agg], m.keep)
	}
	return out
}

func buckets(data json.RawMessage, keep func(string) bool) []domain.Bucket {
	out := []domain.Bucket{}
	if len(data) == 0 {
		return out
	}
	var agg rawAgg
	if err := json.Unmarshal(data, &agg); err != nil {
		return out
	}
	raw := agg.Buckets
	if agg.Values != nil {
		raw = agg.Values.Buckets
	}
	for _, b := range raw {
		key := keyString(b.Key)
		if key == "" {
			continue
		}
		if keep != nil && !keep(key) {
			continue
		}
		out = append(out, domain.Bucket{Value: key, Count: b.DocCount})
	}
	return out
}

// keyString renders string and numeric bucket keys; null becomes "".
func keyString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

// DisplayTag reports whether a tag is shown in the facet list. Tags holding
// '|' or '_' are internal catalog markers.
func DisplayTag(tag string) bool {
	return !strings.ContainsAny(tag, "|_")
}
