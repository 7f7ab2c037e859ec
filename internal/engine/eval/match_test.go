package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"shirt", "shirt", 0},
		{"", "abc", 3},
		{"shirt", "shrit", 1},
		{"kitten", "sitting", 3},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, editDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, editDistance(tt.b, tt.a))
		})
	}
}

func TestAutoFuzziness(t *testing.T) {
	assert.Equal(t, 0, AutoFuzziness("ab"))
	assert.Equal(t, 1, AutoFuzziness("abc"))
	assert.Equal(t, 1, AutoFuzziness("abcde"))
	assert.Equal(t, 2, AutoFuzziness("abcdef"))
}

func TestMultiMatchScore_OperatorAnd(t *testing.T) {
	p := &domain.Product{Title: "Blue Shirt", Description: "cotton"}
	and := query.MultiMatch{Query: "blue cotton", Fields: []string{"title^3", "description^2"}, Operator: "and"}
	assert.Zero(t, multiMatchScore(p, and), "terms split across fields")

	or := and
	or.Operator = "or"
	assert.Positive(t, multiMatchScore(p, or))
}

func TestMatches_Clauses(t *testing.T) {
	p := &domain.Product{Vendor: "Acme", Tags: []string{"a", "b"}, Price: 25, Status: "ACTIVE"}
	lo := 25.0

	assert.True(t, matches(p, query.AllOf{}))
	assert.True(t, matches(p, query.Term{Field: query.FieldVendorKeyword, Value: "Acme"}))
	assert.False(t, matches(p, query.Term{Field: query.FieldVendorKeyword, Value: "acme"}), "keyword match is exact")
	assert.True(t, matches(p, query.AnyTerm{Field: query.FieldTags, Values: []string{"z", "b"}}))
	assert.True(t, matches(p, query.Range{Field: query.FieldPrice, Gte: &lo}))
	assert.False(t, matches(p, query.AllOf{
		query.Term{Field: query.FieldStatus, Value: "ACTIVE"},
		query.Term{Field: query.FieldTags, Value: "z"},
	}))
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, []string{"Soft <em>cotton</em> tee, <em>Cotton</em>!"},
		highlight("Soft cotton tee, Cotton!", []string{"cotton"}, "AUTO"))
	assert.Nil(t, highlight("Soft tee", []string{"cotton"}, "AUTO"))
}

func TestFuzzyPrefix(t *testing.T) {
	assert.True(t, fuzzyPrefix("blue shirt", "bleu"))
	assert.False(t, fuzzyPrefix("blue shirt", "glu"), "first character is fixed")
	assert.False(t, fuzzyPrefix("blue shirt", "bx"), "short prefixes are exact only")
}
