package eval

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/query"
)

// Tokenize lower-cases s and splits it on anything that is not a letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// AutoFuzziness mirrors the engine's AUTO edit distance: exact for one or two
// characters, one edit up to five, two beyond.
func AutoFuzziness(term string) int {
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

// editDistance is the optimal string alignment distance between a and b:
// insertions, deletions, substitutions and adjacent transpositions each
// cost one edit.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+1)
			}
		}
		prev2, prev, curr = prev, curr, prev2
	}
	return prev[len(rb)]
}

// termQuality scores how well term matches any token: 1 for exact,
// 0.5 within the allowed edit distance, 0 otherwise.
func termQuality(term string, tokens []string, fuzziness string) float64 {
	maxEdits := 0
	if fuzziness == "AUTO" {
		maxEdits = AutoFuzziness(term)
	}
	best := 0.0
	for _, tok := range tokens {
		if tok == term {
			return 1
		}
		if maxEdits > 0 && editDistance(tok, term) <= maxEdits {
			best = 0.5
		}
	}
	return best
}

// SplitBoost parses "title^3" into ("title", 3).
func SplitBoost(field string) (string, float64) {
	name, boost, ok := strings.Cut(field, "^")
	if !ok {
		return field, 1
	}
	b, err := strconv.ParseFloat(boost, 64)
	if err != nil {
		return name, 1
	}
	return name, b
}

// textOf returns the analyzed text of a field.
func textOf(p *domain.Product, field string) string {
	switch field {
	case query.FieldTitle:
		return p.Title
	case query.FieldDescription:
		return p.Description
	case query.FieldVendor:
		return p.Vendor
	case query.FieldTags:
		return strings.Join(p.Tags, " ")
	case query.FieldProductType:
		return p.ProductType
	case query.FieldSeoTitle:
		return p.SeoTitle
	case query.FieldSeoDescription:
		return p.SeoDescription
	default:
		return ""
	}
}

// keywordsOf returns the exact values of a keyword field.
func keywordsOf(p *domain.Product, field string) []string {
	switch field {
	case query.FieldVendorKeyword:
		return []string{p.Vendor}
	case query.FieldProductType:
		return []string{p.ProductType}
	case query.FieldTags:
		return p.Tags
	case query.FieldStatus:
		return []string{p.Status}
	case query.FieldHandle:
		return []string{p.Handle}
	case query.FieldTitleKeyword:
		return []string{p.Title}
	case "id":
		return []string{p.ID}
	default:
		return nil
	}
}

func numberOf(p *domain.Product, field string) (float64, bool) {
	switch field {
	case query.FieldPrice:
		return p.Price, true
	case "totalInventory":
		return float64(p.TotalInventory), true
	default:
		return 0, false
	}
}

// score evaluates a scoring clause; 0 means no match.
func score(p *domain.Product, c query.Clause) float64 {
	switch c := c.(type) {
	case query.MatchAll:
		return 1
	case query.MultiMatch:
		return multiMatchScore(p, c)
	default:
		if matches(p, c) {
			return 1
		}
		return 0
	}
}

// multiMatchScore is best-fields: the best single field's score, where with
// operator "and" a field only counts if it matches every term.
func multiMatchScore(p *domain.Product, m query.MultiMatch) float64 {
	terms := Tokenize(m.Query)
	if len(terms) == 0 {
		return 0
	}
	best := 0.0
	for _, f := range m.Fields {
		name, boost := SplitBoost(f)
		tokens := Tokenize(textOf(p, name))
		if len(tokens) == 0 {
			continue
		}
		sum, matched := 0.0, 0
		for _, term := range terms {
			if q := termQuality(term, tokens, m.Fuzziness); q > 0 {
				sum += q
				matched++
			}
		}
		if matched == 0 || (m.Operator == "and" && matched < len(terms)) {
			continue
		}
		if s := boost * sum / float64(len(terms)); s > best {
			best = s
		}
	}
	return best
}

// matches evaluates a non-scoring clause.
func matches(p *domain.Product, c query.Clause) bool {
	switch c := c.(type) {
	case query.MatchAll:
		return true
	case query.Term:
		return contains(keywordsOf(p, c.Field), c.Value)
	case query.AnyTerm:
		values := keywordsOf(p, c.Field)
		for _, v := range c.Values {
			if contains(values, v) {
				return true
			}
		}
		return false
	case query.Range:
		v, ok := numberOf(p, c.Field)
		return ok && c.Contains(v)
	case query.AllOf:
		for _, inner := range c {
			if !matches(p, inner) {
				return false
			}
		}
		return true
	case query.Must:
		for _, inner := range c {
			if score(p, inner) == 0 {
				return false
			}
		}
		return true
	case query.MultiMatch:
		return multiMatchScore(p, c) > 0
	default:
		return false
	}
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// highlight wraps tokens of text that match any term in <em> tags. It
// returns nil when nothing matched.
func highlight(text string, terms []string, fuzziness string) []string {
	if text == "" || len(terms) == 0 {
		return nil
	}
	var b strings.Builder
	hit := false
	word := []rune{}
	flush := func() {
		if len(word) == 0 {
			return
		}
		w := string(word)
		if termQuality(strings.ToLower(w), terms, fuzziness) > 0 {
			b.WriteString("<em>" + w + "</em>")
			hit = true
		} else {
			b.WriteString(w)
		}
		word = word[:0]
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	if !hit {
		return nil
	}
	return []string{b.String()}
}
