package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly product handle from a title.
// Accented letters are folded to their ASCII base.
//
// Examples:
//   - "Blue Shirt" → "blue-shirt"
//   - "Café Crème" → "cafe-creme"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	s := strings.ToLower(strings.TrimSpace(folded))
	s = strings.NewReplacer("ı", "i", "ß", "ss", "ø", "o", "æ", "ae", "&", " and ").Replace(s)
	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
