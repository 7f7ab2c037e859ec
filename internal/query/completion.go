package query

import (
	"encoding/json"
)

// SuggestName is the suggester key in completion requests and responses.
const SuggestName = "title_suggest"

// CompletionQuery is a prefix lookup against the completion field.
type CompletionQuery struct {
	Prefix    string
	Field     string
	Fuzziness string
	Size      int
}

// Completion builds a fuzzy title completion request.
func Completion(prefix string, size int) *CompletionQuery {
	return &CompletionQuery{
		Prefix:    prefix,
		Field:     FieldTitleComplete,
		Fuzziness: "AUTO",
		Size:      size,
	}
}

// MarshalJSON renders the Elasticsearch suggest body.
func (c *CompletionQuery) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{
		"_source": true,
		"suggest": object{SuggestName: object{
			"prefix": c.Prefix,
			"completion": object{
				"field": c.Field,
				"fuzzy": object{"fuzziness": c.Fuzziness},
				"size":  c.Size,
			},
		}},
	})
}
