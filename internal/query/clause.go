package query

import (
	"encoding/json"
)

// Clause is one node of the engine query DSL. The concrete types are also
// evaluated directly by the in-process engines.
type Clause interface {
	json.Marshaler
	isClause()
}

type object = map[string]any

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) isClause() {}

func (MatchAll) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{"match_all": object{}})
}

// MultiMatch is a scored full-text match across boosted fields.
type MultiMatch struct {
	Query     string
	Fields    []string
	Fuzziness string
	Operator  string
}

func (MultiMatch) isClause() {}

func (m MultiMatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{"multi_match": object{
		"query":     m.Query,
		"fields":    m.Fields,
		"fuzziness": m.Fuzziness,
		"operator":  m.Operator,
	}})
}

// Term is an exact match on a non-analyzed field.
type Term struct {
	Field string
	Value string
}

func (Term) isClause() {}

func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{"term": object{t.Field: t.Value}})
}

// AnyTerm matches documents whose field equals at least one of Values.
type AnyTerm struct {
	Field  string
	Values []string
}

func (AnyTerm) isClause() {}

func (a AnyTerm) MarshalJSON() ([]byte, error) {
	should := make([]Clause, 0, len(a.Values))
	for _, v := range a.Values {
		should = append(should, Term{Field: a.Field, Value: v})
	}
	return json.Marshal(object{"bool": object{
		"should":               should,
		"minimum_should_match": 1,
	}})
}

// Range is an inclusive numeric bound; nil sides are open.
type Range struct {
	Field string
	Gte   *float64
	Lte   *float64
}

func (Range) isClause() {}

func (r Range) MarshalJSON() ([]byte, error) {
	bounds := object{}
	if r.Gte != nil {
		bounds["gte"] = *r.Gte
	}
	if r.Lte != nil {
		bounds["lte"] = *r.Lte
	}
	return json.Marshal(object{"range": object{r.Field: bounds}})
}

// Contains reports whether v satisfies the bounds.
func (r Range) Contains(v float64) bool {
	if r.Gte != nil && v < *r.Gte {
		return false
	}
	if r.Lte != nil && v > *r.Lte {
		return false
	}
	return true
}

// AllOf is a non-scoring conjunction. An empty AllOf matches everything.
type AllOf []Clause

func (AllOf) isClause() {}

func (a AllOf) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return MatchAll{}.MarshalJSON()
	}
	return json.Marshal(object{"bool": object{"filter": []Clause(a)}})
}

// Must is the scoring conjunction used as the top-level query.
type Must []Clause

func (Must) isClause() {}

func (m Must) MarshalJSON() ([]byte, error) {
	return json.Marshal(object{"bool": object{"must": []Clause(m)}})
}
