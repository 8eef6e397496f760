package query

import "encoding/json"

// Clause is one query DSL clause; each kind serialises to its Elasticsearch form.
type Clause interface {
	json.Marshaler
	Kind() string
}

// TextMatch is an analyzed full-text match. With AllTerms set every analyzed
// token of Value must match, not just one.
type TextMatch struct {
	Field    string
	Value    string
	AllTerms bool
}

func (TextMatch) Kind() string { return "match" }

type matchOpts struct {
	Query    string `json:"query"`
	Operator string `json:"operator"`
}

func (c TextMatch) MarshalJSON() ([]byte, error) {
	if c.AllTerms {
		return json.Marshal(map[string]map[string]matchOpts{"match": {c.Field: {Query: c.Value, Operator: "and"}}})
	}
	return json.Marshal(map[string]map[string]string{"match": {c.Field: c.Value}})
}

// Term is an exact equality on a keyword field.
type Term struct {
	Field string
	Value string
}

func (Term) Kind() string { return "term" }

func (c Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]string{"term": {c.Field: c.Value}})
}

// Terms matches any of Values.
type Terms struct {
	Field  string
	Values []string
}

func (Terms) Kind() string { return "terms" }

func (c Terms) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string][]string{"terms": {c.Field: c.Values}})
}

// Range bounds a field; empty bounds are omitted.
type Range struct {
	Field string
	GTE   string
	LTE   string
}

func (Range) Kind() string { return "range" }

func (c Range) MarshalJSON() ([]byte, error) {
	type bounds struct {
		GTE string `json:"gte,omitempty"`
		LTE string `json:"lte,omitempty"`
	}
	return json.Marshal(map[string]map[string]bounds{"range": {c.Field: {GTE: c.GTE, LTE: c.LTE}}})
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeoBoundingBox checks that the point stored in Field lies inside the box.
type GeoBoundingBox struct {
	Field       string
	TopLeft     GeoPoint
	BottomRight GeoPoint
}

func (GeoBoundingBox) Kind() string { return "geo_bounding_box" }

func (c GeoBoundingBox) MarshalJSON() ([]byte, error) {
	type box struct {
		TopLeft     GeoPoint `json:"top_left"`
		BottomRight GeoPoint `json:"bottom_right"`
	}
	return json.Marshal(map[string]map[string]box{
		"geo_bounding_box": {c.Field: {TopLeft: c.TopLeft, BottomRight: c.BottomRight}},
	})
}

// Should requires at least one of Clauses.
type Should struct {
	Clauses []Clause
}

func (Should) Kind() string { return "should" }

func (c Should) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string][]Clause{"bool": {"should": nonNil(c.Clauses)}})
}

// FilterAll requires every one of Clauses without scoring.
type FilterAll struct {
	Clauses []Clause
}

func (FilterAll) Kind() string { return "filter" }

func (c FilterAll) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string][]Clause{"bool": {"filter": nonNil(c.Clauses)}})
}

func nonNil(cs []Clause) []Clause {
	if cs == nil {
		return []Clause{}
	}
	return cs
}
