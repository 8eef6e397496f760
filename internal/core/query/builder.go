// Package query builds Elasticsearch bool queries from search filters.
package query

import (
	"encoding/json"

	"github.com/spacetime/pit-api/internal/core/model"
)

// stored corner fields sampled by the geometry clauses
const (
	FieldNorthWest = "northWest"
	FieldSouthEast = "southEast"
	FieldSouthWest = "southWest"
	FieldNorthEast = "northEast"
)

const DefaultSize = 100

// Document is the request body sent to the search backend.
type Document struct {
	Size  int       `json:"size"`
	From  int       `json:"from,omitempty"`
	Query BoolQuery `json:"query"`

	// Datasets is the dataset scope of the query, nil when unrestricted.
	Datasets []string `json:"-"`
}

type BoolQuery struct {
	Bool Bool `json:"bool"`
}

type Bool struct {
	Must   []Clause `json:"must"`
	Filter []Clause `json:"filter"`
}

// JSON returns the serialised document.
func (d Document) JSON() ([]byte, error) {
	return json.Marshal(d)
}

// Build converts f into a query document. Clause order is stable.
func Build(f model.SearchFilter) Document {
	doc := Document{
		Size: DefaultSize,
		Query: BoolQuery{Bool: Bool{
			Must:   []Clause{},
			Filter: []Clause{},
		}},
	}

	if f.Lookup != nil {
		doc.Size = 1
		doc.Query.Bool.Must = append(doc.Query.Bool.Must, TextMatch{Field: "id", Value: f.Lookup.ID(), AllTerms: true})
		doc.Datasets = []string{f.Lookup.DatasetID}
		return doc
	}

	if f.Size > 0 {
		doc.Size = f.Size
	}
	if f.From > 0 {
		doc.From = f.From
	}

	must := &doc.Query.Bool.Must
	filter := &doc.Query.Bool.Filter

	if f.Name != "" {
		*must = append(*must, TextMatch{Field: "name", Value: f.Name})
	}

	if len(f.Types) > 0 {
		should := make([]Clause, 0, len(f.Types))
		for _, t := range f.Types {
			should = append(should, Term{Field: "type", Value: t})
		}
		*must = append(*must, Should{Clauses: should})
	}

	if len(f.Datasets) > 0 {
		*must = append(*must, Terms{Field: "dataset", Values: append([]string(nil), f.Datasets...)})
		doc.Datasets = append([]string(nil), f.Datasets...)
	}

	if f.ValidAfter != "" {
		*filter = append(*filter, Range{Field: "validSince", GTE: f.ValidAfter})
	}
	if f.ValidBefore != "" {
		*filter = append(*filter, Range{Field: "validUntil", LTE: f.ValidBefore})
	}

	if f.BBox != nil {
		switch f.Operation {
		case model.OpIntersects:
			*filter = append(*filter, FilterAll{Clauses: []Clause{
				boxClause(FieldNorthWest, *f.BBox),
				boxClause(FieldSouthEast, *f.BBox),
				boxClause(FieldSouthWest, *f.BBox),
				boxClause(FieldNorthEast, *f.BBox),
			}})
		default:
			*filter = append(*filter, Should{Clauses: []Clause{
				boxClause(FieldNorthWest, *f.BBox),
				boxClause(FieldSouthEast, *f.BBox),
			}})
		}
	}

	return doc
}

func boxClause(field string, b model.BBox) Clause {
	return GeoBoundingBox{
		Field:       field,
		TopLeft:     GeoPoint{Lat: b.Y2, Lon: b.X1},
		BottomRight: GeoPoint{Lat: b.Y1, Lon: b.X2},
	}
}
