// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"
)

// BBox is the query rectangle in the order it was supplied: x1,y1,x2,y2
// (minLon, minLat, maxLon, maxLat). Ordering is not validated.
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
}

// String representation matching the query-string format
func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.X1, b.Y1, b.X2, b.Y2)
}

type GeometryOp string

const (
	OpContains   GeometryOp = "contains"
	OpIntersects GeometryOp = "intersects"
)

func (op GeometryOp) Valid() bool {
	return op == OpContains || op == OpIntersects
}

// Lookup addresses a single PIT by dataset and object id.
type Lookup struct {
	DatasetID string
	ObjectID  string
}

// ID returns the composite dataset/object identifier.
func (l Lookup) ID() string {
	return l.DatasetID + "/" + l.ObjectID
}

// SearchFilter is the typed form of the request filter set. Nil slices and
// empty strings mean "not restricted".
type SearchFilter struct {
	Name        string
	Datasets    []string
	Types       []string
	ValidAfter  string
	ValidBefore string
	BBox        *BBox
	Operation   GeometryOp
	Size        int
	From        int
	Lookup      *Lookup
}

// RawHit is one source record returned by the search backend.
type RawHit struct {
	ID         string          `json:"id"`
	URI        string          `json:"uri,omitempty"`
	Dataset    string          `json:"dataset"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	ValidSince json.RawMessage `json:"validSince,omitempty"`
	ValidUntil json.RawMessage `json:"validUntil,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

type rawHitAlias RawHit

// UnmarshalJSON accepts a bare record or one wrapped in "_source"/"source".
func (h *RawHit) UnmarshalJSON(b []byte) error {
	var wrap struct {
		Source  json.RawMessage `json:"_source"`
		Wrapped json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(b, &wrap); err != nil {
		return fmt.Errorf("decode hit: %w", err)
	}
	inner := b
	switch {
	case isObject(wrap.Source):
		inner = wrap.Source
	case isObject(wrap.Wrapped):
		inner = wrap.Wrapped
	}
	var a rawHitAlias
	if err := json.Unmarshal(inner, &a); err != nil {
		return fmt.Errorf("decode hit source: %w", err)
	}
	*h = RawHit(a)
	return nil
}

func isObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
