// Package geojson shapes search hits into GeoJSON features.
package geojson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/urn"
)

type Feature struct {
	Type       string          `json:"type"`
	Properties Properties      `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Properties is the fixed whitelist of surfaced source fields. Under the urn
// policy exactly one of ID and URI is set.
type Properties struct {
	ID         string          `json:"id,omitempty"`
	URI        string          `json:"uri,omitempty"`
	Dataset    string          `json:"dataset"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	ValidSince json.RawMessage `json:"validSince,omitempty"`
	ValidUntil json.RawMessage `json:"validUntil,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON always writes id unless uri is set, so a record without any
// identifier still carries exactly one of the two keys.
func (p Properties) MarshalJSON() ([]byte, error) {
	type plainProps Properties
	if p.URI != "" {
		return json.Marshal(plainProps(p))
	}
	return json.Marshal(struct {
		ID string `json:"id"`
		plainProps
	}{p.ID, plainProps(p)})
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type IDPolicy string

const (
	PolicyPlain IDPolicy = "plain"
	PolicyURN   IDPolicy = "urn"
)

// ParsePolicy maps a config value to an IDPolicy; empty means plain.
func ParsePolicy(s string) (IDPolicy, error) {
	switch p := IDPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyPlain:
		return PolicyPlain, nil
	case PolicyURN:
		return PolicyURN, nil
	default:
		return "", fmt.Errorf("unknown id policy %q (want plain|urn)", s)
	}
}

type Expander interface {
	Expand(id string) (string, error)
}

type Projector struct {
	policy   IDPolicy
	expander Expander
}

// NewProjector builds a projector; the urn policy requires an expander.
func NewProjector(policy IDPolicy, exp Expander) (*Projector, error) {
	if policy == PolicyURN && exp == nil {
		return nil, fmt.Errorf("id policy %q requires an identifier expander", policy)
	}
	return &Projector{policy: policy, expander: exp}, nil
}

// Collection projects every hit, keeping backend order.
func (p *Projector) Collection(hits []model.RawHit) FeatureCollection {
	out := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(hits))}
	for i := range hits {
		out.Features = append(out.Features, p.Feature(hits[i]))
	}
	return out
}

// Single projects the first hit, or fails with ErrNotFound.
func (p *Projector) Single(hits []model.RawHit) (Feature, error) {
	if len(hits) == 0 {
		return Feature{}, model.ErrNotFound
	}
	return p.Feature(hits[0]), nil
}

func (p *Projector) Feature(h model.RawHit) Feature {
	props := Properties{
		Dataset:    h.Dataset,
		Name:       h.Name,
		Type:       h.Type,
		ValidSince: clone(h.ValidSince),
		ValidUntil: clone(h.ValidUntil),
		Data:       clone(h.Data),
	}
	if p.policy == PolicyURN {
		props.ID, props.URI = p.identify(h)
	} else {
		props.ID = h.ID
	}

	geom := clone(h.Geometry)
	if len(geom) == 0 {
		geom = json.RawMessage("null")
	}
	return Feature{Type: "Feature", Properties: props, Geometry: geom}
}

// identify applies the legacy id/uri rule and returns (id, uri)
func (p *Projector) identify(h model.RawHit) (string, string) {
	if h.URI != "" {
		return "", h.URI
	}
	if urn.IsURN(h.ID) {
		return "", h.ID
	}
	exp, err := p.expander.Expand(h.ID)
	if err != nil {
		return strings.TrimPrefix(h.ID, urn.HGIDPrefix), ""
	}
	if exp == h.ID {
		return "", h.ID
	}
	return exp, ""
}

func clone(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	return bytes.Clone(raw)
}
