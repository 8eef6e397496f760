package geojson

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/urn"
)

func sampleHit() model.RawHit {
	return model.RawHit{
		ID:         "tgn/7015539",
		Dataset:    "tgn",
		Name:       "Brooklyn",
		Type:       "hg:Place",
		ValidSince: json.RawMessage(`"1646"`),
		ValidUntil: json.RawMessage(`"1898-01-01"`),
		Data:       json.RawMessage(`{"population":2504700}`),
		Geometry:   json.RawMessage(`{"type":"Point","coordinates":[-73.95,40.65]}`),
	}
}

func plain(t *testing.T) *Projector {
	t.Helper()
	p, err := NewProjector(PolicyPlain, nil)
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}
	return p
}

func legacy(t *testing.T) *Projector {
	t.Helper()
	exp, err := urn.New(urn.DefaultBaseURL)
	if err != nil {
		t.Fatalf("urn.New: %v", err)
	}
	p, err := NewProjector(PolicyURN, exp)
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}
	return p
}

func propsOf(t *testing.T, f Feature) map[string]json.RawMessage {
	t.Helper()
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Geometry   json.RawMessage            `json:"geometry"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Type != "Feature" {
		t.Fatalf("type=%q", out.Type)
	}
	return out.Properties
}

func TestFeature_WhitelistRoundTrip(t *testing.T) {
	h := sampleHit()
	props := propsOf(t, plain(t).Feature(h))

	want := map[string]string{
		"id":         `"tgn/7015539"`,
		"dataset":    `"tgn"`,
		"name":       `"Brooklyn"`,
		"type":       `"hg:Place"`,
		"validSince": `"1646"`,
		"validUntil": `"1898-01-01"`,
		"data":       `{"population":2504700}`,
	}
	if len(props) != len(want) {
		t.Fatalf("props=%v", props)
	}
	for k, v := range want {
		if string(props[k]) != v {
			t.Fatalf("%s=%s want %s", k, props[k], v)
		}
	}
}

func TestFeature_DropsUnknownAndKeepsGeometry(t *testing.T) {
	var h model.RawHit
	raw := `{"_source":{"id":"a/1","dataset":"a","name":"n","type":"t","secret":"x","northWest":{"lat":1,"lon":2},
		"geometry":{"type":"Point","coordinates":[1,2]}}}`
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	f := plain(t).Feature(h)
	props := propsOf(t, f)
	for _, k := range []string{"secret", "northWest", "uri", "validSince"} {
		if _, ok := props[k]; ok {
			t.Fatalf("%s must not be surfaced: %v", k, props)
		}
	}
	if string(f.Geometry) != `{"type":"Point","coordinates":[1,2]}` {
		t.Fatalf("geometry=%s", f.Geometry)
	}
}

func TestFeature_MissingGeometryIsNull(t *testing.T) {
	b, _ := json.Marshal(plain(t).Feature(model.RawHit{ID: "a/1"}))
	var out map[string]json.RawMessage
	_ = json.Unmarshal(b, &out)
	if string(out["geometry"]) != "null" {
		t.Fatalf("geometry=%s", out["geometry"])
	}
}

func TestURNPolicy(t *testing.T) {
	p := legacy(t)
	cases := []struct {
		name    string
		hit     model.RawHit
		wantID  string
		wantURI string
	}{
		{"url id", model.RawHit{ID: "http://sws.geonames.org/5128581/"}, "", "http://sws.geonames.org/5128581/"},
		{"explicit uri", model.RawHit{ID: "tgn/1", URI: "http://vocab.getty.edu/tgn/1"}, "", "http://vocab.getty.edu/tgn/1"},
		{"foreign urn", model.RawHit{ID: "urn:isbn:0451450523"}, "", "urn:isbn:0451450523"},
		{"bare id", model.RawHit{ID: "tgn/7015539"}, "http://spacetime.nypl.org/tgn/7015539", ""},
		{"hgid urn", model.RawHit{ID: "urn:hgid:nyc/broadway"}, "http://spacetime.nypl.org/nyc/broadway", ""},
		{"unexpandable", model.RawHit{ID: "urn:hgid:orphan"}, "orphan", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := p.Feature(tc.hit)
			if f.Properties.ID != tc.wantID || f.Properties.URI != tc.wantURI {
				t.Fatalf("id=%q uri=%q", f.Properties.ID, f.Properties.URI)
			}
			props := propsOf(t, f)
			_, hasID := props["id"]
			_, hasURI := props["uri"]
			if hasID == hasURI {
				t.Fatalf("exactly one of id/uri must be present: %v", props)
			}
		})
	}
}

func TestCollection_EmptyAndOrder(t *testing.T) {
	fc := plain(t).Collection(nil)
	b, _ := json.Marshal(fc)
	if string(b) != `{"type":"FeatureCollection","features":[]}` {
		t.Fatalf("empty collection=%s", b)
	}

	hits := []model.RawHit{{ID: "a/1"}, {ID: "a/2"}, {ID: "a/3"}}
	fc = plain(t).Collection(hits)
	var ids []string
	for _, f := range fc.Features {
		ids = append(ids, f.Properties.ID)
	}
	if !slices.Equal(ids, []string{"a/1", "a/2", "a/3"}) {
		t.Fatalf("ids=%v", ids)
	}
}

func TestSingle(t *testing.T) {
	p := plain(t)
	if _, err := p.Single(nil); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	f, err := p.Single([]model.RawHit{{ID: "a/1"}, {ID: "a/2"}})
	if err != nil || f.Properties.ID != "a/1" {
		t.Fatalf("f=%+v err=%v", f, err)
	}
}

func TestFeature_DoesNotMutateOrAlias(t *testing.T) {
	h := sampleHit()
	before, _ := json.Marshal(h)
	f := legacy(t).Feature(h)
	after, _ := json.Marshal(h)
	if string(before) != string(after) {
		t.Fatalf("hit mutated:\n%s\n%s", before, after)
	}
	f.Properties.Data[2] = 'X'
	f.Geometry[2] = 'X'
	if string(h.Data) != `{"population":2504700}` || h.Geometry[2] == 'X' {
		t.Fatalf("feature aliases hit memory")
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]IDPolicy{"": PolicyPlain, "plain": PolicyPlain, " URN ": PolicyURN} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q)=%q,%v", in, got, err)
		}
	}
	if _, err := ParsePolicy("fancy"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewProjector(PolicyURN, nil); err == nil {
		t.Fatalf("urn policy without expander must fail")
	}
}

func TestFeature_EmptyIdentifierStillKeyed(t *testing.T) {
	for name, p := range map[string]*Projector{"plain": plain(t), "urn": legacy(t)} {
		props := propsOf(t, p.Feature(model.RawHit{Dataset: "ds"}))
		id, hasID := props["id"]
		_, hasURI := props["uri"]
		if !hasID || hasURI || string(id) != `""` {
			t.Fatalf("%s: props=%v", name, props)
		}
	}
}
