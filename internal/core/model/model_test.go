package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRawHit_UnwrapsSource(t *testing.T) {
	cases := map[string]string{
		"bare":    `{"id":"a/1","dataset":"a","name":"N"}`,
		"_source": `{"_index":"pits","_id":"x","_source":{"id":"a/1","dataset":"a","name":"N"}}`,
		"source":  `{"source":{"id":"a/1","dataset":"a","name":"N"}}`,
	}
	for name, raw := range cases {
		var h RawHit
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if h.ID != "a/1" || h.Dataset != "a" || h.Name != "N" {
			t.Fatalf("%s: %+v", name, h)
		}
	}
}

func TestRawHit_NonObjectSourceIsField(t *testing.T) {
	var h RawHit
	if err := json.Unmarshal([]byte(`{"id":"a/1","source":"survey 1890"}`), &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.ID != "a/1" {
		t.Fatalf("hit=%+v", h)
	}
}

func TestBackendError(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	var err error = &BackendError{Msg: "search request failed", Err: inner}
	if !errors.Is(err, inner) || err.Error() != "search request failed: dial tcp: refused" {
		t.Fatalf("err=%v", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Client() {
		t.Fatalf("unreachable backend is not a client error")
	}
	if !(&BackendError{Status: 400}).Client() || (&BackendError{Status: 503}).Client() {
		t.Fatalf("Client() mismatch")
	}
}

func TestGeometryOpAndLookup(t *testing.T) {
	if !OpContains.Valid() || !OpIntersects.Valid() || GeometryOp("within").Valid() {
		t.Fatalf("Valid mismatch")
	}
	if (Lookup{DatasetID: "tgn", ObjectID: "1"}).ID() != "tgn/1" {
		t.Fatalf("Lookup.ID mismatch")
	}
}
