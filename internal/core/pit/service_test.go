package pit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/spacetime/pit-api/internal/core/geojson"
	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/query"
	"github.com/spacetime/pit-api/internal/core/search"
)

type fakeSearcher struct {
	index string
	doc   query.Document
	res   search.Result
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, index string, doc query.Document) (search.Result, error) {
	f.index, f.doc = index, doc
	return f.res, f.err
}

func newService(t *testing.T, s search.Searcher) *Service {
	t.Helper()
	p, _ := geojson.NewProjector(geojson.PolicyPlain, nil)
	svc, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), s, p, "pits")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestSearch_ProjectsHitsAndTotal(t *testing.T) {
	fs := &fakeSearcher{res: search.Result{Total: 250, Hits: []model.RawHit{{ID: "a/1"}, {ID: "a/2"}}}}
	fc, total, err := newService(t, fs).Search(context.Background(), model.SearchFilter{Name: "x", Size: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 250 || len(fc.Features) != 2 || fc.Type != "FeatureCollection" {
		t.Fatalf("total=%d fc=%+v", total, fc)
	}
	if fs.index != "pits" || fs.doc.Size != 2 || len(fs.doc.Query.Bool.Must) != 1 {
		t.Fatalf("query not forwarded: %s %+v", fs.index, fs.doc)
	}
}

func TestSearch_BackendErrorSurfaces(t *testing.T) {
	fs := &fakeSearcher{err: &model.BackendError{Status: 400, Msg: "bad"}}
	if _, _, err := newService(t, fs).Search(context.Background(), model.SearchFilter{}); !errors.As(err, new(*model.BackendError)) {
		t.Fatalf("err=%v", err)
	}
}

func TestLookup(t *testing.T) {
	f := model.SearchFilter{Size: 1, Lookup: &model.Lookup{DatasetID: "tgn", ObjectID: "1"}}

	fs := &fakeSearcher{res: search.Result{Total: 1, Hits: []model.RawHit{{ID: "tgn/1", Name: "A"}}}}
	feat, err := newService(t, fs).Lookup(context.Background(), f)
	if err != nil || feat.Properties.Name != "A" {
		t.Fatalf("feat=%+v err=%v", feat, err)
	}
	if fs.doc.Size != 1 {
		t.Fatalf("lookup size=%d", fs.doc.Size)
	}

	_, err = newService(t, &fakeSearcher{}).Lookup(context.Background(), f)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	_, err = newService(t, &fakeSearcher{}).Lookup(context.Background(), model.SearchFilter{})
	if !errors.Is(err, model.ErrMissingIdentifier) {
		t.Fatalf("want ErrMissingIdentifier, got %v", err)
	}
}

func TestNew_Validates(t *testing.T) {
	p, _ := geojson.NewProjector(geojson.PolicyPlain, nil)
	if _, err := New(nil, nil, p, "pits"); err == nil {
		t.Fatalf("nil searcher must fail")
	}
	if _, err := New(nil, &fakeSearcher{}, p, ""); err == nil {
		t.Fatalf("empty index must fail")
	}
}
