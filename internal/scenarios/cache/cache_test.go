package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/spacetime/pit-api/internal/cache/keys"
	"github.com/spacetime/pit-api/internal/cache/memstore"
	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/query"
	"github.com/spacetime/pit-api/internal/core/search"
)

type countingSearcher struct {
	calls int
	res   search.Result
	err   error
}

func (c *countingSearcher) Search(context.Context, string, query.Document) (search.Result, error) {
	c.calls++
	return c.res, c.err
}

type failingStore struct{}

func (failingStore) MGet([]string) (map[string][]byte, error) { return nil, errors.New("down") }
func (failingStore) Set(string, []byte, time.Duration) error  { return errors.New("down") }
func (failingStore) Del(...string) error                      { return errors.New("down") }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleResult() search.Result {
	return search.Result{Total: 1, Hits: []model.RawHit{{
		ID: "tgn/7015539", Dataset: "tgn", Name: "Brooklyn", Type: "hg:Place",
		Geometry: []byte(`{"type":"Point","coordinates":[-73.95,40.65]}`),
	}}}
}

func TestEngine_ReadThrough(t *testing.T) {
	backend := &countingSearcher{res: sampleResult()}
	e := New(quietLogger(), backend, memstore.New(64), time.Minute)
	doc := query.Build(model.SearchFilter{Name: "Brooklyn", Datasets: []string{"tgn"}, Size: 100})

	for i := range 3 {
		res, err := e.Search(context.Background(), "pits", doc)
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if res.Total != 1 || res.Hits[0].Name != "Brooklyn" || string(res.Hits[0].Geometry) == "" {
			t.Fatalf("search %d: unexpected result %+v", i, res)
		}
	}
	if backend.calls != 1 {
		t.Fatalf("backend calls=%d want 1", backend.calls)
	}
}

func TestEngine_InvalidateRotatesScopes(t *testing.T) {
	backend := &countingSearcher{res: sampleResult()}
	e := New(quietLogger(), backend, memstore.New(64), time.Minute)
	ctx := context.Background()

	tgn := query.Build(model.SearchFilter{Datasets: []string{"tgn"}, Size: 100})
	other := query.Build(model.SearchFilter{Datasets: []string{"geonames"}, Size: 100})
	all := query.Build(model.SearchFilter{Name: "Brooklyn", Size: 100})

	for _, d := range []query.Document{tgn, other, all} {
		if _, err := e.Search(ctx, "pits", d); err != nil {
			t.Fatalf("warm: %v", err)
		}
	}
	if backend.calls != 3 {
		t.Fatalf("warm calls=%d want 3", backend.calls)
	}

	if err := e.Invalidate("tgn"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	for _, d := range []query.Document{tgn, other, all} {
		if _, err := e.Search(ctx, "pits", d); err != nil {
			t.Fatalf("after invalidate: %v", err)
		}
	}
	// tgn and the unscoped query refetch; geonames stays cached
	if backend.calls != 5 {
		t.Fatalf("calls=%d want 5", backend.calls)
	}
}

func TestEngine_BackendErrorNotCached(t *testing.T) {
	backend := &countingSearcher{err: &model.BackendError{Status: 503, Msg: "unavailable"}}
	e := New(quietLogger(), backend, memstore.New(64), time.Minute)
	doc := query.Build(model.SearchFilter{Size: 100})

	for range 2 {
		if _, err := e.Search(context.Background(), "pits", doc); !errors.As(err, new(*model.BackendError)) {
			t.Fatalf("want BackendError, got %v", err)
		}
	}
	if backend.calls != 2 {
		t.Fatalf("errors must not be cached; calls=%d", backend.calls)
	}
}

func TestEngine_StoreFailureFallsThrough(t *testing.T) {
	backend := &countingSearcher{res: sampleResult()}
	e := New(quietLogger(), backend, failingStore{}, time.Minute)

	res, err := e.Search(context.Background(), "pits", query.Build(model.SearchFilter{Size: 100}))
	if err != nil || res.Total != 1 {
		t.Fatalf("expected backend result despite store failure; res=%+v err=%v", res, err)
	}
	if err := e.Invalidate("tgn"); err == nil {
		t.Fatalf("Invalidate must surface store errors")
	}
}

func TestNewCache_RedisDriver(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{
		CacheDriver:     "redis",
		RedisAddr:       mr.Addr(),
		CacheTTLDefault: time.Minute,
		CacheOpTimeout:  time.Second,
	}
	backend := &countingSearcher{res: sampleResult()}

	s, err := newCache(cfg, quietLogger(), backend)
	if err != nil {
		t.Fatalf("newCache: %v", err)
	}
	e := s.(*Engine)
	t.Cleanup(func() { _ = e.Close() })

	doc := query.Build(model.SearchFilter{Datasets: []string{"tgn"}, Size: 100})
	for range 2 {
		if _, err := e.Search(context.Background(), "pits", doc); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	if backend.calls != 1 {
		t.Fatalf("calls=%d want 1", backend.calls)
	}
	if !mr.Exists(keys.Generation("tgn")) {
		t.Fatalf("generation token for tgn not stored")
	}
	if ttl := mr.TTL(keys.Generation("tgn")); ttl != 0 {
		t.Fatalf("generation tokens must not expire; ttl=%v", ttl)
	}

	if err := e.Invalidate("tgn"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mr.Exists(keys.Generation("tgn")) || mr.Exists(keys.Generation(keys.AllDatasets)) {
		t.Fatalf("generation keys must be rotated")
	}
}

func TestNewCache_UnknownDriver(t *testing.T) {
	_, err := newCache(config.Config{CacheDriver: "disk"}, quietLogger(), &countingSearcher{})
	if err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
