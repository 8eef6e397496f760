package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cacheiface "github.com/spacetime/pit-api/internal/cache"
	"github.com/spacetime/pit-api/internal/cache/keys"
	"github.com/spacetime/pit-api/internal/cache/memstore"
	"github.com/spacetime/pit-api/internal/cache/redisstore"
	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/observability"
	"github.com/spacetime/pit-api/internal/core/query"
	"github.com/spacetime/pit-api/internal/core/search"
	"github.com/spacetime/pit-api/internal/scenarios"
)

// Engine is a read-through response cache in front of the backend. Keys
// embed a generation token per dataset in scope, so rotating a dataset's
// token makes every response that could contain it unreachable.
type Engine struct {
	logger  *slog.Logger
	backend search.Searcher
	store   cacheiface.Interface
	ttl     time.Duration
	closer  func() error
}

func init() {
	scenarios.Register("cache", newCache)
}

// creates cache scenario searcher
func newCache(cfg config.Config, logger *slog.Logger, backend search.Searcher) (search.Searcher, error) {
	if backend == nil {
		return nil, errors.New("cache: search backend is required")
	}
	switch cfg.CacheDriver {
	case "memory":
		return New(logger, backend, memstore.New(cfg.CacheMemorySize), cfg.CacheTTLDefault), nil
	case "redis", "":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis client: %w", err)
		}
		e := New(logger, backend, newCacheAdapter(rc, cfg.CacheOpTimeout), cfg.CacheTTLDefault)
		e.closer = rc.Close
		return e, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q (want redis|memory)", cfg.CacheDriver)
	}
}

func New(logger *slog.Logger, backend search.Searcher, store cacheiface.Interface, ttl time.Duration) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, backend: backend, store: store, ttl: ttl}
}

type cacheAdapter struct {
	cli     *redisstore.Client
	timeout time.Duration
}

func newCacheAdapter(c *redisstore.Client, t time.Duration) cacheiface.Interface {
	return &cacheAdapter{cli: c, timeout: t}
}

// returns context with timeout if set
func (a *cacheAdapter) withTimeout() (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *cacheAdapter) MGet(ks []string) (map[string][]byte, error) {
	ctx, cancel := a.withTimeout()
	defer cancel()
	m, err := a.cli.MGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}
	return m, nil
}

func (a *cacheAdapter) Set(key string, val []byte, ttl time.Duration) error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	if err := a.cli.Set(ctx, key, val, ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (a *cacheAdapter) Del(ks ...string) error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	if err := a.cli.Del(ctx, ks...); err != nil {
		return fmt.Errorf("cache del %d keys: %w", len(ks), err)
	}
	return nil
}

// Search serves doc from the cache when possible. Cache failures never fail
// the request; the backend is queried instead.
func (e *Engine) Search(ctx context.Context, index string, doc query.Document) (search.Result, error) {
	key, err := e.keyFor(index, doc)
	if err != nil {
		observability.IncCacheError()
		e.logger.WarnContext(ctx, "cache key unavailable; querying backend", "err", err)
		return e.backend.Search(ctx, index, doc)
	}

	got, err := e.store.MGet([]string{key})
	switch {
	case err != nil:
		observability.IncCacheError()
		e.logger.WarnContext(ctx, "cache read failed", "key", key, "err", err)
	case len(got[key]) > 0:
		var res search.Result
		if err := json.Unmarshal(got[key], &res); err == nil {
			observability.IncCacheHit()
			e.logger.DebugContext(ctx, "cache hit", "key", key, "hits", len(res.Hits))
			return res, nil
		}
		observability.IncCacheError()
		e.logger.WarnContext(ctx, "cache entry undecodable; refetching", "key", key)
	}
	observability.IncCacheMiss()

	res, err := e.backend.Search(ctx, index, doc)
	if err != nil {
		return search.Result{}, err
	}

	raw, err := json.Marshal(res)
	if err != nil {
		e.logger.WarnContext(ctx, "cache encode failed", "err", err)
		return res, nil
	}
	if err := e.store.Set(key, raw, e.ttl); err != nil {
		observability.IncCacheError()
		e.logger.WarnContext(ctx, "cache write failed", "key", key, "err", err)
	}
	return res, nil
}

// Invalidate rotates the generation of each dataset and of the unrestricted
// scope.
func (e *Engine) Invalidate(datasets ...string) error {
	del := make([]string, 0, len(datasets)+1)
	del = append(del, keys.Generation(keys.AllDatasets))
	for _, ds := range datasets {
		if ds == "" || ds == keys.AllDatasets {
			continue
		}
		del = append(del, keys.Generation(ds))
	}
	if err := e.store.Del(del...); err != nil {
		return fmt.Errorf("rotate generations: %w", err)
	}
	e.logger.Info("cache generations rotated", "datasets", datasets)
	return nil
}

func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

func (e *Engine) keyFor(index string, doc query.Document) (string, error) {
	body, err := doc.JSON()
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}
	gens, err := e.generations(keys.Scope(doc.Datasets))
	if err != nil {
		return "", err
	}
	return keys.Search(index, body, gens), nil
}

// generations loads the token for each scope key, minting missing ones
func (e *Engine) generations(scope []string) ([]string, error) {
	got, err := e.store.MGet(scope)
	if err != nil {
		return nil, fmt.Errorf("load generations: %w", err)
	}
	out := make([]string, len(scope))
	for i, k := range scope {
		if v := got[k]; len(v) > 0 {
			out[i] = string(v)
			continue
		}
		tok := newToken()
		if err := e.store.Set(k, []byte(tok), 0); err != nil {
			return nil, fmt.Errorf("store generation: %w", err)
		}
		out[i] = tok
	}
	return out, nil
}

func newToken() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
