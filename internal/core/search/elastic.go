package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/observability"
	"github.com/spacetime/pit-api/internal/core/query"
)

type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Elastic runs queries through the official Elasticsearch client.
type Elastic struct {
	logger   *slog.Logger
	es       *elasticsearch.Client
	timeout  time.Duration
	startNow func() time.Time // for tests
}

func NewElastic(logger *slog.Logger, client *http.Client, cfg ElasticConfig) (*Elastic, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch: at least one address is required")
	}
	ec := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		// failures are surfaced to the caller, never retried here
		DisableRetry: true,
	}
	if client != nil && client.Transport != nil {
		ec.Transport = client.Transport
	}
	es, err := elasticsearch.NewClient(ec)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Elastic{
		logger:   logger,
		es:       es,
		timeout:  cfg.Timeout,
		startNow: time.Now,
	}, nil
}

type esResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []model.RawHit `json:"hits"`
	} `json:"hits"`
}

type esError struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func (e *Elastic) Search(ctx context.Context, index string, doc query.Document) (Result, error) {
	body, err := doc.JSON()
	if err != nil {
		return Result{}, fmt.Errorf("encode query: %w", err)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := e.startNow()
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(index),
		e.es.Search.WithBody(bytes.NewReader(body)),
		e.es.Search.WithTrackTotalHits(true),
	)
	dur := time.Since(start)
	observability.ObserveUpstreamLatency("elasticsearch", dur.Seconds())
	if err != nil {
		return Result{}, &model.BackendError{Msg: "search request failed", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	e.logger.Debug("search done",
		"index", index,
		"status", res.StatusCode,
		"duration", dur.String())

	if res.IsError() {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 8<<10))
		return Result{}, &model.BackendError{Status: res.StatusCode, Msg: errorReason(res.StatusCode, b)}
	}

	var out esResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Result{}, &model.BackendError{Msg: "decode search response", Err: err}
	}
	observability.ObserveSearchHits(len(out.Hits.Hits))
	return Result{Total: out.Hits.Total.Value, Hits: out.Hits.Hits}, nil
}

func (e *Elastic) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: status %d", res.StatusCode)
	}
	return nil
}

func errorReason(status int, body []byte) string {
	var ee esError
	if err := json.Unmarshal(body, &ee); err == nil && ee.Error.Reason != "" {
		if ee.Error.Type != "" {
			return fmt.Sprintf("%s: %s", ee.Error.Type, ee.Error.Reason)
		}
		return ee.Error.Reason
	}
	if len(body) > 0 {
		return fmt.Sprintf("upstream status %d: %s", status, string(body))
	}
	return fmt.Sprintf("upstream status %d", status)
}
