package baseline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/query"
	"github.com/spacetime/pit-api/internal/core/search"
	"github.com/spacetime/pit-api/internal/scenarios"
)

// Engine sends every query straight to the backend.
type Engine struct {
	logger  *slog.Logger
	backend search.Searcher
}

func init() {
	scenarios.Register("baseline", newBaseline)
}

func newBaseline(_ config.Config, logger *slog.Logger, backend search.Searcher) (search.Searcher, error) {
	if backend == nil {
		return nil, errors.New("baseline: search backend is required")
	}
	return &Engine{logger: logger, backend: backend}, nil
}

func (e *Engine) Search(ctx context.Context, index string, doc query.Document) (search.Result, error) {
	e.logger.DebugContext(ctx, "baseline search",
		"index", index,
		"must", len(doc.Query.Bool.Must),
		"filter", len(doc.Query.Bool.Filter))
	return e.backend.Search(ctx, index, doc)
}
