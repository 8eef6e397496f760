// Package search executes query documents against the search backend.
package search

import (
	"context"

	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/query"
)

// Result is the backend answer for one query.
type Result struct {
	Total int            `json:"total"`
	Hits  []model.RawHit `json:"hits"`
}

type Searcher interface {
	Search(ctx context.Context, index string, doc query.Document) (Result, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
