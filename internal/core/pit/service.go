// Package pit runs filter sets against the search backend and returns GeoJSON.
package pit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spacetime/pit-api/internal/core/geojson"
	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/query"
	"github.com/spacetime/pit-api/internal/core/search"
)

type Service struct {
	logger    *slog.Logger
	searcher  search.Searcher
	projector *geojson.Projector
	index     string
}

func New(logger *slog.Logger, s search.Searcher, p *geojson.Projector, index string) (*Service, error) {
	if s == nil || p == nil {
		return nil, errors.New("pit: searcher and projector are required")
	}
	if index == "" {
		return nil, errors.New("pit: index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, searcher: s, projector: p, index: index}, nil
}

// Search returns every hit for f together with the backend total.
func (s *Service) Search(ctx context.Context, f model.SearchFilter) (geojson.FeatureCollection, int, error) {
	res, err := s.run(ctx, f)
	if err != nil {
		return geojson.FeatureCollection{}, 0, err
	}
	return s.projector.Collection(res.Hits), res.Total, nil
}

// Lookup returns the single PIT addressed by f.Lookup.
func (s *Service) Lookup(ctx context.Context, f model.SearchFilter) (geojson.Feature, error) {
	if f.Lookup == nil {
		return geojson.Feature{}, fmt.Errorf("%w: lookup requires datasetId and objectId", model.ErrMissingIdentifier)
	}
	res, err := s.run(ctx, f)
	if err != nil {
		return geojson.Feature{}, err
	}
	feat, err := s.projector.Single(res.Hits)
	if err != nil {
		return geojson.Feature{}, fmt.Errorf("pit %s: %w", f.Lookup.ID(), err)
	}
	return feat, nil
}

func (s *Service) run(ctx context.Context, f model.SearchFilter) (search.Result, error) {
	doc := query.Build(f)
	res, err := s.searcher.Search(ctx, s.index, doc)
	if err != nil {
		s.logger.WarnContext(ctx, "search failed", "index", s.index, "err", err)
		return search.Result{}, err
	}
	return res, nil
}
