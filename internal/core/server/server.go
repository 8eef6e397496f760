// Package server wires the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/health"
	middleware "github.com/spacetime/pit-api/internal/core/middleware"
	"github.com/spacetime/pit-api/internal/core/router"
	"github.com/spacetime/pit-api/internal/metrics"
)

type Deps struct {
	Service  router.PITService
	Backend  health.Pinger
	Consumer health.ReadinessReporter // nil when invalidation is off
	Metrics  *metrics.Provider
}

func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())
	r.Use(chimw.StripSlashes)
	r.NotFound(router.NotFound())
	r.MethodNotAllowed(router.MethodNotAllowed())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Backend, d.Consumer, 2*time.Second))
	if d.Metrics.Enabled() {
		r.Method(http.MethodGet, d.Metrics.Path(), d.Metrics.Handler())
	}

	r.Get("/", router.HandleRoot(cfg.APITitle))
	r.Get("/search", router.HandleSearch(logger, d.Service))
	r.Get("/objects/{datasetId}/{objectId}", router.HandleObject(logger, d.Service))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.SearchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
