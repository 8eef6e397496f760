// Package router holds the HTTP handlers of the PIT API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spacetime/pit-api/internal/core/filter"
	"github.com/spacetime/pit-api/internal/core/geojson"
	"github.com/spacetime/pit-api/internal/core/model"
	"github.com/spacetime/pit-api/internal/core/observability"
	mylog "github.com/spacetime/pit-api/internal/logger"
)

// PITService answers parsed filter sets.
type PITService interface {
	Search(ctx context.Context, f model.SearchFilter) (geojson.FeatureCollection, int, error)
	Lookup(ctx context.Context, f model.SearchFilter) (geojson.Feature, error)
}

const contentTypeGeoJSON = "application/geo+json; charset=utf-8"

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// observed wraps h with the request metrics for route.
func observed(route string, h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r.WithContext(mylog.WithRoute(r.Context(), route)))
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func HandleRoot(title string) http.HandlerFunc {
	return observed("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, "application/json", map[string]string{"title": title})
	})
}

// HandleSearch serves /search. A request naming datasetId or objectId is an
// exact lookup and answers with a single Feature.
func HandleSearch(logger *slog.Logger, svc PITService) http.HandlerFunc {
	return observed("/search", func(w http.ResponseWriter, r *http.Request) {
		serve(logger, svc, w, r, filter.FromValues(r.URL.Query()))
	})
}

// HandleObject serves /objects/{datasetId}/{objectId}.
func HandleObject(logger *slog.Logger, svc PITService) http.HandlerFunc {
	return observed("/objects", func(w http.ResponseWriter, r *http.Request) {
		params := map[string]string{
			"datasetId": chi.URLParam(r, "datasetId"),
			"objectId":  chi.URLParam(r, "objectId"),
		}
		serve(logger, svc, w, r, params)
	})
}

func serve(logger *slog.Logger, svc PITService, w http.ResponseWriter, r *http.Request, params map[string]string) {
	ctx := r.Context()
	f, warn, err := filter.Parse(params)
	if warn != "" {
		logger.WarnContext(ctx, warn)
	}
	if err != nil {
		writeError(ctx, logger, w, err)
		return
	}

	if f.Lookup != nil {
		feat, err := svc.Lookup(ctx, f)
		if err != nil {
			writeError(ctx, logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, contentTypeGeoJSON, feat)
		return
	}

	fc, total, err := svc.Search(ctx, f)
	if err != nil {
		writeError(ctx, logger, w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, contentTypeGeoJSON, fc)
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	var be *model.BackendError
	switch {
	case errors.Is(err, model.ErrInvalidOperation):
		return http.StatusNotAcceptable
	case errors.Is(err, model.ErrParse), errors.Is(err, model.ErrMissingIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case timedOut(err):
		return http.StatusGatewayTimeout
	case errors.As(err, &be):
		if be.Client() {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// timedOut matches an expired search deadline, whether it surfaces as the
// context error or as a transport timeout inside a BackendError.
func timedOut(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	code := StatusFor(err)
	msg := err.Error()
	if code >= 500 {
		logger.ErrorContext(ctx, "request failed", "status", code, "err", err)
		if code == http.StatusInternalServerError {
			msg = "internal server error"
		}
	} else {
		logger.DebugContext(ctx, "request rejected", "status", code, "err", err)
	}
	writeJSON(w, code, "application/json", errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NotFound answers unknown paths with the JSON error body.
func NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, "application/json", errorBody{Error: "no route for " + r.URL.Path})
	}
}

func MethodNotAllowed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "GET, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, "application/json", errorBody{Error: r.Method + " not allowed"})
	}
}
