// Package filter turns request parameters into a typed search filter.
package filter

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/spacetime/pit-api/internal/core/model"
)

const (
	DefaultSize = 100
	MaxSize     = 1000
)

// FromValues flattens query-string values, keeping the first value per key.
func FromValues(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}

// Parse validates params and builds a SearchFilter. The returned warning is
// non-empty when conflicting inputs were dropped.
func Parse(params map[string]string) (model.SearchFilter, string, error) {
	if _, ok := params["datasetId"]; ok {
		return parseLookup(params)
	}
	if _, ok := params["objectId"]; ok {
		return parseLookup(params)
	}

	var warns []string
	f := model.SearchFilter{Operation: model.OpContains, Size: DefaultSize}

	if name := params["name"]; strings.TrimSpace(name) != "" {
		f.Name = name
	}

	raw, w := pick(params, "dataset", "datasets")
	warns = appendWarn(warns, w)
	f.Datasets = splitSet(raw)

	raw, w = pick(params, "type", "types")
	warns = appendWarn(warns, w)
	f.Types = splitSet(raw)

	raw, w = pick(params, "before", "until")
	warns = appendWarn(warns, w)
	if raw != "" {
		f.ValidBefore = raw + "-12-31"
	}

	raw, w = pick(params, "after", "since")
	warns = appendWarn(warns, w)
	if raw != "" {
		f.ValidAfter = raw + "-01-01"
	}

	op := strings.TrimSpace(params["geometry-operation"])
	if op != "" && !model.GeometryOp(op).Valid() {
		return model.SearchFilter{}, "", fmt.Errorf("%w: %q (want contains|intersects)", model.ErrInvalidOperation, op)
	}

	var boxKey string
	for _, k := range []string{"geometry", "contains", "intersects"} {
		if strings.TrimSpace(params[k]) == "" {
			continue
		}
		if boxKey != "" {
			warns = append(warns, fmt.Sprintf("both %s and %s supplied; preferring %s", boxKey, k, boxKey))
			continue
		}
		boxKey = k
	}
	if boxKey != "" {
		bb, err := parseBBox(params[boxKey])
		if err != nil {
			return model.SearchFilter{}, "", fmt.Errorf("%w: %s: %w", model.ErrParse, boxKey, err)
		}
		f.BBox = &bb
		switch boxKey {
		case "contains":
			f.Operation = model.OpContains
		case "intersects":
			f.Operation = model.OpIntersects
		default:
			if op != "" {
				f.Operation = model.GeometryOp(op)
			}
		}
	}

	size, err := parseInt(params["size"], DefaultSize, 1, MaxSize)
	if err != nil {
		return model.SearchFilter{}, "", fmt.Errorf("%w: size: %w", model.ErrParse, err)
	}
	from, err := parseInt(params["from"], 0, 0, math.MaxInt32)
	if err != nil {
		return model.SearchFilter{}, "", fmt.Errorf("%w: from: %w", model.ErrParse, err)
	}
	f.Size, f.From = size, from

	return f, strings.Join(warns, "; "), nil
}

func parseLookup(params map[string]string) (model.SearchFilter, string, error) {
	ds := strings.TrimSpace(params["datasetId"])
	obj := strings.TrimSpace(params["objectId"])
	if ds == "" || obj == "" {
		return model.SearchFilter{}, "", fmt.Errorf("%w: datasetId and objectId are required", model.ErrMissingIdentifier)
	}
	return model.SearchFilter{
		Operation: model.OpContains,
		Size:      1,
		Lookup:    &model.Lookup{DatasetID: ds, ObjectID: obj},
	}, "", nil
}

// pick returns the first non-empty value of the given alias keys
func pick(params map[string]string, keys ...string) (string, string) {
	var val, from, warn string
	for _, k := range keys {
		v := strings.TrimSpace(params[k])
		if v == "" {
			continue
		}
		if from != "" {
			warn = fmt.Sprintf("both %s and %s supplied; preferring %s", from, k, from)
			continue
		}
		val, from = v, k
	}
	return val, warn
}

func appendWarn(ws []string, w string) []string {
	if w == "" {
		return ws
	}
	return append(ws, w)
}

// splitSet comma-splits s, dropping blanks and repeats; nil when nothing remains.
func splitSet(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func parseBBox(raw string) (model.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.BBox{}, fmt.Errorf("expected 4 comma-separated values x1,y1,x2,y2 (got %d)", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.BBox{}, fmt.Errorf("value %d: parse float: %w", i+1, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return model.BBox{}, fmt.Errorf("value %d: must be finite", i+1)
		}
		v[i] = f
	}
	return model.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

func parseInt(raw string, def, lo, hi int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse int: %w", err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("must be in [%d,%d]", lo, hi)
	}
	return n, nil
}
