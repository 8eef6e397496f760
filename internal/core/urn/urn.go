// Package urn expands historical-gazetteer identifiers to canonical URLs.
package urn

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const HGIDPrefix = "urn:hgid:"

const DefaultBaseURL = "http://spacetime.nypl.org/"

var ErrMalformed = errors.New("malformed identifier")

type Expander struct {
	base string
}

// New returns an expander rooted at baseURL; an empty base uses DefaultBaseURL.
func New(baseURL string) (*Expander, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", base)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Expander{base: base}, nil
}

// Expand maps id to its URL form. URLs come back unchanged; hgid URNs and
// bare dataset/id pairs are resolved against the base URL.
func (e *Expander) Expand(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformed)
	}
	if IsURL(id) {
		return id, nil
	}

	rest := strings.TrimPrefix(id, HGIDPrefix)
	if strings.HasPrefix(rest, "urn:") {
		return "", fmt.Errorf("%w: unsupported urn %q", ErrMalformed, id)
	}
	dataset, obj, ok := strings.Cut(rest, "/")
	if !ok || dataset == "" || obj == "" {
		return "", fmt.Errorf("%w: %q is not dataset/id", ErrMalformed, id)
	}
	return e.base + url.PathEscape(dataset) + "/" + escapeSegments(obj), nil
}

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsURN reports whether s uses a urn: scheme other than hgid.
func IsURN(s string) bool {
	return strings.HasPrefix(s, "urn:") && !strings.HasPrefix(s, HGIDPrefix)
}

func escapeSegments(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
