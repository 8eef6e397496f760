// Package keys derives cache keys for search responses and dataset generations.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "pit"

// AllDatasets scopes queries that are not restricted to named datasets.
const AllDatasets = "_all"

// Search keys a query body under the generation tokens of its dataset scope.
func Search(index string, body []byte, gens []string) string {
	bodySum := xxhash.Sum64(body)
	genSum := xxhash.Sum64String(strings.Join(gens, "|"))
	return fmt.Sprintf("%s:search:%s:q=%016x:g=%016x", prefix, sanitize(strings.TrimSpace(index)), bodySum, genSum)
}

// Generation keys the current generation token of a dataset.
func Generation(dataset string) string {
	ds := strings.TrimSpace(dataset)
	if ds == "" {
		ds = AllDatasets
	}
	safe := sanitize(ds)
	const maxLen = 120
	if len(safe) > maxLen {
		safe = safe[:maxLen]
	}
	// hash keeps datasets that sanitize to the same text apart
	return fmt.Sprintf("%s:gen:%s:%08x", prefix, safe, uint32(xxhash.Sum64String(ds)))
}

// Scope lists the generation keys a query depends on.
func Scope(datasets []string) []string {
	if len(datasets) == 0 {
		return []string{Generation(AllDatasets)}
	}
	out := make([]string, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, Generation(ds))
	}
	return out
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// any other rune (including non-ASCII and ':') becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
