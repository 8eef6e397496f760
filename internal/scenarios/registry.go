// Package scenarios selects how queries reach the search backend.
package scenarios

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/search"
)

// Factory wraps backend in a scenario. The result may implement io.Closer.
type Factory func(cfg config.Config, logger *slog.Logger, backend search.Searcher) (search.Searcher, error)

const fallback = "baseline"

var factories = map[string]Factory{}

// Register is called from scenario package init functions. Names are unique.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		panic("scenarios: Register needs a name and a factory")
	}
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("scenarios: %q registered twice", name))
	}
	factories[name] = f
}

// Names lists the registered scenarios in order.
func Names() []string {
	return slices.Sorted(maps.Keys(factories))
}

// New builds the named scenario. Unknown names fall back to baseline with a
// warning so a typo in SCENARIO still serves uncached results.
func New(name string, cfg config.Config, logger *slog.Logger, backend search.Searcher) (search.Searcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, ok := factories[name]
	if !ok {
		f, ok = factories[fallback]
		if !ok {
			return nil, fmt.Errorf("no factory for scenario %q and no %s registered", name, fallback)
		}
		logger.Warn("unknown scenario; falling back", "scenario", name, "using", fallback, "known", Names())
	}
	return f(cfg, logger, backend)
}
