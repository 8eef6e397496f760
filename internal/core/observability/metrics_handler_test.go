package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/search", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "app_build_info") || !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestRegister_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	Register(reg)
}

func TestCacheAndInvalidationCounters(t *testing.T) {
	SetScenario("cache")
	t.Cleanup(func() { SetScenario("") })

	beforeHit := testutil.ToFloat64(cacheResults.WithLabelValues("hit", "cache"))
	beforeMiss := testutil.ToFloat64(cacheResults.WithLabelValues("miss", "cache"))
	IncCacheHit()
	IncCacheMiss()
	IncCacheMiss()

	if got := testutil.ToFloat64(cacheResults.WithLabelValues("hit", "cache")) - beforeHit; got != 1 {
		t.Fatalf("hit delta=%v want 1", got)
	}
	if got := testutil.ToFloat64(cacheResults.WithLabelValues("miss", "cache")) - beforeMiss; got != 2 {
		t.Fatalf("miss delta=%v want 2", got)
	}

	before := testutil.ToFloat64(invalidations.WithLabelValues("skipped"))
	IncInvalidation("skipped")
	if got := testutil.ToFloat64(invalidations.WithLabelValues("skipped")) - before; got != 1 {
		t.Fatalf("invalidation delta=%v want 1", got)
	}
}

func TestSearchHits_Histogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	SetScenario("baseline")

	ObserveSearchHits(3)
	ObserveUpstreamLatency("elasticsearch", 0.02)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, `search_hits_bucket{scenario="baseline",le="5"}`) {
		t.Fatalf("missing search_hits bucket; got:\n%s", body)
	}
	if !strings.Contains(body, `upstream_latency_seconds_count{scenario="baseline",upstream="elasticsearch"}`) {
		t.Fatalf("missing upstream latency sample; got:\n%s", body)
	}
}
