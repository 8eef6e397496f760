package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type reporter struct {
	ready bool
	parts []int32
}

func (r reporter) Readiness() (bool, []int32) { return r.ready, r.parts }

func probe(t *testing.T, h http.HandlerFunc) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%q)", err, rr.Body.String())
	}
	return rr.Code, body
}

func TestReadiness_BackendUp(t *testing.T) {
	code, body := probe(t, Readiness(pinger{}, nil, time.Second))
	if code != http.StatusOK || body["status"] != "ready" || body["elasticsearch"] != "ok" {
		t.Fatalf("code=%d body=%v", code, body)
	}
	if _, ok := body["kafka"]; ok {
		t.Fatalf("kafka must be omitted without a consumer: %v", body)
	}
}

func TestReadiness_BackendDown(t *testing.T) {
	code, body := probe(t, Readiness(pinger{err: errors.New("connection refused")}, nil, time.Second))
	if code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Fatalf("code=%d body=%v", code, body)
	}
	if !strings.Contains(body["elasticsearch"].(string), "refused") {
		t.Fatalf("reason missing: %v", body)
	}
}

func TestReadiness_ConsumerAssignment(t *testing.T) {
	code, body := probe(t, Readiness(pinger{}, reporter{}, time.Second))
	if code != http.StatusServiceUnavailable || body["kafka"] != "waiting_for_assignment" {
		t.Fatalf("code=%d body=%v", code, body)
	}
	code, body = probe(t, Readiness(pinger{}, reporter{ready: true, parts: []int32{0, 1}}, time.Second))
	if code != http.StatusOK || len(body["partitions"].([]any)) != 2 {
		t.Fatalf("code=%d body=%v", code, body)
	}
}
