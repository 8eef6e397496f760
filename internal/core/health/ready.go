package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessReporter is implemented by the invalidation consumer.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

type readiness struct {
	Status        string  `json:"status"`
	Elasticsearch string  `json:"elasticsearch"`
	Kafka         string  `json:"kafka,omitempty"`
	Partitions    []int32 `json:"partitions,omitempty"`
}

// Readiness reports ready when the search backend answers a ping within
// timeout and, when rr is set, the consumer holds partitions.
func Readiness(es Pinger, rr ReadinessReporter, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		out := readiness{Status: "ready", Elasticsearch: "ok"}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := es.Ping(ctx)
		cancel()
		if err != nil {
			out.Status = "not_ready"
			out.Elasticsearch = err.Error()
		}

		if rr != nil {
			ready, parts := rr.Readiness()
			if ready {
				out.Kafka = "assigned"
				out.Partitions = parts
			} else {
				out.Status = "not_ready"
				out.Kafka = "waiting_for_assignment"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
