// Package invalidation defines the dataset change events that expire cached
// search responses.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

// Event announces that the PITs of one dataset changed in the index.
type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Dataset string    `json:"dataset"`
	TS      time.Time `json:"ts"`
	// Seq orders events of one dataset; zero disables de-duplication.
	Seq uint64 `json:"seq,omitempty"`
}

const (
	OpReindex = "reindex"
	OpUpdate  = "update"
	OpDelete  = "delete"
)

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpReindex, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("op must be reindex|update|delete")
	}
	if strings.TrimSpace(e.Dataset) == "" {
		return fmt.Errorf("dataset is required")
	}
	if strings.ContainsAny(e.Dataset, "/,") {
		return fmt.Errorf("dataset %q must not contain '/' or ','", e.Dataset)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// Invalidator expires cached data for the given datasets.
type Invalidator interface {
	Invalidate(datasets ...string) error
}
