package invalidation

import (
	"encoding/json"
	"testing"
	"time"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestEvent_Validate_HappyPath(t *testing.T) {
	for _, op := range []string{OpReindex, OpUpdate, OpDelete} {
		ev := Event{Version: 1, Op: op, Dataset: "tgn", TS: mustTS(), Seq: 3}
		if err := ev.Validate(); err != nil {
			t.Fatalf("op=%s: unexpected: %v", op, err)
		}
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	cases := map[string]Event{
		"version":      {Version: 2, Op: OpUpdate, Dataset: "tgn", TS: mustTS()},
		"op":           {Version: 1, Op: "insert", Dataset: "tgn", TS: mustTS()},
		"dataset":      {Version: 1, Op: OpUpdate, Dataset: "  ", TS: mustTS()},
		"dataset path": {Version: 1, Op: OpUpdate, Dataset: "tgn/1", TS: mustTS()},
		"ts":           {Version: 1, Op: OpUpdate, Dataset: "tgn"},
	}
	for name, ev := range cases {
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvent_Decode(t *testing.T) {
	raw := `{"version":1,"op":"reindex","dataset":"mapwarper","ts":"2025-10-26T12:30:45Z","seq":42}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Dataset != "mapwarper" || ev.Seq != 42 || !ev.TS.Equal(mustTS()) {
		t.Fatalf("decoded=%+v", ev)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
