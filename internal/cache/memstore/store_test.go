package memstore

import (
	"testing"
	"time"
)

func TestSetMGetDel(t *testing.T) {
	s := New(8)
	if err := s.Set("a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("b", []byte("2"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, _ := s.MGet([]string{"a", "b", "missing"})
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Fatalf("unexpected values: %v", got)
	}

	_ = s.Del("a")
	got, _ = s.MGet([]string{"a", "b"})
	if _, ok := got["a"]; ok {
		t.Fatalf("a should be deleted")
	}
	if string(got["b"]) != "2" {
		t.Fatalf("b should survive; got=%v", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	s := New(8)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	_ = s.Set("ttl", []byte("v"), 2*time.Second)
	_ = s.Set("pinned", []byte("p"), 0)

	now = now.Add(3 * time.Second)
	got, _ := s.MGet([]string{"ttl", "pinned"})
	if _, ok := got["ttl"]; ok {
		t.Fatalf("expected ttl key to expire")
	}
	if string(got["pinned"]) != "p" {
		t.Fatalf("zero ttl key must not expire; got=%v", got)
	}
	if s.Len() != 1 {
		t.Fatalf("expired entry should be removed; len=%d", s.Len())
	}
}

func TestEviction_LeastRecentlyUsed(t *testing.T) {
	s := New(2)
	_ = s.Set("a", []byte("1"), 0)
	_ = s.Set("b", []byte("2"), 0)
	_, _ = s.MGet([]string{"a"})
	_ = s.Set("c", []byte("3"), 0)

	got, _ := s.MGet([]string{"a", "b", "c"})
	if _, ok := got["b"]; ok {
		t.Fatalf("b should have been evicted; got=%v", got)
	}
	if len(got) != 2 {
		t.Fatalf("want a and c; got=%v", got)
	}
}

func TestValuesAreCopied(t *testing.T) {
	s := New(4)
	buf := []byte("orig")
	_ = s.Set("k", buf, 0)
	buf[0] = 'X'

	got, _ := s.MGet([]string{"k"})
	if string(got["k"]) != "orig" {
		t.Fatalf("stored value aliased caller buffer: %q", got["k"])
	}
}
