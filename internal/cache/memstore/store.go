// Package memstore is an in-process LRU implementation of cache.Interface.
package memstore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 4096

type entry struct {
	val     []byte
	expires time.Time // zero means no expiry
}

type Store struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	now func() time.Time // for tests
}

func New(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[string, entry](size)
	return &Store{lru: c, now: time.Now}
}

// MGet returns copies of the live values for keys; expired entries are dropped.
func (s *Store) MGet(keys []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		e, ok := s.lru.Get(k)
		if !ok {
			continue
		}
		if !e.expires.IsZero() && !now.Before(e.expires) {
			s.lru.Remove(k)
			continue
		}
		out[k] = append([]byte(nil), e.val...)
	}
	return out, nil
}

func (s *Store) Set(key string, val []byte, ttl time.Duration) error {
	e := entry{val: append([]byte(nil), val...)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.lru.Add(key, e)
	return nil
}

func (s *Store) Del(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

func (s *Store) Len() int {
	return s.lru.Len()
}
