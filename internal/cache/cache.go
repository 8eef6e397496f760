// Package cache defines the key/value store behind the search response cache.
package cache

import "time"

// Interface is a byte store with per-key TTL. A zero TTL keeps the key until
// it is deleted or evicted.
type Interface interface {
	MGet(keys []string) (map[string][]byte, error)
	Set(key string, val []byte, ttl time.Duration) error
	Del(keys ...string) error
}
