// Package ephemeral provides short-lived in-memory key-value stores, such as
// the records of asynchronous tally jobs. Entries expire after a TTL and the
// least recently used ones are evicted when the store is full.
package ephemeral

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store is a bounded in-memory store with expiring entries. Implementations
// are safe for concurrent use.
type Store[V any] interface {
	Set(key string, value V)
	Get(key string) (V, bool)
	Delete(key string)
	Len() int
}

// LRU is a Store backed by an expirable LRU cache.
type LRU[V any] struct {
	cache *expirable.LRU[string, V]
}

var _ Store[int] = (*LRU[int])(nil)

// NewLRU returns a store that keeps at most size entries, each for ttl. A
// zero ttl disables expiration.
func NewLRU[V any](size int, ttl time.Duration) *LRU[V] {
	return &LRU[V]{cache: expirable.NewLRU[string, V](size, nil, ttl)}
}

// Set stores value under key, refreshing its expiration.
func (s *LRU[V]) Set(key string, value V) {
	s.cache.Add(key, value)
}

// Get returns the value of key if present and not expired.
func (s *LRU[V]) Get(key string) (V, bool) {
	return s.cache.Get(key)
}

// Delete removes key.
func (s *LRU[V]) Delete(key string) {
	s.cache.Remove(key)
}

// Len returns the number of entries, including expired ones not yet
// purged.
func (s *LRU[V]) Len() int {
	return s.cache.Len()
}
