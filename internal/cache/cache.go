// Package cache memoises analysis results such as ensemble weights, in process or in
// Redis.
package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Key hashes the JSON encoding of parts into a short stable key
func Key(parts ...interface{}) (string, error) {
	h := xxhash.New()
	for _, p := range parts {
		raw, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("failed to hash cache key part: %w", err)
		}
		_, _ = h.Write(raw)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

type entry[V any] struct {
	value   V
	expires time.Time // zero never expires
}

// Store is an in-process map published by atomic pointer swap. Readers never block;
// writers copy the map under a mutex.
type Store[V any] struct {
	entries atomic.Pointer[map[string]entry[V]]
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store whose entries live for ttl, forever when ttl is 0
func NewStore[V any](ttl time.Duration) *Store[V] {
	s := &Store[V]{ttl: ttl, now: time.Now}
	empty := make(map[string]entry[V])
	s.entries.Store(&empty)
	return s
}

// Get returns the live value under key
func (s *Store[V]) Get(key string) (V, bool) {
	e, ok := (*s.entries.Load())[key]
	if !ok || (!e.expires.IsZero() && !s.now().Before(e.expires)) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key and drops expired entries
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	current := *s.entries.Load()
	next := make(map[string]entry[V], len(current)+1)
	for k, e := range current {
		if e.expires.IsZero() || now.Before(e.expires) {
			next[k] = e
		}
	}

	e := entry[V]{value: value}
	if s.ttl > 0 {
		e.expires = now.Add(s.ttl)
	}
	next[key] = e
	s.entries.Store(&next)
}

// Len returns the number of stored entries, expired ones included
func (s *Store[V]) Len() int {
	return len(*s.entries.Load())
}
