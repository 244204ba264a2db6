// package cache provides a get/set cache capability with per entry TTLs.
//
// The federation code uses it for the hot actor-by-URI cache and the
// negative webfinger cache. The process owns the cache; it starts empty
// and needs no teardown beyond process exit.
package cache

import (
	"sync"
	"time"
)

// Cache is a key/value store whose entries expire.
type Cache interface {
	// Get returns the value stored for key, or false if the key is
	// absent or its TTL has passed.
	Get(key string) (any, bool)
	// Set stores value under key for the given TTL.
	Set(key string, value any, ttl time.Duration)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process Cache. The zero value is not usable; use New.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New returns an empty in-memory cache.
func New() *Memory {
	return &Memory{
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key) // expired, reap lazily
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}
