// Package cache provides the process-local cache used for the current rate and history pages
package cache

import (
	"fmt"
	"regexp"
	"sync"
	"time"
)

// Store is a key/value cache with per-entry expiry
type Store interface {
	// Get returns the value stored under key, or false if it is missing or expired
	Get(key string) (any, bool)
	Exists(key string) bool
	// Put stores value until now+ttl, replacing any existing entry
	Put(key string, value any, ttl time.Duration)
	Remove(key string)
	// RemoveMatching removes every held key matching the case-insensitive regular expression
	RemoveMatching(pattern string) (int, error)
}

// Entry is a cached value with its absolute expiry
type Entry struct {
	Key       string
	Value     any
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// MemoryStore is a thread-safe in-memory Store. The entries map is the store's own key index,
// so pattern removal never depends on a runtime-internal enumeration.
type MemoryStore struct {
	entries map[string]Entry
	mutex   sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get implements Store
func (c *MemoryStore) Get(key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists || entry.expired(c.now()) {
		return nil, false
	}

	return entry.Value, true
}

// Exists implements Store
func (c *MemoryStore) Exists(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Put implements Store. A non-positive ttl stores nothing and drops any existing entry.
func (c *MemoryStore) Put(key string, value any, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if ttl <= 0 {
		delete(c.entries, key)
		return
	}

	c.entries[key] = Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Remove implements Store
func (c *MemoryStore) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// RemoveMatching implements Store
func (c *MemoryStore) RemoveMatching(pattern string) (int, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid cache key pattern %q: %w", pattern, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			count++
		}
	}

	return count, nil
}

// Clear clears all entries from the cache
func (c *MemoryStore) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]Entry)
}

// Size returns the number of items in the cache, expired or not
func (c *MemoryStore) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// CleanExpired removes expired entries from the cache
func (c *MemoryStore) CleanExpired() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := 0
	now := c.now()

	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			count++
		}
	}

	return count
}
