package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	return store, clock
}

func TestMemoryStore(t *testing.T) {
	store, clock := newTestStore()

	// Test initial state
	assert.Equal(t, 0, store.Size())
	assert.False(t, store.Exists(KeyCurrentRate))

	// Test storing and retrieving
	store.Put(KeyCurrentRate, "snapshot", 10*time.Minute)
	assert.Equal(t, 1, store.Size())
	assert.True(t, store.Exists(KeyCurrentRate))

	value, ok := store.Get(KeyCurrentRate)
	require.True(t, ok)
	assert.Equal(t, "snapshot", value)

	// Test non-existent retrieval
	_, ok = store.Get("missing")
	assert.False(t, ok)

	// Test overwrite resets the expiry
	clock.Advance(9 * time.Minute)
	store.Put(KeyCurrentRate, "newer", 10*time.Minute)
	clock.Advance(5 * time.Minute)
	value, ok = store.Get(KeyCurrentRate)
	require.True(t, ok)
	assert.Equal(t, "newer", value)

	// Test expiration
	clock.Advance(5 * time.Minute)
	_, ok = store.Get(KeyCurrentRate)
	assert.False(t, ok)
	assert.False(t, store.Exists(KeyCurrentRate))

	// Test cleaning expired entries
	assert.Equal(t, 1, store.Size())
	assert.Equal(t, 1, store.CleanExpired())
	assert.Equal(t, 0, store.Size())

	// Test removal
	store.Put(KeyCurrentRate, "snapshot", time.Hour)
	store.Remove(KeyCurrentRate)
	assert.False(t, store.Exists(KeyCurrentRate))

	// Test clearing
	store.Put("a", 1, time.Hour)
	store.Put("b", 2, time.Hour)
	assert.Equal(t, 2, store.Size())
	store.Clear()
	assert.Equal(t, 0, store.Size())
}

func TestPutWithoutTTLDropsEntry(t *testing.T) {
	store, _ := newTestStore()

	store.Put("key", "value", time.Hour)
	store.Put("key", "value", 0)

	assert.False(t, store.Exists("key"))
	assert.Equal(t, 0, store.Size())
}

func TestRemoveMatching(t *testing.T) {
	store, clock := newTestStore()

	store.Put(KeyCurrentRate, 1, time.Hour)
	store.Put(KeyRateHistory, 2, time.Hour)
	store.Put(KeyRateHistory+":page:2", 3, time.Minute)
	store.Put("Other:Key", 4, time.Hour)

	// Expired entries still held are removed too
	clock.Advance(2 * time.Minute)

	t.Run("Prefix is case-insensitive", func(t *testing.T) {
		removed, err := store.RemoveMatching("^cache:exchangehistory")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		assert.False(t, store.Exists(KeyRateHistory))
		assert.True(t, store.Exists(KeyCurrentRate))
		assert.True(t, store.Exists("Other:Key"))
	})

	t.Run("No match", func(t *testing.T) {
		removed, err := store.RemoveMatching(PrefixPattern("Job:"))
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
		assert.Equal(t, 2, store.Size())
	})

	t.Run("Invalid pattern", func(t *testing.T) {
		_, err := store.RemoveMatching("([")
		assert.Error(t, err)
		assert.Equal(t, 2, store.Size())
	})
}

func TestPrefixPatternQuotesKey(t *testing.T) {
	store, _ := newTestStore()

	store.Put("a.b", 1, time.Hour)
	store.Put("axb", 2, time.Hour)

	removed, err := store.RemoveMatching(PrefixPattern("a.b"))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, store.Exists("axb"))
}

func TestConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("Cache:Item:%d:%d", i, j)
				store.Put(key, j, time.Minute)
				store.Get(key)
				if j%10 == 0 {
					_, _ = store.RemoveMatching("^Cache:Item:" + fmt.Sprint(i) + ":")
				}
			}
		}(i)
	}
	wg.Wait()

	_, err := store.RemoveMatching("^Cache:")
	require.NoError(t, err)
	assert.Equal(t, 0, store.Size())
}
