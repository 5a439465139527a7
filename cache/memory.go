package cache

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// memoryEntry holds a cached value with its expiry.
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// InMemoryStore is a thread-safe in-process store with per-entry TTL.
// It is used when no redis URL is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get retrieves a value from the store.
// Returns the value and true if found and not expired, empty string and false otherwise.
func (c *InMemoryStore) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}

	return entry.value, true
}

// Set stores a value, overwriting any existing entry.
func (c *InMemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		value:     value,
		expiresAt: c.now().Add(effectiveTTL(ttl)),
	}
}

// Len returns the number of entries in the store (including expired ones).
func (c *InMemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *InMemoryStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}

// Entries calls fn for every live entry matching match, in key order.
func (c *InMemoryStore) Entries(ctx context.Context, match string, fn func(Entry) error) error {
	if _, err := path.Match(match, ""); err != nil {
		return err
	}

	c.mu.RLock()
	now := c.now()
	live := make([]Entry, 0, len(c.entries))
	for key, entry := range c.entries {
		if ok, _ := path.Match(match, key); !ok {
			continue
		}
		if remaining := entry.expiresAt.Sub(now); remaining > 0 {
			live = append(live, Entry{Key: key, Value: entry.value, TTL: remaining})
		}
	}
	c.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool { return live[i].Key < live[j].Key })

	for _, e := range live {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Store      = (*InMemoryStore)(nil)
	_ Enumerable = (*InMemoryStore)(nil)
)
