// Package cache provides a small TTL cache for raw EDGAR responses with
// msgpack snapshots on disk.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Entry is a cached value plus its bookkeeping.
type Entry struct {
	Key       string            `msgpack:"key"`
	Data      []byte            `msgpack:"data"`
	CreatedAt time.Time         `msgpack:"created_at"`
	ExpiresAt time.Time         `msgpack:"expires_at"`
	Metadata  map[string]string `msgpack:"metadata,omitempty"`
}

// Expired reports whether the entry is past its TTL at now. Entries with a zero
// ExpiresAt never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// DataCache is a named, size-bounded TTL cache. It is safe for concurrent use.
type DataCache struct {
	name       string
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]*Entry
}

// Option configures a DataCache.
type Option func(*DataCache)

// WithMaxSize bounds the number of entries; 0 means unbounded.
func WithMaxSize(n int) Option {
	return func(c *DataCache) { c.maxSize = n }
}

// WithDefaultTTL sets the TTL used by Set.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *DataCache) { c.defaultTTL = ttl }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *DataCache) { c.now = now }
}

// New creates an empty cache.
func New(name string, opts ...Option) *DataCache {
	c := &DataCache{
		name:       name,
		defaultTTL: 24 * time.Hour,
		now:        time.Now,
		entries:    make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the cache name.
func (c *DataCache) Name() string { return c.name }

// DefaultTTL returns the TTL applied by Set.
func (c *DataCache) DefaultTTL() time.Duration { return c.defaultTTL }

// Get returns the cached bytes for key. Expired entries are dropped.
func (c *DataCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.Expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && cur.Expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.Data, true
}

// Set stores data under key with the default TTL.
func (c *DataCache) Set(key string, data []byte) {
	c.SetWithTTL(key, data, c.defaultTTL, nil)
}

// SetWithTTL stores data with an explicit TTL. A ttl <= 0 never expires.
func (c *DataCache) SetWithTTL(key string, data []byte, ttl time.Duration, metadata map[string]string) {
	now := c.now()
	e := &Entry{Key: key, Data: data, CreatedAt: now, Metadata: metadata}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = e
}

// Delete removes key. It reports whether the key was present.
func (c *DataCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear drops every entry.
func (c *DataCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *DataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *DataCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.CreatedAt.Before(oldest) {
			oldestKey, oldest = k, e.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// SaveToFile writes all unexpired entries to path as msgpack.
func (c *DataCache) SaveToFile(path string) error {
	now := c.now()
	c.mu.RLock()
	snapshot := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.Expired(now) {
			snapshot = append(snapshot, e)
		}
	}
	c.mu.RUnlock()

	data, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", c.name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache %s: %w", c.name, err)
	}
	return os.Rename(tmp, path)
}

// LoadFromFile merges the entries stored at path, skipping expired ones.
// A missing file is not an error. It returns the number of entries loaded.
func (c *DataCache) LoadFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache %s: %w", c.name, err)
	}
	var snapshot []*Entry
	if err := msgpack.Unmarshal(data, &snapshot); err != nil {
		return 0, fmt.Errorf("decode cache %s: %w", c.name, err)
	}

	now := c.now()
	loaded := 0
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range snapshot {
		if e == nil || e.Expired(now) {
			continue
		}
		c.entries[e.Key] = e
		loaded++
	}
	return loaded, nil
}
