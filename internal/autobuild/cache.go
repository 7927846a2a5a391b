package autobuild

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrCacheCorrupt is returned when the cache file exists but cannot be
// parsed as a flat JSON object of integers
var ErrCacheCorrupt = errors.New("cache file is corrupted")

// Cache records, per package, the upstream modification stamp of the last
// successful build. It is an in-memory mapping mirrored to a single JSON
// file; every persist rewrites the whole file.
type Cache struct {
	entries map[string]int64
	path    string
	mu      sync.RWMutex
}

// Entry is one recorded package stamp, used for display
type Entry struct {
	Name  string
	Stamp int64
}

// LoadCache creates a cache backed by the file at path. A missing or
// empty file yields an empty mapping; a non-empty file that does not
// parse fails with ErrCacheCorrupt. The parent directory is created so a
// later Persist cannot fail on a missing path.
func LoadCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &Cache{
		entries: make(map[string]int64),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return cache, nil
	}

	if err := json.Unmarshal(data, &cache.entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	return cache, nil
}

// Get returns the recorded stamp for a package
func (c *Cache) Get(name string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stamp, ok := c.entries[name]
	return stamp, ok
}

// Record stores the stamp of a successful build in memory.
// Call Persist to make it durable.
func (c *Cache) Record(name string, stamp int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = stamp
}

// Persist atomically rewrites the cache file from the in-memory mapping.
// An empty mapping is never written: persisting it is a no-op, so an
// accidental empty state cannot destroy a previously persisted cache.
func (c *Cache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// Forget drops the entry for a package from memory, reporting whether it
// existed
func (c *Cache) Forget(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[name]
	delete(c.entries, name)
	return ok
}

// Clear drops all entries from memory
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]int64)
}

// Remove deletes the on-disk cache file. Persist refuses to write an
// empty mapping, so user-driven edits that empty the cache go through
// Remove instead.
func (c *Cache) Remove() error {
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// Len returns the number of recorded packages
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of the recorded stamps sorted by package name
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for name, stamp := range c.entries {
		entries = append(entries, Entry{Name: name, Stamp: stamp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries
}

// Path returns the cache file location
func (c *Cache) Path() string {
	return c.path
}
