package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const indexFile = "index.json"

// Entry records one cached download.
type Entry struct {
	Path         string    `json:"path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// CheckFunc validates a cached file before the cache will serve it.
type CheckFunc func(ctx context.Context, path string) error

// DownloadCache maps source URLs to already-downloaded local files so the
// same source is not fetched twice within the expiry window. The index is
// one JSON file, rewritten synchronously after every mutation.
type DownloadCache struct {
	mu      sync.Mutex
	dir     string
	ttl     time.Duration
	check   CheckFunc
	entries map[string]Entry
}

func New(dir string, ttl time.Duration, check CheckFunc) (*DownloadCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	c := &DownloadCache{
		dir:     dir,
		ttl:     ttl,
		check:   check,
		entries: make(map[string]Entry),
	}

	c.load()
	return c, nil
}

// load reads the index from disk. A missing or unreadable index is an
// empty cache, never an error.
func (c *DownloadCache) load() {
	data, err := os.ReadFile(filepath.Join(c.dir, indexFile))
	if err != nil {
		return
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		return
	}

	// Prune entries that went stale while we were not running. Aged-out
	// files are still ours to reclaim; missing ones already are gone.
	for url, e := range entries {
		if _, err := os.Stat(e.Path); err != nil {
			delete(entries, url)
			continue
		}
		if time.Since(e.DownloadedAt) >= c.ttl {
			os.Remove(e.Path)
			delete(entries, url)
		}
	}

	c.entries = entries
}

// Lookup returns the cached file for url if it still exists, is young
// enough and passes validation. Any failed check evicts the entry.
func (c *DownloadCache) Lookup(ctx context.Context, url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return "", false
	}

	if _, err := os.Stat(e.Path); err != nil {
		c.evict(url)
		return "", false
	}

	if time.Since(e.DownloadedAt) >= c.ttl {
		os.Remove(e.Path)
		c.evict(url)
		return "", false
	}

	if c.check != nil {
		if err := c.check(ctx, e.Path); err != nil {
			// A file that fails validation will fail it on every later
			// hit too. Delete it so the re-download gets a clean name.
			os.Remove(e.Path)
			c.evict(url)
			return "", false
		}
	}

	return e.Path, true
}

// Store upserts an entry and flushes the index before returning.
func (c *DownloadCache) Store(url, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = Entry{Path: path, DownloadedAt: time.Now()}
	return c.flush()
}

// SweepExpired drops every entry whose file is gone or whose age passed
// the expiry window. Aged-out files are deleted from disk; missing ones
// have nothing left to delete.
func (c *DownloadCache) SweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for url, e := range c.entries {
		if _, err := os.Stat(e.Path); err != nil {
			delete(c.entries, url)
			changed = true
			continue
		}
		if time.Since(e.DownloadedAt) >= c.ttl {
			os.Remove(e.Path)
			delete(c.entries, url)
			changed = true
		}
	}

	if changed {
		_ = c.flush()
	}
}

// PurgeAll deletes every cached file and clears the index.
func (c *DownloadCache) PurgeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for url, e := range c.entries {
		os.Remove(e.Path)
		delete(c.entries, url)
	}

	return c.flush()
}

// Len reports how many entries the index currently holds.
func (c *DownloadCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a copy of the index.
func (c *DownloadCache) Entries() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Entry, len(c.entries))
	for url, e := range c.entries {
		out[url] = e
	}
	return out
}

// evict removes one entry and persists. Caller holds the lock.
func (c *DownloadCache) evict(url string) {
	delete(c.entries, url)
	_ = c.flush()
}

// flush rewrites the whole index. Caller holds the lock.
func (c *DownloadCache) flush() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(c.dir, indexFile)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
