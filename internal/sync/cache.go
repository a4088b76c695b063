// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pdiddy/granary/internal/storage"
)

// CacheEntry records the last successfully written state of one document.
type CacheEntry struct {
	Filename  string    `json:"filename"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cache maps document IDs to their last-synced filename and remote
// timestamp. It is persisted after every successful record write, so a
// crash mid-pass loses at most the in-flight document's entry.
type Cache struct {
	path    string
	entries map[string]CacheEntry
}

// LoadCache reads the cache file at path. Any read or parse failure
// degrades to an empty cache: a corrupt cache costs one full re-sync,
// never a failed pass.
func LoadCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var entries map[string]CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		return c
	}
	c.entries = entries
	return c
}

// Len returns the number of cached documents.
func (c *Cache) Len() int { return len(c.entries) }

// Filename returns the output name recorded for id, if any.
func (c *Cache) Filename(id string) (string, bool) {
	e, ok := c.entries[id]
	return e.Filename, ok
}

// NeedsRefresh reports whether id's content must be re-fetched: true when
// the document was never synced or when remoteUpdatedAt is strictly newer
// than the cached timestamp. The timestamp passed here and the one later
// given to RecordSuccess must be the same value from the document summary,
// or incremental sync silently breaks.
func (c *Cache) NeedsRefresh(id string, remoteUpdatedAt time.Time) bool {
	e, ok := c.entries[id]
	if !ok {
		return true
	}
	return remoteUpdatedAt.After(e.UpdatedAt)
}

// RecordSuccess overwrites id's entry and persists the whole cache
// atomically. Callers invoke it only after the document's output files are
// durably on disk; the entry must never get ahead of the files it
// describes.
func (c *Cache) RecordSuccess(id, filename string, remoteUpdatedAt time.Time) error {
	c.entries[id] = CacheEntry{Filename: filename, UpdatedAt: remoteUpdatedAt}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync cache: %w", err)
	}
	if err := storage.WriteAtomic(c.path, data); err != nil {
		return fmt.Errorf("persisting sync cache: %w", err)
	}
	return nil
}
