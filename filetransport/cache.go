/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package filetransport

import (
	"container/list"
	"time"
)

func newCache(maxBytes int64, maxEntries int, ttl time.Duration) *cache {
	return &cache{
		entries:    make(map[string]*cacheEntry),
		lru:        list.New(),
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// maxFileSize is the largest file the cache will hold in memory.
// Bigger files bypass the cache and stream from disk.
func (c *cache) maxFileSize() int64 {
	if c == nil {
		return 0
	}
	return c.maxBytes / 8
}

// get returns the entry for path and whether it is still fresh at now.
// A hit moves the entry to the front of the LRU.
func (c *cache) get(path string, now time.Time) (*cacheEntry, bool, bool) {
	if c == nil {
		return nil, false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return nil, false, false
	}
	c.lru.MoveToFront(e.elem)
	fresh := c.ttl <= 0 || now.Sub(e.loadedAt) < c.ttl
	return e, true, fresh
}

// refresh re-stamps a revalidated entry without reloading its bytes.
func (c *cache) refresh(e *cacheEntry, now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	e.loadedAt = now
	c.mu.Unlock()
}

// put inserts or replaces the entry for e.path, then evicts from the
// LRU tail until both the entry-count and byte-sum caps hold.
func (c *cache) put(e *cacheEntry) {
	if c == nil || c.maxBytes <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[e.path]; ok {
		c.totalBytes -= int64(len(old.content))
		c.lru.Remove(old.elem)
		delete(c.entries, e.path)
	}

	e.elem = c.lru.PushFront(e)
	c.entries[e.path] = e
	c.totalBytes += int64(len(e.content))

	for c.lru.Len() > 0 &&
		((c.maxEntries > 0 && c.lru.Len() > c.maxEntries) || c.totalBytes > c.maxBytes) {
		tail := c.lru.Back()
		if tail == nil {
			break
		}
		victim := tail.Value.(*cacheEntry)
		c.lru.Remove(tail)
		delete(c.entries, victim.path)
		c.totalBytes -= int64(len(victim.content))
		if victim == e {
			break
		}
	}
}

// remove drops the entry for path, if cached.
func (c *cache) remove(path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		c.lru.Remove(e.elem)
		delete(c.entries, path)
		c.totalBytes -= int64(len(e.content))
	}
}

// stats returns the live entry count and byte sum.
func (c *cache) stats() (entries int, bytes int64) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len(), c.totalBytes
}
