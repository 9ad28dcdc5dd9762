package session

import (
	"sync"
	"time"

	"github.com/melvinwevers/card-annotation/internal/blob"
)

// listCache memoizes blob listings per prefix. Listing hundreds of
// records on every status refresh is the dominant cost of the tool, and
// listings only change when a correction is saved, so entries expire on
// a TTL and the whole cache is invalidated after every save.
type listCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]listCacheEntry
}

type listCacheEntry struct {
	infos   []blob.Info
	fetched time.Time
}

func newListCache(ttl time.Duration, now func() time.Time) *listCache {
	return &listCache{ttl: ttl, now: now, entries: make(map[string]listCacheEntry)}
}

func (c *listCache) get(prefix string) ([]blob.Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[prefix]
	if !ok || c.now().Sub(entry.fetched) > c.ttl {
		return nil, false
	}
	return entry.infos, true
}

func (c *listCache) put(prefix string, infos []blob.Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[prefix] = listCacheEntry{infos: infos, fetched: c.now()}
}

// invalidate drops every cached listing.
func (c *listCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]listCacheEntry)
}
