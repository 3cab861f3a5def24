// Package oracle is the client for the external quota/permission service.
// The oracle is authoritative for whether an activity is allowed and how
// much time remains today; this package only queries and caches.
package oracle

import (
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/models"
)

// cacheEntry holds a cached verdict with its fetch timestamp.
type cacheEntry struct {
	verdict   models.OracleVerdict
	fetchedAt time.Time
}

// verdictCache is a thread-safe verdict cache keyed by (child, activity).
// Entries beyond the TTL are kept: the caller decides what staleness means
// (read paths fail open, enforcement paths defer).
type verdictCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newVerdictCache(ttl time.Duration) *verdictCache {
	return &verdictCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(childID string, activity models.ActivityKind) string {
	return childID + "/" + string(activity)
}

// get returns the cached verdict and whether it is still within the TTL.
// The second return is false both for missing and for expired entries; the
// third distinguishes a present-but-stale entry.
func (c *verdictCache) get(childID string, activity models.ActivityKind) (models.OracleVerdict, bool, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(childID, activity)]
	c.mu.RUnlock()

	if !ok {
		return models.OracleVerdict{}, false, false
	}
	if c.now().Sub(entry.fetchedAt) > c.ttl {
		return entry.verdict, false, true
	}
	return entry.verdict, true, true
}

func (c *verdictCache) set(v models.OracleVerdict) {
	c.mu.Lock()
	c.entries[cacheKey(v.ChildID, v.Activity)] = &cacheEntry{
		verdict:   v,
		fetchedAt: c.now(),
	}
	c.mu.Unlock()
}

// invalidate drops all cached verdicts for a child. Called on stateChange.
func (c *verdictCache) invalidate(childID string) {
	c.mu.Lock()
	delete(c.entries, cacheKey(childID, models.ActivityComputer))
	delete(c.entries, cacheKey(childID, models.ActivityInternet))
	c.mu.Unlock()
}
