package sync

import "sync"

// cvrCache maps opaque cvrIDs to immutable CVR snapshots. Entries are
// written once per successful pull and read once by the following pull.
// Retention is bounded: beyond capacity the oldest entry is evicted, and a
// cookie whose entry was evicted degrades to a full resync on the next pull.
type cvrCache struct {
	mu       sync.Mutex
	entries  map[string]CVR
	order    []string
	capacity int
}

func newCVRCache(capacity int) *cvrCache {
	return &cvrCache{
		entries:  make(map[string]CVR),
		capacity: capacity,
	}
}

func (c *cvrCache) put(cvrID string, cvr CVR) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[cvrID]; !ok {
		c.order = append(c.order, cvrID)
	}
	c.entries[cvrID] = cvr

	for c.capacity > 0 && len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *cvrCache) get(cvrID string) (CVR, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cvr, ok := c.entries[cvrID]
	return cvr, ok
}

func (c *cvrCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
