package store

import (
	"context"
	"sync"
)

// MemoryScoreCache is a bounded in-process LRU of score records, used by the
// CLI and by single-instance deployments without Postgres or Redis caching.
type MemoryScoreCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*ScoreRecord
	order   []string // oldest first
}

// NewMemoryScoreCache creates a cache holding at most maxSize users.
// If maxSize <= 0, it defaults to 10000.
func NewMemoryScoreCache(maxSize int) *MemoryScoreCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryScoreCache{
		maxSize: maxSize,
		entries: make(map[string]*ScoreRecord),
	}
}

func (c *MemoryScoreCache) Get(ctx context.Context, userID string) (*ScoreRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[userID]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Op: "memory get"}
	}
	c.moveToEnd(userID)
	cp := *rec
	cp.Breakdown = rec.Breakdown.Clone()
	return &cp, nil
}

func (c *MemoryScoreCache) Put(ctx context.Context, rec *ScoreRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *rec
	cp.Breakdown = rec.Breakdown.Clone()

	if _, ok := c.entries[rec.UserID]; ok {
		c.entries[rec.UserID] = &cp
		c.moveToEnd(rec.UserID)
		return nil
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[rec.UserID] = &cp
	c.order = append(c.order, rec.UserID)
	return nil
}

// Len returns the number of cached users.
func (c *MemoryScoreCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryScoreCache) moveToEnd(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, id)
			return
		}
	}
}
