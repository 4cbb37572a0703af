// Package cache memoizes evaluation results. Evaluations are deterministic, so a result
// keyed by (assessment id, version, answers) never goes stale while its definition is
// unchanged; TTLs only bound memory.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/clinical-assessment-engine/internal/domain"
)

const (
	defaultMaxItems = 1000
	defaultTTL      = 10 * time.Minute
)

// MemoryCache is an in-process expiring LRU of evaluation results.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.EvaluationResult]
}

var _ domain.ResultCache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache holding at most maxItems results for ttl each.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, *domain.EvaluationResult](maxItems, nil, ttl)}
}

// Get returns a copy of a cached result, owned by the caller.
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.EvaluationResult, bool) {
	result, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return result.Clone(), true
}

// Set stores a copy of a result. The per-entry ttl is ignored; the LRU applies its own.
func (c *MemoryCache) Set(ctx context.Context, key string, result *domain.EvaluationResult, ttl time.Duration) {
	c.lru.Add(key, result.Clone())
}

// Clear drops every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
