package cache

import (
	"context"
	"errors"
	"time"

	"github.com/clinical-assessment-engine/internal/domain"
)

// Tiered reads from each tier in order and back-fills the faster tiers on a hit.
// Writes go to every tier.
type Tiered struct {
	tiers []domain.ResultCache
}

var _ domain.ResultCache = (*Tiered)(nil)

// NewTiered combines caches, fastest first. Nil tiers are skipped.
func NewTiered(tiers ...domain.ResultCache) *Tiered {
	t := &Tiered{}
	for _, tier := range tiers {
		if tier != nil {
			t.tiers = append(t.tiers, tier)
		}
	}
	return t
}

// Get returns the first hit.
func (t *Tiered) Get(ctx context.Context, key string) (*domain.EvaluationResult, bool) {
	for i, tier := range t.tiers {
		if result, ok := tier.Get(ctx, key); ok {
			for j := 0; j < i; j++ {
				t.tiers[j].Set(ctx, key, result, 0)
			}
			return result, true
		}
	}
	return nil, false
}

// Set writes to every tier.
func (t *Tiered) Set(ctx context.Context, key string, result *domain.EvaluationResult, ttl time.Duration) {
	for _, tier := range t.tiers {
		tier.Set(ctx, key, result, ttl)
	}
}

// Clear clears every tier and joins their errors.
func (t *Tiered) Clear(ctx context.Context) error {
	var errs []error
	for _, tier := range t.tiers {
		if err := tier.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
