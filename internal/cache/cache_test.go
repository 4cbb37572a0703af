package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-assessment-engine/internal/domain"
)

func sampleResult(label string) *domain.EvaluationResult {
	return &domain.EvaluationResult{
		AssessmentID:   "braden",
		Name:           "Braden Scale",
		Version:        "1.0",
		Status:         domain.RESULT_COMPLETE,
		Classification: domain.Classification{Label: label, Stage: "braden"},
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Set(ctx, "a", sampleResult("High risk"), 0)
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "High risk", got.Classification.Label)

	c.Set(ctx, "b", sampleResult("Mild risk"), 0)
	c.Set(ctx, "c", sampleResult("No risk"), 0)
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry should be evicted")

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)

	total := 12.0
	result := sampleResult("Mild risk")
	result.Stages = []domain.StageResult{{
		ID:     "braden",
		Scores: []domain.SubScore{{Name: "total", Value: &total}},
		Band:   &domain.BandResult{Table: "risk", Label: "Mild risk"},
	}}
	result.Classification.Band = result.Stages[0].Band
	c.Set(ctx, "a", result, 0)
	result.Classification.Label = "changed after Set"

	first, ok := c.Get(ctx, "a")
	require.True(t, ok)
	*first.Stages[0].Scores[0].Value = 99
	first.Stages[0].Band.Label = "changed"
	first.Classification.Band.Index = 7

	second, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "Mild risk", second.Classification.Label)
	assert.Equal(t, 12.0, *second.Stages[0].Scores[0].Value)
	assert.Equal(t, "Mild risk", second.Stages[0].Band.Label)
	assert.Equal(t, 0, second.Classification.Band.Index)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 20*time.Millisecond)
	c.Set(ctx, "a", sampleResult("High risk"), 0)
	time.Sleep(60 * time.Millisecond)
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestTieredBackfillsFasterTier(t *testing.T) {
	ctx := context.Background()
	fast := NewMemoryCache(10, time.Minute)
	slow := NewMemoryCache(10, time.Minute)
	tiered := NewTiered(fast, nil, slow)

	slow.Set(ctx, "k", sampleResult("Moderate risk"), 0)
	got, ok := tiered.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "Moderate risk", got.Classification.Label)

	_, ok = fast.Get(ctx, "k")
	assert.True(t, ok, "hit in the slow tier should populate the fast tier")

	tiered.Set(ctx, "n", sampleResult("No risk"), 0)
	_, ok = slow.Get(ctx, "n")
	assert.True(t, ok)

	require.NoError(t, tiered.Clear(ctx))
	assert.Equal(t, 0, fast.Len())
	assert.Equal(t, 0, slow.Len())
}

func TestRedisCacheDegradesWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	c := NewRedisCacheFromClient(client, domain.CacheConfig{BreakerFailures: 2, BreakerTimeout: time.Minute}, logger)

	ctx := context.Background()
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	c.Set(ctx, "k", sampleResult("High risk"), time.Minute)
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, c.Clear(ctx))
}

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	_, err := NewRedisCache(domain.CacheConfig{RedisURL: "not-a-url://"}, nil)
	assert.Error(t, err)
}
