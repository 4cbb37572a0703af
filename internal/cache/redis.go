package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinical-assessment-engine/internal/domain"
)

const keyPrefix = "assessment:result:"

// cachedResult is the stored envelope of a result.
type cachedResult struct {
	Data      *domain.EvaluationResult `json:"data"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// RedisCache shares evaluation results between instances. Every call goes through a
// circuit breaker; while it is open the cache reports misses and drops writes.
type RedisCache struct {
	redis      *redis.Client
	breaker    *gobreaker.CircuitBreaker
	defaultTTL time.Duration
	logger     *logrus.Logger
}

var _ domain.ResultCache = (*RedisCache)(nil)

// NewRedisCache connects to the configured Redis URL and checks the connection.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config, logger), nil
}

// NewRedisCacheFromClient wraps an existing client without checking it.
func NewRedisCacheFromClient(client *redis.Client, config domain.CacheConfig, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	failures := config.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	timeout := config.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-result-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisCache{redis: client, breaker: breaker, defaultTTL: ttl, logger: logger}
}

// Get returns a cached result. Errors, corrupt entries and an open breaker are misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.EvaluationResult, bool) {
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		val, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("Result cache read failed")
		return nil, false
	}
	val, _ := raw.([]byte)
	if val == nil {
		return nil, false
	}

	var cached cachedResult
	if err := json.Unmarshal(val, &cached); err != nil || cached.Data == nil {
		c.redis.Del(ctx, keyPrefix+key)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, keyPrefix+key)
		return nil, false
	}
	return cached.Data, true
}

// Set stores a result for ttl, or the configured default when ttl is zero.
func (c *RedisCache) Set(ctx context.Context, key string, result *domain.EvaluationResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	payload, err := json.Marshal(cachedResult{Data: result, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal cached result")
		return
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, keyPrefix+key, payload, ttl).Err()
	})
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("Result cache write failed")
	}
}

// Clear removes every cached result.
func (c *RedisCache) Clear(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}
		return nil, c.redis.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to clear result cache: %w", err)
	}
	return nil
}

// State returns the breaker state.
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}

// Ping checks if the Redis connection is alive.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
