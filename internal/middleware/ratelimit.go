package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/clinical-assessment-engine/internal/domain"
)

// RateLimiter hands out one token bucket per client IP. Buckets of the least recently
// seen clients are evicted once MaxClients is reached.
type RateLimiter struct {
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter from the rate limit configuration.
func NewRateLimiter(cfg domain.RateLimitConfig) (*RateLimiter, error) {
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = 10000
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	clients, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		clients: clients,
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
	}, nil
}

// Allow reports whether the client may make a request now.
func (l *RateLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	limiter, ok := l.clients.Get(clientIP)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.clients.Add(clientIP, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the client's budget with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewAPIError(
				domain.CodeRateLimit,
				"Too many requests",
				nil,
				c.GetString(CorrelationIDKey),
			))
			return
		}
		c.Next()
	}
}
