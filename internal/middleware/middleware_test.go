package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-assessment-engine/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(handlers...)
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CorrelationIDKey))
	})
	return router
}

func TestSecurityHeadersAndCorrelationID(t *testing.T) {
	router := newRouter(SecurityHeaders(), CorrelationID())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	generated := w.Header().Get("X-Correlation-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", "ward-7")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "ward-7", w.Header().Get("X-Correlation-ID"))
}

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	router := gin.New()
	router.Use(RequestTimeout(time.Minute))
	router.GET("/deadline", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}

func TestAuditLoggerDoesNotBreakRequests(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	router := newRouter(CorrelationID(), AuditLogger(logger))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterPerClient(t *testing.T) {
	limiter, err := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2, MaxClients: 10})
	require.NoError(t, err)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "clients have separate buckets")
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter, err := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)
	router := newRouter(CorrelationID(), limiter.Middleware())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), domain.CodeRateLimit)
}
