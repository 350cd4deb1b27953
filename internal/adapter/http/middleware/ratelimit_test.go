package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coin-bank/internal/adapter/http/middleware"
	redisStore "coin-bank/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func setupRateLimitRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisStore.NewRateLimitStore(client)

	r := gin.New()
	rule := middleware.RateLimitRule{Limit: 3, Window: time.Hour}
	r.GET("/test", func(c *gin.Context) {
		if p := c.GetHeader("X-Test-Principal"); p != "" {
			c.Set(middleware.CtxPrincipal, p)
		}
		c.Next()
	}, middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r, mr
}

func get(r *gin.Engine, principal string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if principal != "" {
		req.Header.Set("X-Test-Principal", principal)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	router, _ := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		w := get(router, "alice")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	router, _ := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		get(router, "alice")
	}
	w := get(router, "alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_PrincipalsAreIndependent(t *testing.T) {
	router, _ := setupRateLimitRouter(t)

	for i := 0; i < 3; i++ {
		get(router, "alice")
	}
	assert.Equal(t, http.StatusOK, get(router, "bob").Code)
	assert.Equal(t, http.StatusOK, get(router, "").Code, "anonymous callers are keyed by IP")
}

func TestRateLimiter_RedisDownAllows(t *testing.T) {
	router, mr := setupRateLimitRouter(t)
	mr.Close()

	w := get(router, "alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	for _, group := range []string{"notifications", "accounts", "withdraw", "admin"} {
		rule, ok := rules[group]
		assert.True(t, ok, group)
		assert.Positive(t, rule.Limit)
		assert.Positive(t, rule.Window)
	}
}
