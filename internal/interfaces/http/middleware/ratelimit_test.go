package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/interfaces/http/dto"
)

// frozenClock pins the limiter clock so token refill is deterministic
type frozenClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *frozenClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *frozenClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestLimiter(perSecond float64, burst int) (*RateLimiter, *frozenClock) {
	clock := &frozenClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perSecond, burst, time.Minute)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst then rejects", func(t *testing.T) {
		rl, _ := newTestLimiter(1, 3)

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("10.0.0.1"), "request %d should pass", i+1)
		}
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.Equal(t, 0, rl.Remaining("10.0.0.1"))
	})

	t.Run("refills over time", func(t *testing.T) {
		rl, clock := newTestLimiter(2, 1)

		assert.True(t, rl.Allow("k"))
		assert.False(t, rl.Allow("k"))

		clock.Advance(500 * time.Millisecond)
		assert.True(t, rl.Allow("k"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl, _ := newTestLimiter(1, 1)

		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"))
	})

	t.Run("unknown key has full burst remaining", func(t *testing.T) {
		rl, _ := newTestLimiter(5, 10)
		assert.Equal(t, 10, rl.Remaining("never-seen"))
	})

	t.Run("default burst follows rate", func(t *testing.T) {
		rl := NewRateLimiter(2.5, 0, 0)
		assert.Equal(t, 3, rl.burst)
		assert.Equal(t, 10*time.Minute, rl.idleTTL)
	})

	t.Run("cleanup evicts idle buckets", func(t *testing.T) {
		rl, clock := newTestLimiter(1, 1)

		rl.Allow("old")
		clock.Advance(2 * time.Minute)
		rl.Allow("fresh")

		assert.Equal(t, 1, rl.Cleanup())
		assert.Equal(t, 1, rl.Remaining("old"))
		assert.Equal(t, 0, rl.Remaining("fresh"))
	})

	t.Run("retry after rounds up", func(t *testing.T) {
		slow, _ := newTestLimiter(0.2, 1)
		fast, _ := newTestLimiter(50, 1)
		assert.Equal(t, 5, slow.RetryAfter("k"))
		assert.Equal(t, 1, fast.RetryAfter("k"))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := newTestLimiter(1, 2)
	router := gin.New()
	router.Use(RequestID())
	router.Use(RateLimit(rl))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := send("192.168.1.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send("192.168.1.1").Code)

	w = send("192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)

	assert.Equal(t, http.StatusOK, send("192.168.1.2").Code)
}

func TestRateLimitByKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := newTestLimiter(1, 1)
	router := gin.New()
	router.Use(CallerContext())
	router.Use(RateLimitByKey(rl, func(c *gin.Context) string {
		return GetOwnerID(c) + ":" + c.ClientIP()
	}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	send := func(owner string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderOwnerID, owner)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	ownerA := "6f1c2d8e-2b7a-4a55-8f0e-1d6c9a3b4e21"
	ownerB := "0c9a7e3d-45b1-4e8f-a2d6-7b3c1e9f5a10"
	assert.Equal(t, http.StatusOK, send(ownerA))
	assert.Equal(t, http.StatusTooManyRequests, send(ownerA))
	assert.Equal(t, http.StatusOK, send(ownerB))
}

func TestRateLimitByKey_NilLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimit(nil))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
