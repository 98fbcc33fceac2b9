package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// memoryCounter mimics the Redis counters without expiry.
type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	keys   map[string]time.Duration
	err    error
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{counts: map[string]int64{}, keys: map[string]time.Duration{}}
}

func (m *memoryCounter) IncrWithExpire(_ context.Context, namespace, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[namespace+":"+key]++
	return m.counts[namespace+":"+key], nil
}

func (m *memoryCounter) Exists(_ context.Context, namespace, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.keys[namespace+":"+key]
	return ok, nil
}

func (m *memoryCounter) TTL(_ context.Context, namespace, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[namespace+":"+key], nil
}

func (m *memoryCounter) Set(_ context.Context, namespace, key string, _ any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[namespace+":"+key] = ttl
	return nil
}

func newLimitedRouter(counter RateCounter, limited *int) *gin.Engine {
	r := gin.New()
	opts := RateLimitOptions{
		Namespace:     "login",
		Limit:         2,
		Window:        time.Minute,
		BlockDuration: 5 * time.Minute,
		OnLimited:     func() { *limited++ },
	}
	r.POST("/login", RateLimitMiddleware(counter, opts, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func postLogin(r http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddlewareBlocksAfterLimit(t *testing.T) {
	t.Parallel()

	var limited int
	r := newLimitedRouter(newMemoryCounter(), &limited)

	for i := range 2 {
		rec := postLogin(r, "10.0.0.1:1234")
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: code = %d, want 200", i+1, rec.Code)
		}
	}
	if got := postLogin(r, "10.0.0.1:1234").Header().Get("X-RateLimit-Remaining"); got != "" {
		t.Fatalf("rejected response carries X-RateLimit-Remaining %q", got)
	}

	rec := postLogin(r, "10.0.0.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("blocked client: code = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "300" {
		t.Fatalf("Retry-After = %q, want 300", got)
	}
	if limited != 2 {
		t.Fatalf("OnLimited calls = %d, want 2", limited)
	}

	if rec := postLogin(r, "10.0.0.2:1234"); rec.Code != http.StatusOK {
		t.Fatalf("other client: code = %d, want 200", rec.Code)
	}
}

func TestRateLimitMiddlewareRemainingHeader(t *testing.T) {
	t.Parallel()

	var limited int
	r := newLimitedRouter(newMemoryCounter(), &limited)

	rec := postLogin(r, "10.0.0.3:1234")
	if rec.Header().Get("X-RateLimit-Limit") != "2" || rec.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("headers = %v", rec.Header())
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	t.Parallel()

	counter := newMemoryCounter()
	counter.err = errors.New("dial tcp: connection refused")
	var limited int
	r := newLimitedRouter(counter, &limited)

	for range 5 {
		if rec := postLogin(r, "10.0.0.4:1234"); rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200 while Redis is down", rec.Code)
		}
	}
	if limited != 0 {
		t.Fatalf("OnLimited calls = %d, want 0", limited)
	}
}
