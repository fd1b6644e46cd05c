package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
)

func newLimiterRouter(t *testing.T, store CounterStore, max int64, window time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	router := gin.New()
	router.Use(NewRateLimiter(log, store, max, window, "test").Limit())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func doPing(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	router := newLimiterRouter(t, nil, 3, time.Minute)
	for i := 0; i < 3; i++ {
		if w := doPing(router); w.Code != http.StatusOK {
			t.Fatalf("request %d: want=%d got=%d", i+1, http.StatusOK, w.Code)
		}
	}
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	router := newLimiterRouter(t, nil, 2, time.Minute)
	doPing(router)
	doPing(router)

	w := doPing(router)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status: want=%d got=%d", http.StatusTooManyRequests, w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	store := counterStoreFunc(func(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
		return 0, 0, fmt.Errorf("backend down")
	})
	router := newLimiterRouter(t, store, 1, time.Minute)
	for i := 0; i < 5; i++ {
		if w := doPing(router); w.Code != http.StatusOK {
			t.Fatalf("request %d: want=%d got=%d", i+1, http.StatusOK, w.Code)
		}
	}
}

type counterStoreFunc func(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)

func (f counterStoreFunc) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return f(ctx, key, window)
}

func TestMemoryCounterStoreWindowReset(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()

	count, ttl, err := store.Incr(ctx, "k", 10*time.Millisecond)
	if err != nil || count != 1 {
		t.Fatalf("first incr: want count=1 got count=%d err=%v", count, err)
	}
	if ttl <= 0 || ttl > 10*time.Millisecond {
		t.Fatalf("ttl out of range: %v", ttl)
	}
	if count, _, _ = store.Incr(ctx, "k", 10*time.Millisecond); count != 2 {
		t.Fatalf("second incr: want count=2 got count=%d", count)
	}

	time.Sleep(15 * time.Millisecond)
	if count, _, _ = store.Incr(ctx, "k", 10*time.Millisecond); count != 1 {
		t.Fatalf("incr after window: want count=1 got count=%d", count)
	}
}

func TestMemoryCounterStoreIsolatesKeys(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()
	store.Incr(ctx, "a", time.Minute)
	store.Incr(ctx, "a", time.Minute)
	if count, _, _ := store.Incr(ctx, "b", time.Minute); count != 1 {
		t.Fatalf("key b: want count=1 got count=%d", count)
	}
}
