package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agenticcms/agenticcms-backend/internal/logger"
)

// CounterStore increments a fixed-window counter and reports the count and
// remaining window. The redis client provides the shared implementation;
// tests and single-node deployments use the in-memory one.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RateLimiter struct {
	log    *logger.Logger
	store  CounterStore
	max    int64
	window time.Duration
	prefix string
}

func NewRateLimiter(baseLog *logger.Logger, store CounterStore, max int64, window time.Duration, prefix string) *RateLimiter {
	if store == nil {
		store = NewMemoryCounterStore()
	}
	return &RateLimiter{
		log:    baseLog.With("middleware", "RateLimiter", "prefix", prefix),
		store:  store,
		max:    max,
		window: window,
		prefix: prefix,
	}
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", rl.prefix, c.ClientIP())
		count, ttl, err := rl.store.Incr(c.Request.Context(), key, rl.window)
		if err != nil {
			// Counter backend down; let traffic through rather than 500.
			rl.log.Warn("rate limit counter unavailable", "error", err)
			c.Next()
			return
		}
		if count > rl.max {
			retryAfter := int(ttl.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

type memoryCounterEntry struct {
	count   int64
	resetAt time.Time
}

type memoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memoryCounterEntry
}

func NewMemoryCounterStore() CounterStore {
	return &memoryCounterStore{entries: make(map[string]*memoryCounterEntry)}
}

func (s *memoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &memoryCounterEntry{resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt.Sub(now), nil
}
