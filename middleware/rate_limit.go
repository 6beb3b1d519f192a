package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LimitPolicy is a fixed-window request budget. The server mounts one policy
// globally and a tighter one on the expensive upload/process routes.
type LimitPolicy struct {
	Requests int
	Window   time.Duration
}

// RateLimiter counts requests per caller within the current window. Budgets
// are keyed by tenant once authentication has run, falling back to the client
// IP on public routes, so tenants behind a shared egress IP get separate
// budgets.
type RateLimiter struct {
	mu          sync.Mutex
	counts      map[string]int
	windowStart time.Time
	policy      LimitPolicy
}

func NewRateLimiter(policy LimitPolicy) *RateLimiter {
	return &RateLimiter{
		counts:      make(map[string]int),
		windowStart: time.Now(),
		policy:      policy,
	}
}

// Allow records one request for key and reports whether it fits the budget.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.windowStart) > l.policy.Window {
		l.counts = make(map[string]int)
		l.windowStart = time.Now()
	}

	if l.counts[key] >= l.policy.Requests {
		return false
	}
	l.counts[key]++
	return true
}

// RateLimit enforces policy on the routes it is mounted on. Each mount owns
// its own limiter, so a stricter per-route policy does not consume the global
// budget's counters.
func RateLimit(policy LimitPolicy) gin.HandlerFunc {
	limiter := NewRateLimiter(policy)

	return func(c *gin.Context) {
		key := GetTenant(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			slog.Warn("request budget exhausted",
				"key", key,
				"path", c.Request.URL.Path,
				"request_id", GetRequestID(c),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, retry later",
			})
			return
		}

		c.Next()
	}
}
