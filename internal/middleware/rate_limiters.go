package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterInfo is a struct that holds a rate limiter and the last time it was seen.
type limiterInfo struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func (l *limiterInfo) touch(now time.Time) {
	l.mu.Lock()
	l.lastSeen = now
	l.mu.Unlock()
}

func (l *limiterInfo) idleSince(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return now.Sub(l.lastSeen)
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	limiters sync.Map
	rps      rate.Limit
	burst    int
}

// NewIPRateLimiter creates a limiter allowing rps requests per second per IP.
// The burst is rps rounded up, and at least 1.
func NewIPRateLimiter(rps float64) *IPRateLimiter {
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{rps: rate.Limit(rps), burst: burst}
}

// Allow reports whether a request from ip may proceed.
func (l *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()
	actual, _ := l.limiters.LoadOrStore(ip, &limiterInfo{
		limiter:  rate.NewLimiter(l.rps, l.burst),
		lastSeen: now,
	})
	info := actual.(*limiterInfo)
	info.touch(now)
	return info.limiter.Allow()
}

// Cleanup drops limiters idle for longer than expiration and returns how many
// were removed.
func (l *IPRateLimiter) Cleanup(expiration time.Duration) int {
	now := time.Now()
	removed := 0
	l.limiters.Range(func(key, value interface{}) bool {
		if value.(*limiterInfo).idleSince(now) > expiration {
			l.limiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// RunCleanup calls Cleanup every interval until stop is closed.
func (l *IPRateLimiter) RunCleanup(interval, expiration time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Cleanup(expiration)
		}
	}
}

// Middleware applies the limiter to requests by client IP.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			// Too many requests
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitByIP applies rate limiting to requests per IP address and prunes
// idle limiters in the background until stop is closed.
func RateLimitByIP(rps float64, cleanupInterval, expiration time.Duration, stop <-chan struct{}) gin.HandlerFunc {
	l := NewIPRateLimiter(rps)
	go l.RunCleanup(cleanupInterval, expiration, stop)
	return l.Middleware()
}
