package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-client rate limiting
// ──────────────────────────────────────────────────────────────────────────────

// The router runs two tiers of this limiter: a wide one in front of the
// public book and chain queries, and a tighter one in front of bet
// submission. Both key by client IP — a bet request is rate-limited before
// its token is even parsed.

// clientBucket tracks one client's remaining allowance.
type clientBucket struct {
	mu       sync.Mutex
	tokens   float64
	refillAt time.Time
}

// take tops the bucket up for the time elapsed since the last request,
// capped at burst, then reports whether a token was available and spent.
func (b *clientBucket) take(now time.Time, rps, burst float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.refillAt).Seconds() * rps
	if b.tokens > burst {
		b.tokens = burst
	}
	b.refillAt = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

type rateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*clientBucket
	rps     float64
	burst   float64
}

func (rl *rateLimiter) bucketFor(ip string) *clientBucket {
	rl.mu.RLock()
	b, ok := rl.clients[ip]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.clients[ip]; !ok {
		b = &clientBucket{tokens: rl.burst, refillAt: time.Now()}
		rl.clients[ip] = b
	}
	return b
}

// evictIdle drops clients that have not sent a request for the given
// duration, keeping the map bounded across long uptimes.
func (rl *rateLimiter) evictIdle(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.clients {
		b.mu.Lock()
		if b.refillAt.Before(cutoff) {
			delete(rl.clients, ip)
		}
		b.mu.Unlock()
	}
}

// RateLimitMiddleware enforces a per-IP token bucket of rps requests per
// second. The burst capacity is max(10, rps) so a page load issuing several
// queries at once is not clipped. Rejected requests get the same error
// envelope the handlers use.
func RateLimitMiddleware(rps int) gin.HandlerFunc {
	rl := &rateLimiter{
		clients: make(map[string]*clientBucket),
		rps:     float64(rps),
		burst:   max(10, float64(rps)),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.evictIdle(10 * time.Minute)
		}
	}()

	return func(c *gin.Context) {
		if !rl.bucketFor(c.ClientIP()).take(time.Now(), rl.rps, rl.burst) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded, slow down",
				"code":    "ERR_RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
