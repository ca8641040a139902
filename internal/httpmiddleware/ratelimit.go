package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"attendance/internal/auth"
	"attendance/internal/metrics"
)

// TokenBucket is an in-memory rate limiter keyed by caller. Limits are per
// process; replicas each keep their own buckets.
type TokenBucket struct {
	capacity int
	rate     int
	metrics  *metrics.Metrics
	now      func() time.Time

	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
}

// sweepInterval is how often idle buckets are dropped.
const sweepInterval = time.Minute

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at
// perMinute tokens per minute. A non-positive perMinute disables limiting.
func NewTokenBucket(capacity, perMinute int, m *metrics.Metrics) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		metrics:  m,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// Middleware enforces limits per signed-in user, falling back to client IP
// for anonymous requests. It must run after auth.Sessions.Authenticate.
func (l *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.allow(keyFor(c)) {
			l.metrics.RateLimited()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests"})
			return
		}
		c.Next()
	}
}

func keyFor(c *gin.Context) string {
	if p := auth.Current(c); p.Authenticated() {
		return "user:" + p.UserID
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets idle long enough to have refilled completely; a new
// bucket for the same key starts in the same state.
func (l *TokenBucket) sweep(now time.Time) {
	full := time.Duration(float64(l.capacity) / float64(l.rate) * float64(time.Minute))
	for key, b := range l.state {
		if now.Sub(b.last) >= full {
			delete(l.state, key)
		}
	}
	l.lastSweep = now
}
