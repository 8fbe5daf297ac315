package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"golang.org/x/time/rate"
)

const idleLimiterTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per authenticated caller. Buckets idle
// for longer than idleLimiterTTL are dropped.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[uuid.UUID]*visitor
	limit     rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors:  make(map[uuid.UUID]*visitor),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

func (l *RateLimiter) Allow(userID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > idleLimiterTTL {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > idleLimiterTTL {
				delete(l.visitors, id)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware must run after Auth. Requests without a caller pass through.
func (l *RateLimiter) Middleware() drift.HandlerFunc {
	retryAfter := strconv.Itoa(int(max(1, 1/float64(l.limit))))
	return func(c *drift.Context) {
		userID := GetUserID(c)
		if userID != uuid.Nil && !l.Allow(userID) {
			c.Response.Header().Set("Retry-After", retryAfter)
			_ = c.JSON(http.StatusTooManyRequests, map[string]string{
				"code":    "rate_limited",
				"message": "too many requests, slow down polling",
			})
			return
		}
		c.Next()
	}
}
