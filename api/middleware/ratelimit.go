package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mailcat/mailcat/dto"
)

// staleLimiterAge is how long an idle per-IP limiter survives before the
// cleanup pass drops it.
const staleLimiterAge = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client-IP token bucket. Mailbox creation is
// the endpoint worth protecting; everything else is already gated by a
// bearer token.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

// NewRateLimiter builds a limiter allowing perMinute requests per minute
// with the given burst per client IP.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients:   map[string]*clientLimiter{},
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (r *RateLimiter) allow(clientIP string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastSweep) > staleLimiterAge {
		for ip, client := range r.clients {
			if now.Sub(client.lastSeen) > staleLimiterAge {
				delete(r.clients, ip)
			}
		}
		r.lastSweep = now
	}

	client, ok := r.clients[clientIP]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[clientIP] = client
	}
	client.lastSeen = now

	return client.limiter.Allow()
}

// Middleware returns the gin handler enforcing the limit.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, dto.Fail("Rate limit exceeded, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
