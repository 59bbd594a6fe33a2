package mw

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientRateLimiter stores a rate limiter for each client key.
type ClientRateLimiter struct {
	clients map[string]*rate.Limiter
	mu      *sync.RWMutex
	r       rate.Limit
	b       int
}

// NewClientRateLimiter creates a new ClientRateLimiter.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients: make(map[string]*rate.Limiter),
		mu:      &sync.RWMutex{},
		r:       r,
		b:       b,
	}
}

// GetLimiter returns the rate limiter for a client, creating it on first use.
func (l *ClientRateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.clients[key]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists = l.clients[key]; !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.clients[key] = limiter
	}
	return limiter
}

// RateLimiter is a middleware for per-client rate limiting. When ipHeader is
// set (for example X-Real-IP behind a proxy) its first value identifies the
// client; otherwise gin's ClientIP is used.
func RateLimiter(r rate.Limit, b int, ipHeader string) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(clientKey(c, ipHeader)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientKey(c *gin.Context, ipHeader string) string {
	if ipHeader != "" {
		if v := strings.TrimSpace(strings.Split(c.GetHeader(ipHeader), ",")[0]); v != "" {
			return v
		}
	}
	return c.ClientIP()
}
