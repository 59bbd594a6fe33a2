package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache keeps successful GET responses in memory, keyed by request URI.
type ResponseCache struct {
	store    *cache.Cache
	duration time.Duration
}

// NewResponseCache creates a cache whose entries live for duration.
func NewResponseCache(duration time.Duration) *ResponseCache {
	return &ResponseCache{
		store:    cache.New(duration, 2*duration),
		duration: duration,
	}
}

// Middleware serves cached GET responses and records new 2xx ones.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if resp, found := rc.store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses
		if blw.Status() >= 200 && blw.Status() < 300 {
			response := cachedResponse{
				status: blw.Status(),
				// Make a copy of the header map.
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}
			rc.store.Set(key, response, rc.duration)
		}
	}
}

// Forget drops every cached response whose URI starts with prefix.
func (rc *ResponseCache) Forget(prefix string) {
	for key := range rc.store.Items() {
		if strings.HasPrefix(key, prefix) {
			rc.store.Delete(key)
		}
	}
}
