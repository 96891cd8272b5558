// Package middleware holds gin middleware shared by the web server.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sheetplot/sheetplot/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures a fixed-window rate limiter.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// KeyFunc identifies the caller. Defaults to the client IP.
	KeyFunc func(c *gin.Context) string
	// Methods limits counting to these methods. Empty counts every method.
	Methods []string
}

func (cfg RateLimitConfig) counts(method string) bool {
	if len(cfg.Methods) == 0 {
		return true
	}
	for _, m := range cfg.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// RateLimitMiddleware counts requests per caller and path in Redis and
// answers 429 once the window is used up. Redis errors let the request
// through.
func RateLimitMiddleware(client *redis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return func(c *gin.Context) {
		if cfg.Requests <= 0 || !cfg.counts(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", cfg.KeyFunc(c), c.FullPath())

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warning("rate limit increment failed:", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, cfg.Window).Err(); err != nil {
				logger.Warning("rate limit expire failed:", err)
			}
		}

		remaining := cfg.Requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > cfg.Requests {
			logger.Warningf("rate limit exceeded for %s on %s (count: %d)", cfg.KeyFunc(c), c.FullPath(), count)
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			c.String(http.StatusTooManyRequests, "Too many requests. Please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}
