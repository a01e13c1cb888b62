package ginserver

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"
)

// RateLimiter is implemented by the Redis sliding window and its in-memory counterpart.
type RateLimiter interface {
	Allow(ctx context.Context, subject string) (bool, time.Duration, error)
}

// RateLimit throttles per authenticated user, falling back to the client IP.
// Limiter errors let the request through.
func RateLimit(l RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		subject := c.GetString(userIDContextKey)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		allowed, retryAfter, err := l.Allow(c.Request.Context(), subject)
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable", "error", err)
			}
			c.Next()
			return
		}
		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
