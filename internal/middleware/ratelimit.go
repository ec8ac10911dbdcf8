package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/orghub/security-log/internal/ratelimit"
	"github.com/orghub/security-log/internal/storage"
)

// Limits read-API calls per caller (falls back to client ip for requests that
// carry no identity). A nil redis client disables limiting rather than
// blocking the API.
func RateLimit(redis *storage.RedisClient, limit int, window time.Duration, log *logrus.Logger) gin.HandlerFunc {
	var limiter *ratelimit.SlidingWindow
	if redis != nil {
		limiter = ratelimit.NewSlidingWindow(redis, limit, window)
	}

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := c.GetString("user_id")
		if key == "" {
			key = c.ClientIP()
		}

		ctx := c.Request.Context()
		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			// Redis trouble must not take the read API down
			log.WithError(err).Warn("rate limit check failed")
			c.Next()
			return
		}

		remaining, _ := limiter.Remaining(ctx, key)
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
				"limit": limiter.Limit(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
