package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/collabtext/collabtext/pkg/logger"
	"github.com/collabtext/collabtext/pkg/metrics"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by every instance
// pointing at the same Redis. Each window admits rps*window+burst requests per
// key. When Redis fails the request is let through and the error logged.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	limit := int64(rps*float64(secs)) + int64(burst)
	ttl := time.Duration(secs+1) * time.Second

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "rl:" + rateKey(c) + ":" + strconv.FormatInt(time.Now().Unix()/secs, 10)

		pipe := client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warnf("rate limit %s: %v", key, err)
			c.Next()
			return
		}

		if incr.Val() > limit {
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
