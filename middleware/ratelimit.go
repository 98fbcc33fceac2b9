package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateCounter is the subset of cache.Cache used for rate limiting.
type RateCounter interface {
	IncrWithExpire(ctx context.Context, namespace, key string, window time.Duration) (int64, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	TTL(ctx context.Context, namespace, key string) (time.Duration, error)
	Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
}

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Namespace     string
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
	// OnLimited, if set, runs whenever a request is rejected.
	OnLimited func()
}

// RateLimitMiddleware allows Limit requests per client IP within Window and
// blocks the client for BlockDuration once exceeded. Redis errors let the
// request through.
func RateLimitMiddleware(counter RateCounter, opts RateLimitOptions, logger *zap.Logger) gin.HandlerFunc {
	blockedNamespace := opts.Namespace + ":blocked"

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientID := "ip:" + c.ClientIP()

		blocked, err := counter.Exists(ctx, blockedNamespace, clientID)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if blocked {
			ttl, _ := counter.TTL(ctx, blockedNamespace, clientID)
			if opts.OnLimited != nil {
				opts.OnLimited()
			}
			tooManyRequests(c, ttl)
			return
		}

		count, err := counter.IncrWithExpire(ctx, opts.Namespace, clientID, opts.Window)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(opts.Limit) {
			if err := counter.Set(ctx, blockedNamespace, clientID, 1, opts.BlockDuration); err != nil {
				logger.Warn("Failed to record rate limit block", zap.Error(err))
			}
			logger.Warn("Client rate limited",
				zap.String("client", clientID),
				zap.String("path", c.FullPath()),
			)
			if opts.OnLimited != nil {
				opts.OnLimited()
			}
			tooManyRequests(c, opts.BlockDuration)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(opts.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(int64(opts.Limit)-count, 0), 10))
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, retryAfter time.Duration) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
	}
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"status":  "error",
		"message": "Demasiados intentos. Intente de nuevo más tarde.",
	})
}
