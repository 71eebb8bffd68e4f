// Package ratelimit provides a redis-backed sliding-window limiter applied
// to write-heavy endpoints (message sends, media uploads).
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limit is requests per window for one endpoint.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Limiter implements sliding-window rate limiting on Redis sorted sets.
type Limiter struct {
	client *redis.Client
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *Limiter {
	return &Limiter{client: client, logger: logger}
}

// CheckAndIncrement records the request and reports whether it is allowed,
// how many remain, and when the window resets.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string, limit Limit) (bool, int, time.Time) {
	now := time.Now()
	windowStart := now.Add(-limit.Window)
	windowKey := fmt.Sprintf("%s:%d", key, now.Unix()/int64(limit.Window.Seconds()))

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, windowKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, windowKey)
	pipe.ZAdd(ctx, windowKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, windowKey, limit.Window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		// fail open: a broken limiter must not take chat down
		if l.logger != nil {
			l.logger.Warn("rate limit check failed", "key", key, "error", err)
		}
		return true, limit.Requests, now.Add(limit.Window)
	}

	count := countCmd.Val()
	remaining := limit.Requests - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	return count < int64(limit.Requests), remaining, now.Add(limit.Window)
}

// KeyFunc derives the limiter key for a request, typically from the
// authenticated principal with a client-IP fallback.
type KeyFunc func(c *gin.Context) string

// Middleware returns a gin handler enforcing the limit. A nil limiter is a
// no-op, so routes can be registered unconditionally.
func (l *Limiter) Middleware(name string, limit Limit, key KeyFunc) gin.HandlerFunc {
	if l == nil || l.client == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		allowed, remaining, resetAt := l.CheckAndIncrement(c.Request.Context(), "ratelimit:"+name+":"+key(c), limit)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())))
			if l.logger != nil {
				l.logger.Warn("rate limit exceeded", "endpoint", name, "path", c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
