package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// LoginLimiter caps login attempts per client IP using Redis counters.
type LoginLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	logger *logrus.Logger
}

func NewLoginLimiter(client *redis.Client, maxPerMinute int, logger *logrus.Logger) *LoginLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &LoginLimiter{
		client: client,
		max:    maxPerMinute,
		window: time.Minute,
		logger: logger,
	}
}

// Allow counts one attempt for key and reports whether it is within budget.
func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "rl:login:" + key
	cnt, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, err
		}
	}
	return cnt <= int64(l.max), nil
}

// Middleware returns a gin handler enforcing the limit. A nil limiter or a
// Redis failure lets requests through.
func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	if l == nil || l.client == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		allowed, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.logger.Warnf("login rate limit: %v", err)
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts, try again later"})
			return
		}
		c.Next()
	}
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
