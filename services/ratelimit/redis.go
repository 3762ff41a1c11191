package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/practicas-ubb/practicas/core"
)

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// Limiter caps the number of attempts per key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
	limit  int
	window time.Duration
	prefix string
	logger core.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration, prefix string, logger core.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
		limit:  limit,
		window: window,
		prefix: prefix,
		logger: logger,
	}
}

// NewLoginLimiter limits login attempts per email; it allows everything when no redis address is configured.
func NewLoginLimiter(logger core.Logger, conf *core.Config) Limiter {
	if conf.Redis.Addr == "" {
		return Unlimited{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return NewRedisLimiter(client, conf.Redis.LoginAttempts, conf.Redis.LoginWindow, "login", logger)
}

// Allow fails open: redis errors never lock users out.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if l.limit <= 0 || l.window <= 0 || key == "" {
		return true
	}
	redisKey := key
	if l.prefix != "" {
		redisKey = l.prefix + ":" + key
	}
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{redisKey}, ttl, l.limit).Int64()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn(fmt.Sprintf("rate limiter: %v", err), err)
		}
		return true
	}
	return allowed == 1
}

// Unlimited allows every attempt.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) bool { return true }
