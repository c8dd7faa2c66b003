package ratelimiter

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSlidingWindow stores each client's log as a sorted set scored by
// millisecond timestamps, so every instance behind a load balancer shares one
// budget. The check-and-record step runs atomically inside a Lua script.
type RedisSlidingWindow struct {
	rdb    redis.Scripter
	policy Policy
	now    Clock
	prefix string
	script *redis.Script
}

// NewRedisSlidingWindow constructs a Redis-backed limiter for p.
func NewRedisSlidingWindow(rdb redis.Scripter, p Policy, opts ...Option) *RedisSlidingWindow {
	o := buildOptions(opts)
	return &RedisSlidingWindow{
		rdb:    rdb,
		policy: p,
		now:    o.now,
		prefix: o.prefix,
		script: redis.NewScript(luaSlidingWindowScript),
	}
}

const luaSlidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count >= max then
  return 0
end
redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, window)
return 1
`

// Allow implements Limiter. Redis errors fail open: the request is allowed and
// the error is returned so the caller can log it.
func (l *RedisSlidingWindow) Allow(ctx context.Context, clientID string) (bool, error) {
	if l == nil || l.rdb == nil || l.policy.disabled() {
		return true, nil
	}
	now := l.now()
	key := l.prefix + "rate:" + l.policy.Name + ":" + clientID
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	res, err := l.script.Run(ctx, l.rdb, []string{key},
		now.UnixMilli(), l.policy.Window.Milliseconds(), l.policy.Max, member,
	).Int64()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.String("policy", l.policy.Name), slog.Any("error", err))
		return true, err
	}
	return res == 1, nil
}
