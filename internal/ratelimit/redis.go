package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"aibridge.io/internal/obs"
)

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Redis shares windows across gateway replicas. When Redis fails the
// decision comes from the in-process Fallback instead of failing open.
type Redis struct {
	Client   *redis.Client
	Limit    int
	Window   time.Duration
	Prefix   string
	Fallback *Memory
}

var _ Limiter = (*Redis)(nil)

func NewRedis(client *redis.Client, limit int, win time.Duration) *Redis {
	fallback := NewMemory(limit, win)
	return &Redis{
		Client:   client,
		Limit:    fallback.Limit(),
		Window:   fallback.Window(),
		Prefix:   "rl:",
		Fallback: fallback,
	}
}

func (l *Redis) Admit(ctx context.Context, key string) Decision {
	if l.Client == nil {
		return l.Fallback.Admit(ctx, key)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := rateLimitScript.Run(ctx, l.Client, []string{l.Prefix + key}, l.Window.Milliseconds()).Result()
	if err != nil {
		obs.Warn("rate limit redis unavailable, using local window", map[string]any{"error": err.Error()})
		return l.Fallback.Admit(ctx, key)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return l.Fallback.Admit(ctx, key)
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = l.Window.Milliseconds()
	}
	now := time.Now().UTC()
	return decide(int(count), l.Limit, now.Add(time.Duration(ttlMs)*time.Millisecond), now)
}
