package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// checkScript increments the window counter, starts the expiry on the first
// hit, and reports the remaining TTL in one round trip.
var checkScript = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter stores windows in Redis so every instance shares one count.
// The key's TTL is the window; expiry replaces the explicit reset.
type RedisLimiter struct {
	rdb    goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisLimiter wraps an existing client.
func NewRedisLimiter(rdb goredis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{rdb: rdb, prefix: prefix, now: time.Now}
}

// DialRedis connects and pings, failing fast when the store is unreachable.
func DialRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisLimiter) key(identifier string, limit int, window time.Duration) string {
	return l.prefix + ":" + windowKey(identifier, limit, window)
}

func (l *RedisLimiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		return Result{}, fmt.Errorf("rate limit window must be at least 1ms")
	}

	raw, err := checkScript.Run(ctx, l.rdb, []string{l.key(identifier, limit, window)}, windowMs).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}
	if len(raw) != 2 {
		return Result{}, fmt.Errorf("rate limit check: unexpected reply length %d", len(raw))
	}

	count, ttlMs := int(raw[0]), raw[1]
	now := l.now()
	// windowStart + window == now + ttl
	windowStart := now.Add(time.Duration(ttlMs)*time.Millisecond - window)
	return evaluate(count, limit, windowStart, window), nil
}

func (l *RedisLimiter) Reset(ctx context.Context) error {
	iter := l.rdb.Scan(ctx, 0, l.prefix+":*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := l.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("rate limit reset: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	if len(batch) > 0 {
		if err := l.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("rate limit reset: %w", err)
		}
	}
	return nil
}

// HealthCheck pings the backing store.
func (l *RedisLimiter) HealthCheck(ctx context.Context) error {
	if err := l.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
