package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "ratelimit:"

// RedisLimiter shares one fixed window across replicas. INCR creates the
// key atomically; the expiry set on the first increment defines the
// window, so all later increments inherit it.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
}

func NewRedisLimiter(client *redis.Client, cfg Config, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{client: client, cfg: cfg, logger: logger}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rkey := keyPrefix + key
	count, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, rkey, l.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire %s: %w", key, err)
		}
	}
	if count > int64(l.cfg.MaxRequests) {
		return false, nil
	}
	return true, nil
}

func (l *RedisLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := l.client.Get(ctx, keyPrefix+key).Int()
	if err == redis.Nil {
		return l.cfg.MaxRequests, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate limit get %s: %w", key, err)
	}
	n := l.cfg.MaxRequests - count
	if n < 0 {
		n = 0
	}
	return n, nil
}

// ResetIn reports the TTL of the key's window, zero when no window is open.
func (l *RedisLimiter) ResetIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.PTTL(ctx, keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit ttl %s: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
