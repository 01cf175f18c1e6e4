package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis counts attempts in a fixed window shared by every server instance.
type Redis struct {
	rdb         redis.Cmdable
	maxAttempts int64
	window      time.Duration
	prefix      string
}

func NewRedis(rdb redis.Cmdable, maxAttempts int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, maxAttempts: int64(maxAttempts), window: window, prefix: "throttle:"}
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (r *Redis) Hit(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + key

	n, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		if err := r.rdb.PExpire(ctx, k, r.window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis expire: %w", err)
		}
	}
	if n <= r.maxAttempts {
		return true, 0, nil
	}

	ttl, err := r.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl < 0 {
		// key lost its expiry; restart the window
		if err := r.rdb.PExpire(ctx, k, r.window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis expire: %w", err)
		}
		ttl = r.window
	}
	return false, ttl, nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
