package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed-window counters across instances.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	now    func() time.Time
}

func NewRedisLimiter(opt *redis.Options, prefix string) *RedisLimiter {
	return &RedisLimiter{Client: redis.NewClient(opt), Prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	if !rule.Enabled() {
		return Decision{Allowed: true}, nil
	}
	now := l.now()
	bucket := fmt.Sprintf("%s:%s:%d", l.Prefix, key, windowStart(now, rule.Window).Unix())

	var incr *redis.IntCmd
	_, err := l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, bucket)
		pipe.PExpire(ctx, bucket, rule.Window+time.Second)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return decide(incr.Val(), rule, now), nil
}

func (l *RedisLimiter) Close() error {
	if l == nil || l.Client == nil {
		return nil
	}
	return l.Client.Close()
}
