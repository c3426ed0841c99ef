package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces a per-domain sliding window over a Redis sorted set.
// Every decision fails open: when Redis is unreachable the caller proceeds
// unthrottled rather than stalling the whole scrape.
type RedisLimiter struct {
	client      *redis.Client
	maxRequests int
	window      time.Duration
	maxWait     time.Duration
	logger      *log.Logger
	connected   bool
}

func NewRedisLimiter(addr, password string, db, maxRequests int, window, maxWait time.Duration, logger *log.Logger) *RedisLimiter {
	if maxRequests <= 0 {
		maxRequests = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxWait <= 0 {
		maxWait = 2 * time.Minute
	}
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		maxRequests: maxRequests,
		window:      window,
		maxWait:     maxWait,
		logger:      logger,
	}
}

func (l *RedisLimiter) Connect(ctx context.Context) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("rate limiter not configured")
	}
	if err := l.client.Ping(ctx).Err(); err != nil {
		l.connected = false
		return fmt.Errorf("redis ping: %w", err)
	}
	l.connected = true
	return nil
}

func (l *RedisLimiter) key(domain string) string {
	return "ratelimit:" + domain
}

// allow records one request for domain and reports whether it fits inside
// the window.
func (l *RedisLimiter) allow(ctx context.Context, domain string) (bool, error) {
	now := time.Now()
	key := l.key(domain)
	cutoff := now.Add(-l.window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if countCmd.Val() >= int64(l.maxRequests) {
		return false, nil
	}

	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())
	add := l.client.TxPipeline()
	add.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	add.Expire(ctx, key, l.window+time.Second)
	if _, err := add.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// WaitIfNeeded blocks until a request slot for domain opens up, polling once
// a second up to the configured max wait. Redis errors let the request
// through.
func (l *RedisLimiter) WaitIfNeeded(ctx context.Context, domain string) error {
	if l == nil || !l.connected {
		return nil
	}

	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.allow(ctx, domain)
		if err != nil {
			if l.logger != nil {
				l.logger.Warn().Err(err).Str("domain", domain).Msg("rate limiter unavailable, proceeding")
			}
			return nil
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			if l.logger != nil {
				l.logger.Warn().Str("domain", domain).Dur("max_wait", l.maxWait).Msg("rate limit wait exceeded, proceeding")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (l *RedisLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
