package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is an in-process fallback used when Redis is disabled. Each
// domain gets its own token bucket sized to the same window budget.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewLocalLimiter(maxRequests int, window time.Duration) *LocalLimiter {
	if maxRequests <= 0 {
		maxRequests = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:    maxRequests,
	}
}

func (l *LocalLimiter) Connect(ctx context.Context) error { return nil }

func (l *LocalLimiter) forDomain(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[domain] = lim
	}
	return lim
}

func (l *LocalLimiter) WaitIfNeeded(ctx context.Context, domain string) error {
	if l == nil {
		return nil
	}
	return l.forDomain(domain).Wait(ctx)
}

func (l *LocalLimiter) Close() error { return nil }
