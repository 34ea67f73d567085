// Package ratelimit implements the cross-replica sliding-window limiter of
// §4.17: a shared-cache sorted set per (limiter_name, client), falling back
// to an in-process token bucket when the cache is unreachable.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sentinelops/sentinel/pkg/cache"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Degraded bool // true if the decision came from the in-process fallback
}

// Limiter enforces a per-client request budget within a sliding window,
// shared across replicas via cache, degrading to an in-process token
// bucket per client on cache failure.
type Limiter struct {
	Name   string
	Cache  *cache.Client
	Logger *zap.Logger

	WindowSeconds int64
	Limit         int64

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

// New builds a Limiter named name, enforcing limit requests per
// windowSeconds per client key.
func New(name string, cacheClient *cache.Client, windowSeconds, limit int64, logger *zap.Logger) *Limiter {
	return &Limiter{
		Name:          name,
		Cache:         cacheClient,
		Logger:        logger,
		WindowSeconds: windowSeconds,
		Limit:         limit,
		fallback:      make(map[string]*rate.Limiter),
	}
}

// Allow runs the atomic check-and-record sequence for clientKey: evict
// stale entries, count what remains, and only if under the limit, record
// this request and allow it; a rejected request is never recorded (§4.17
// step 4). On cache failure it degrades to an in-process token bucket
// scoped to this limiter+client, never blocking the caller.
func (l *Limiter) Allow(ctx context.Context, clientKey string) Decision {
	if l.Cache != nil {
		count, err := l.Cache.SlidingWindowIncrement(ctx, l.cacheKey(clientKey), time.Now(), l.WindowSeconds, l.Limit, uuid.New().String())
		if err == nil {
			return Decision{Allowed: count <= l.Limit}
		}
		if l.Logger != nil {
			l.Logger.Warn("rate limiter cache unreachable, degrading to in-process bucket",
				zap.String("limiter", l.Name), zap.String("client", clientKey), zap.Error(err))
		}
	}
	return Decision{Allowed: l.fallbackAllow(clientKey), Degraded: true}
}

func (l *Limiter) cacheKey(clientKey string) string {
	return "ratelimit:" + l.Name + ":" + clientKey
}

func (l *Limiter) fallbackAllow(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.fallback[clientKey]
	if !ok {
		// Approximate the sliding window as a token bucket refilling at
		// limit/window, burst capacity = limit.
		ratePerSecond := rate.Limit(float64(l.Limit) / float64(l.WindowSeconds))
		limiter = rate.NewLimiter(ratePerSecond, int(l.Limit))
		l.fallback[clientKey] = limiter
	}
	return limiter.Allow()
}
