package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/pkg/cache"
)

// DedupGuard implements the distributed "dedup:{service}" key check from
// §4.14: a shared cache key with TTL, degrading to an in-process map with
// the same TTL semantics when the cache is unreachable. Cache write
// failures must never block incident creation, only the dedup guarantee
// degrades from cross-replica to per-process.
type DedupGuard struct {
	Cache  *cache.Client
	Logger *zap.Logger

	mu       sync.Mutex
	fallback map[string]time.Time
}

// NewDedupGuard builds a guard. cacheClient may be nil, in which case the
// guard always falls back to the in-process map.
func NewDedupGuard(cacheClient *cache.Client, logger *zap.Logger) *DedupGuard {
	return &DedupGuard{
		Cache:    cacheClient,
		Logger:   logger,
		fallback: make(map[string]time.Time),
	}
}

// CheckAndSet returns true if service is currently within its
// deduplication window (a prior tick already set the key and it hasn't
// expired), and otherwise atomically marks it as seen for ttl.
func (g *DedupGuard) CheckAndSet(ctx context.Context, service string, ttl time.Duration) (bool, error) {
	key := "dedup:" + service

	if g.Cache != nil {
		ok, err := g.Cache.SetNX(ctx, key, "1", ttl)
		if err == nil {
			return !ok, nil
		}
		if g.Logger != nil {
			g.Logger.Warn("dedup cache unreachable, degrading to in-process guard",
				zap.String("service", service), zap.Error(err))
		}
	}

	return g.checkAndSetFallback(service, ttl), nil
}

func (g *DedupGuard) checkAndSetFallback(service string, ttl time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if expiresAt, ok := g.fallback[service]; ok && now.Before(expiresAt) {
		return true
	}
	g.fallback[service] = now.Add(ttl)
	return false
}
