package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/pkg/cache"
)

func testCache(t *testing.T) *cache.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	return cache.New(mr.Addr(), "", 0)
}

func TestDedupGuard_FirstCheckIsNotDeduped(t *testing.T) {
	g := NewDedupGuard(testCache(t), zap.NewNop())
	deduped, err := g.CheckAndSet(context.Background(), "payments", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deduped {
		t.Error("expected first check to not be deduped")
	}
}

func TestDedupGuard_SecondCheckWithinWindowIsDeduped(t *testing.T) {
	g := NewDedupGuard(testCache(t), zap.NewNop())
	ctx := context.Background()
	if _, err := g.CheckAndSet(ctx, "payments", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deduped, err := g.CheckAndSet(ctx, "payments", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deduped {
		t.Error("expected second check within the window to be deduped")
	}
}

func TestDedupGuard_DifferentServicesAreIndependent(t *testing.T) {
	g := NewDedupGuard(testCache(t), zap.NewNop())
	ctx := context.Background()
	if _, err := g.CheckAndSet(ctx, "payments", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deduped, err := g.CheckAndSet(ctx, "auth", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deduped {
		t.Error("expected a different service to not be deduped")
	}
}

func TestDedupGuard_FallsBackToInProcessMapWithNilCache(t *testing.T) {
	g := NewDedupGuard(nil, zap.NewNop())
	ctx := context.Background()
	deduped, err := g.CheckAndSet(ctx, "payments", time.Minute)
	if err != nil || deduped {
		t.Fatalf("expected first fallback check to succeed and not be deduped, got deduped=%v err=%v", deduped, err)
	}
	deduped, err = g.CheckAndSet(ctx, "payments", time.Minute)
	if err != nil || !deduped {
		t.Fatalf("expected second fallback check to be deduped, got deduped=%v err=%v", deduped, err)
	}
}

func TestDedupGuard_FallbackExpiresAfterTTL(t *testing.T) {
	g := NewDedupGuard(nil, zap.NewNop())
	ctx := context.Background()
	if _, err := g.CheckAndSet(ctx, "payments", 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	deduped, err := g.CheckAndSet(ctx, "payments", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deduped {
		t.Error("expected dedup entry to expire after its TTL")
	}
}
