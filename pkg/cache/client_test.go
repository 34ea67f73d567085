package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromClient(rdb)
}

func TestGetSet_RoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	if _, found, err := c.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	if err := c.Set(ctx, "key1", "value1", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, found, err := c.Get(ctx, "key1")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if val != "value1" {
		t.Errorf("expected value1, got %s", val)
	}
}

func TestSetNX_OnlySetsOnce(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "holder-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to succeed, got ok=%v err=%v", ok, err)
	}
	ok, err = c.SetNX(ctx, "lock", "holder-2", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to fail, got ok=%v err=%v", ok, err)
	}
}

func TestDel_RemovesKey(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	c.Set(ctx, "to-delete", "x", time.Minute)
	if err := c.Del(ctx, "to-delete"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, found, _ := c.Get(ctx, "to-delete"); found {
		t.Error("expected key to be gone after Del")
	}
}

func TestPing_Succeeds(t *testing.T) {
	c := testClient(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
