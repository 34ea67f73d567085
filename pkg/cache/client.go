// Package cache wraps a redis client for the three cross-cutting uses the
// pipeline needs: LLM response caching (§4.5), distributed incident-dedup
// keys (§4.14), and sliding-window rate-limit counters (§4.17).
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinelops/sentinel/internal/errors"
)

// Client wraps *redis.Client with the narrow operation set the pipeline
// needs, so callers depend on this interface rather than go-redis directly.
type Client struct {
	rdb *redis.Client
}

// New builds a Client against a redis address ("host:port").
func New(addr string, password string, db int) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// NewFromClient wraps an already-constructed *redis.Client, used by tests
// that point at miniredis.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Get fetches a value, returning ("", false, nil) on a cache miss.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NetworkError("cache get", key, err)
	}
	return val, true, nil
}

// Set stores a value with a TTL (0 = no expiry).
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.NetworkError("cache set", key, err)
	}
	return nil
}

// SetNX sets a key only if it doesn't already exist, returning whether the
// set happened — used for the distributed incident-dedup lock (§4.14).
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, errors.NetworkError("cache setnx", key, err)
	}
	return ok, nil
}

// Del removes a key.
func (c *Client) Del(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return errors.NetworkError("cache del", key, err)
	}
	return nil
}

// slidingWindowScript atomically evicts entries older than the window,
// counts what remains, and — only if that count is still under the limit —
// inserts the new entry keyed by a caller-supplied unique id (never the
// timestamp alone, which can collide under clock granularity) and refreshes
// the key's TTL. A rejected request is NEVER inserted, so the window count
// cannot inflate from requests that were denied (§4.17 step 4). The return
// value always exceeds limit on rejection (count+1, same as the insert
// branch) so callers can't mistake a rejection for the limit-th allow: both
// branches return count+1, but only the insert branch also records the
// entry.
const slidingWindowScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
	redis.call('EXPIRE', KEYS[1], ARGV[5])
	return count + 1
end
return count + 1
`

// SlidingWindowIncrement runs the atomic evict-count-insert script against a
// sorted set keyed by key, returning the post-check count. uniqueID must be
// distinct per call (e.g. a uuid) so two requests arriving in the same
// clock tick don't collide as one sorted-set member. Values 1..limit mean
// the request was recorded and allowed; any value above limit means the
// pre-insert count already reached limit and the request was rejected
// without being recorded (caller treats count > limit as a rejection).
func (c *Client) SlidingWindowIncrement(ctx context.Context, key string, now time.Time, windowSeconds, limit int64, uniqueID string) (int64, error) {
	cutoff := now.Add(-time.Duration(windowSeconds) * time.Second).UnixNano()
	nowScore := now.UnixNano()
	result, err := c.rdb.Eval(ctx, slidingWindowScript, []string{key}, cutoff, nowScore, limit, uniqueID, windowSeconds).Result()
	if err != nil {
		return 0, errors.NetworkError("sliding window increment", key, err)
	}
	count, ok := result.(int64)
	if !ok {
		return 0, errors.ParseError("sliding window script result", "int64", nil)
	}
	return count, nil
}

// Ping checks connectivity, used at startup and for health checks.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.NetworkError("cache ping", "", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
