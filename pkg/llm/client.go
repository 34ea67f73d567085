// Package llm wraps the language-model collaborator used for hypothesis
// generation (§4.5). The model is treated strictly as a reasoning
// assistant: it returns candidate structured content, never a controller
// decision or a confidence score.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/cache"
)

// Response is the standard LLM call result with token accounting.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// Provider is the narrow boundary a concrete LLM backend must satisfy.
// Request/response shape is intentionally minimal: system + user prompt in,
// raw content + token counts out.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, model string, temperature float64) (Response, error)
}

// DefaultCacheTTL is the default LLM response cache lifetime, per §4.5.
const DefaultCacheTTL = 24 * time.Hour

// Client wraps a Provider with caching, a circuit breaker, and retry with
// backoff, so callers never have to reason about transient LLM failures
// directly.
type Client struct {
	Provider    Provider
	Cache       *cache.Client
	CacheTTL    time.Duration
	Model       string
	Temperature float64
	Logger      *zap.Logger

	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a Client, wiring a circuit breaker around the provider
// call so a run of transient failures trips open instead of retrying into a
// dead endpoint.
func NewClient(provider Provider, cacheClient *cache.Client, model string, logger *zap.Logger) *Client {
	c := &Client{
		Provider:    provider,
		Cache:       cacheClient,
		CacheTTL:    DefaultCacheTTL,
		Model:       model,
		Temperature: 0.3,
		Logger:      logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-provider",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// cacheKey derives the deterministic key hash(model, temperature,
// system_prompt || "::" || user_prompt), per §4.5.
func cacheKey(model string, temperature float64, systemPrompt, userPrompt string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%f:%s::%s", model, temperature, systemPrompt, userPrompt)
	return "llm_cache:" + hex.EncodeToString(h.Sum(nil))
}

// Complete runs the LLM call, consulting the cache first and the circuit
// breaker + retry policy on a miss. Cache read/write failures never fail
// the call — they are logged and the call proceeds uncached.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	key := cacheKey(c.Model, c.Temperature, systemPrompt, userPrompt)

	if c.Cache != nil {
		if raw, found, err := c.Cache.Get(ctx, key); err != nil {
			c.logWarn("llm cache read failed", err)
		} else if found {
			resp, err := decodeCachedResponse(raw)
			if err == nil {
				return resp, nil
			}
			c.logWarn("llm cache decode failed", err)
		}
	}

	resp, err := c.callWithRetry(ctx, systemPrompt, userPrompt)
	if err != nil {
		return Response{}, err
	}

	if c.Cache != nil {
		ttl := c.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		if err := c.Cache.Set(ctx, key, encodeCachedResponse(resp), ttl); err != nil {
			c.logWarn("llm cache write failed", err)
		}
	}

	return resp, nil
}

func (c *Client) callWithRetry(ctx context.Context, systemPrompt, userPrompt string) (Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return RetryCall(ctx, func(ctx context.Context) (Response, error) {
			return c.Provider.Complete(ctx, systemPrompt, userPrompt, c.Model, c.Temperature)
		})
	})
	if err != nil {
		return Response{}, errors.Wrapf(err, "llm completion failed after retries")
	}
	resp, ok := result.(Response)
	if !ok {
		return Response{}, errors.FailedTo("decode llm breaker result", nil)
	}
	return resp, nil
}

func (c *Client) logWarn(msg string, err error) {
	if c.Logger != nil {
		c.Logger.Warn(msg, zap.Error(err))
	}
}
