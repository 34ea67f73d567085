// Package metrics is a thin client over a Prometheus-HTTP-API-compatible
// metric backend (`/api/v1/query`, `/api/v1/query_range`), used by the
// detector, blast-radius calculator, and post-action verifier to pull
// service health series.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// DefaultRequestVolumeFallback is the rps assumed when the backend query
// fails, per §4.8.
const DefaultRequestVolumeFallback = 10.0

// Client queries instant and range vectors from the metric backend.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a Client against baseURL (e.g. "http://prometheus:9090") with
// a pooled, timeout-bounded http.Client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type promResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  [2]interface{}    `json:"value"`
			Values [][2]interface{}  `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// Query runs an instant query and returns the first result series as points.
func (c *Client) Query(ctx context.Context, promQL string, at time.Time) (types.MetricSeries, error) {
	q := url.Values{}
	q.Set("query", promQL)
	if !at.IsZero() {
		q.Set("time", strconv.FormatInt(at.Unix(), 10))
	}
	return c.do(ctx, "/api/v1/query", q, promQL)
}

// QueryRange runs a range query between start and end at the given step.
func (c *Client) QueryRange(ctx context.Context, promQL string, start, end time.Time, step time.Duration) (types.MetricSeries, error) {
	q := url.Values{}
	q.Set("query", promQL)
	q.Set("start", strconv.FormatInt(start.Unix(), 10))
	q.Set("end", strconv.FormatInt(end.Unix(), 10))
	q.Set("step", strconv.FormatFloat(step.Seconds(), 'f', -1, 64))
	return c.do(ctx, "/api/v1/query_range", q, promQL)
}

func (c *Client) do(ctx context.Context, path string, q url.Values, promQL string) (types.MetricSeries, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return types.MetricSeries{}, errors.NetworkError("build metric query request", c.BaseURL, err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return types.MetricSeries{}, errors.NetworkError("query metric backend", c.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.MetricSeries{}, errors.NetworkError("query metric backend", c.BaseURL, fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed promResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return types.MetricSeries{}, errors.ParseError("metric response", "json", err)
	}
	if len(parsed.Data.Result) == 0 {
		return types.MetricSeries{MetricName: promQL}, nil
	}

	series := types.MetricSeries{MetricName: promQL, Labels: parsed.Data.Result[0].Metric}
	raw := parsed.Data.Result[0].Values
	if raw == nil && parsed.Data.Result[0].Value[0] != nil {
		raw = [][2]interface{}{parsed.Data.Result[0].Value}
	}
	for _, pair := range raw {
		ts, _ := pair[0].(float64)
		valStr, _ := pair[1].(string)
		val, _ := strconv.ParseFloat(valStr, 64)
		series.Points = append(series.Points, types.MetricPoint{Timestamp: ts, Value: val})
	}
	return series, nil
}

// RequestVolume returns the per-second request rate for service over the
// last window, falling back to DefaultRequestVolumeFallback on any query
// failure (§4.8 degrades gracefully rather than blocking the blast-radius
// calculation).
func (c *Client) RequestVolume(ctx context.Context, service string, window time.Duration) float64 {
	promQL := fmt.Sprintf(`sum(rate(http_requests_total{service="%s"}[%s]))`, service, window)
	series, err := c.Query(ctx, promQL, time.Time{})
	if err != nil || len(series.Points) == 0 {
		return DefaultRequestVolumeFallback
	}
	return series.Points[len(series.Points)-1].Value
}

// ErrorRate5xx returns the fraction of requests for service returning 5xx
// over window, or 0 on query failure.
func (c *Client) ErrorRate5xx(ctx context.Context, service string, window time.Duration) float64 {
	promQL := fmt.Sprintf(`sum(rate(http_requests_total{service="%s",code=~"5.."}[%s])) / sum(rate(http_requests_total{service="%s"}[%s]))`, service, window, service, window)
	series, err := c.Query(ctx, promQL, time.Time{})
	if err != nil || len(series.Points) == 0 {
		return 0
	}
	return series.Points[len(series.Points)-1].Value
}

// HealthMetrics bundles the set the post-action verifier compares
// before/after (§4.12).
type HealthMetrics struct {
	ErrorRate       float64
	P95LatencyMS    float64
	P99LatencyMS    float64
	Availability    float64
	RequestRate     float64
}

// SampleHealth queries the standard health metric set for service at `at`.
// Missing series default to zero; callers should treat a fully-zero result
// with suspicion but SampleHealth itself does not error on partial data.
func (c *Client) SampleHealth(ctx context.Context, service string, at time.Time) HealthMetrics {
	window := 5 * time.Minute
	errRate := c.scalarAt(ctx, fmt.Sprintf(`sum(rate(http_requests_total{service="%s",code=~"5.."}[%s])) / sum(rate(http_requests_total{service="%s"}[%s]))`, service, window, service, window), at)
	reqRate := c.scalarAt(ctx, fmt.Sprintf(`sum(rate(http_requests_total{service="%s"}[%s]))`, service, window), at)

	p95 := c.scalarAt(ctx, fmt.Sprintf(`histogram_quantile(0.95, sum(rate(http_request_duration_seconds_bucket{service="%s"}[%s])) by (le))`, service, window), at)
	p99 := c.scalarAt(ctx, fmt.Sprintf(`histogram_quantile(0.99, sum(rate(http_request_duration_seconds_bucket{service="%s"}[%s])) by (le))`, service, window), at)
	availability := 1.0 - errRate

	return HealthMetrics{
		ErrorRate:    errRate,
		P95LatencyMS: p95 * 1000,
		P99LatencyMS: p99 * 1000,
		Availability: availability,
		RequestRate:  reqRate,
	}
}

func (c *Client) scalarAt(ctx context.Context, promQL string, at time.Time) float64 {
	series, err := c.Query(ctx, promQL, at)
	if err != nil || len(series.Points) == 0 {
		return 0
	}
	return series.Points[len(series.Points)-1].Value
}
