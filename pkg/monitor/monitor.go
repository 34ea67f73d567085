// Package monitor runs the periodic anomaly-detection polling loop over
// the configured service list: cross-replica dedup guard, bounded
// concurrency, metric sampling, anomaly detection, and incident
// creation/update (§4.14).
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sentinelops/sentinel/pkg/detector"
	"github.com/sentinelops/sentinel/pkg/incident"
	"github.com/sentinelops/sentinel/pkg/types"
)

// DefaultPollInterval is how often the monitor's run loop ticks.
const DefaultPollInterval = 60 * time.Second

// DefaultConcurrency bounds simultaneous per-service work to protect the
// metric backend.
const DefaultConcurrency = 5

// DefaultDedupWindow is the TTL applied to a service's dedup key once a
// new incident is created for it.
const DefaultDedupWindow = 10 * time.Minute

// DefaultLookback is how far back metrics are sampled on each tick.
const DefaultLookback = 5 * time.Minute

// DefaultMinConfidence is the minimum anomaly confidence required to
// create or update an incident.
const DefaultMinConfidence = 0.75

// MetricsSource is the subset of pkg/metrics.Client the monitor needs,
// narrowed to an interface so tests can supply a fake.
type MetricsSource interface {
	QueryRange(ctx context.Context, promQL string, start, end time.Time, step time.Duration) (types.MetricSeries, error)
}

// IncidentSink is the subset of pkg/incident.Deduplicator the monitor
// needs, narrowed to an interface so tests don't require a live datastore.
type IncidentSink interface {
	CreateOrUpdate(ctx context.Context, candidate types.Incident) (incident.Result, error)
}

// TickResult summarizes the outcome for one monitored service on one
// tick, surfaced for logging/metrics and for check_once() callers.
type TickResult struct {
	Service       string
	Skipped       bool // deduped
	AnomalyFound  bool
	IncidentID    string
	IncidentNew   bool
	Err           error
}

// Monitor coordinates the polling loop.
type Monitor struct {
	Services      []string
	Queries       map[string]string // metric name -> promQL template with a single %s for the service
	Metrics       MetricsSource
	Detector      *detector.Detector
	Dedup         *DedupGuard
	Incidents     IncidentSink
	Logger        *zap.Logger

	Concurrency   int64
	PollInterval  time.Duration
	DedupWindow   time.Duration
	Lookback      time.Duration
	MinConfidence float64

	sem *semaphore.Weighted
}

// New builds a Monitor with spec defaults for concurrency/window/lookback/
// confidence.
func New(services []string, queries map[string]string, metricsSource MetricsSource, det *detector.Detector, dedup *DedupGuard, incidents IncidentSink, logger *zap.Logger) *Monitor {
	return &Monitor{
		Services:      services,
		Queries:       queries,
		Metrics:       metricsSource,
		Detector:      det,
		Dedup:         dedup,
		Incidents:     incidents,
		Logger:        logger,
		Concurrency:   DefaultConcurrency,
		PollInterval:  DefaultPollInterval,
		DedupWindow:   DefaultDedupWindow,
		Lookback:      DefaultLookback,
		MinConfidence: DefaultMinConfidence,
	}
}

// CheckOnce drives a single tick, letting an external scheduler run the
// monitor without owning a background goroutine.
func (m *Monitor) CheckOnce(ctx context.Context) []TickResult {
	if m.sem == nil {
		concurrency := m.Concurrency
		if concurrency <= 0 {
			concurrency = DefaultConcurrency
		}
		m.sem = semaphore.NewWeighted(concurrency)
	}

	results := make([]TickResult, len(m.Services))
	done := make(chan struct{}, len(m.Services))

	for i, service := range m.Services {
		i, service := i, service
		if err := m.sem.Acquire(ctx, 1); err != nil {
			results[i] = TickResult{Service: service, Err: err}
			done <- struct{}{}
			continue
		}
		go func() {
			defer m.sem.Release(1)
			defer func() { done <- struct{}{} }()
			results[i] = m.checkService(ctx, service)
		}()
	}

	for range m.Services {
		<-done
	}
	return results
}

// Run drives CheckOnce on PollInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

func (m *Monitor) checkService(ctx context.Context, service string) TickResult {
	dedupWindow := m.DedupWindow
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}

	deduped, err := m.Dedup.CheckAndSet(ctx, service, dedupWindow)
	if err != nil {
		return TickResult{Service: service, Err: err}
	}
	if deduped {
		return TickResult{Service: service, Skipped: true}
	}

	anomalies, err := m.detectAnomalies(ctx, service)
	if err != nil {
		return TickResult{Service: service, Err: err}
	}

	minConfidence := m.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	var qualifying []types.Anomaly
	for _, a := range anomalies {
		if a.IsAnomaly && a.Confidence >= minConfidence {
			qualifying = append(qualifying, a)
		}
	}
	if len(qualifying) == 0 {
		return TickResult{Service: service, AnomalyFound: false}
	}

	cand := buildIncidentCandidate(service, qualifying)
	result, err := m.Incidents.CreateOrUpdate(ctx, cand)
	if err != nil {
		return TickResult{Service: service, AnomalyFound: true, Err: err}
	}

	return TickResult{
		Service:      service,
		AnomalyFound: true,
		IncidentID:   result.Incident.ID,
		IncidentNew:  result.Created,
	}
}

func (m *Monitor) detectAnomalies(ctx context.Context, service string) ([]types.Anomaly, error) {
	lookback := m.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	now := time.Now()
	start := now.Add(-lookback)

	var anomalies []types.Anomaly
	for _, tmpl := range m.Queries {
		promQL := renderQuery(tmpl, service)
		series, err := m.Metrics.QueryRange(ctx, promQL, start, now, 30*time.Second)
		if err != nil {
			return nil, err
		}
		anomalies = append(anomalies, m.Detector.Detect(series)...)
	}
	return anomalies, nil
}

func renderQuery(tmpl, service string) string {
	return fmt.Sprintf(tmpl, service)
}
