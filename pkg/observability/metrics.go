// Package observability exposes this process's own operational counters
// and histograms, distinct from the pkg/metrics client used to query the
// monitored fleet's backend.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IncidentsCreatedTotal counts newly created (non-duplicate) incidents
	// by severity.
	IncidentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_incidents_created_total",
		Help: "Total incidents created, labeled by severity.",
	}, []string{"severity"})

	// IncidentsDeduplicatedTotal counts incident-candidates merged into an
	// existing incident instead of creating a new one.
	IncidentsDeduplicatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_incidents_deduplicated_total",
		Help: "Total incident candidates merged into an existing incident, labeled by match kind.",
	}, []string{"match_kind"})

	// AnalysisTaskDuration records wall-clock time for one analysis task
	// attempt, labeled by its terminal outcome.
	AnalysisTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_analysis_task_duration_seconds",
		Help:    "Duration of one analysis task attempt.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// ActionsExecutedTotal counts executed remediation actions by type and
	// terminal status.
	ActionsExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_actions_executed_total",
		Help: "Total remediation actions executed, labeled by action type and status.",
	}, []string{"action_type", "status"})

	// RateLimitDeniedTotal counts requests denied by a ratelimit.Limiter.
	RateLimitDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_rate_limit_denied_total",
		Help: "Total requests denied by the sliding-window rate limiter, labeled by limiter name.",
	}, []string{"limiter"})

	// MonitorTickDuration records one anomaly-monitor polling tick.
	MonitorTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_monitor_tick_duration_seconds",
		Help:    "Duration of one anomaly monitor polling tick across all services.",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordIncidentCreated increments IncidentsCreatedTotal for severity.
func RecordIncidentCreated(severity string) {
	IncidentsCreatedTotal.WithLabelValues(severity).Inc()
}

// RecordIncidentDeduplicated increments IncidentsDeduplicatedTotal for
// matchKind ("exact" or "fuzzy").
func RecordIncidentDeduplicated(matchKind string) {
	IncidentsDeduplicatedTotal.WithLabelValues(matchKind).Inc()
}

// RecordAnalysisTask observes one analysis task's duration under outcome
// ("resolved", "pending_approval", "failed").
func RecordAnalysisTask(outcome string, duration time.Duration) {
	AnalysisTaskDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordActionExecuted increments ActionsExecutedTotal for actionType/status.
func RecordActionExecuted(actionType, status string) {
	ActionsExecutedTotal.WithLabelValues(actionType, status).Inc()
}

// RecordRateLimitDenied increments RateLimitDeniedTotal for limiter.
func RecordRateLimitDenied(limiter string) {
	RateLimitDeniedTotal.WithLabelValues(limiter).Inc()
}

// RecordMonitorTick observes one monitor tick's total duration.
func RecordMonitorTick(duration time.Duration) {
	MonitorTickDuration.Observe(duration.Seconds())
}
