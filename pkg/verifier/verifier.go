// Package verifier samples service health before and after a remediation
// action and decides whether the action helped, per §4.12.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sentinelops/sentinel/pkg/executor"
	"github.com/sentinelops/sentinel/pkg/mathutil"
	"github.com/sentinelops/sentinel/pkg/metrics"
	"github.com/sentinelops/sentinel/pkg/types"
)

// Status is the post-action verification verdict.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusNoChange       Status = "no_change"
	StatusDegraded       Status = "degraded"
	StatusUnstable       Status = "unstable"
)

// Recommendation is the follow-up action the caller should take.
type Recommendation string

const (
	RecommendationContinue Recommendation = "continue"
	RecommendationRollback Recommendation = "rollback"
	RecommendationEscalate Recommendation = "escalate"
	RecommendationMonitor  Recommendation = "monitor"
)

// DefaultStabilizationWindow is how long to wait after execution before
// sampling "after" metrics.
const DefaultStabilizationWindow = 120 * time.Second

// DefaultImprovementThreshold is the average improvement fraction deemed a
// clean success.
const DefaultImprovementThreshold = 0.20

// degradedThreshold flags any single metric that got more than 10% worse.
const degradedThreshold = 0.10

// unstableSpread flags wildly inconsistent per-metric improvement.
const unstableSpread = 0.30

// Result is the verifier's output.
type Result struct {
	Status                Status
	Message               string
	BeforeMetrics          metrics.HealthMetrics
	AfterMetrics           metrics.HealthMetrics
	ImprovementPercentage  map[string]float64
	Recommendation         Recommendation
	StabilizationSeconds   float64
}

// Verifier samples health metrics before/after an action and scores the
// outcome.
type Verifier struct {
	Metrics              *metrics.Client
	StabilizationWindow  time.Duration
	ImprovementThreshold float64
	Sleep                func(time.Duration) // overridable for tests
}

// New builds a Verifier with spec defaults.
func New(metricsClient *metrics.Client) *Verifier {
	return &Verifier{
		Metrics:              metricsClient,
		StabilizationWindow:  DefaultStabilizationWindow,
		ImprovementThreshold: DefaultImprovementThreshold,
		Sleep:                time.Sleep,
	}
}

// Verify runs the §4.12 algorithm for a completed execution against
// service. beforeMetrics may be the zero value, in which case it is
// sampled at execution.StartedAt - 5min.
func (v *Verifier) Verify(ctx context.Context, service string, execution executor.ExecutionResult, beforeMetrics *metrics.HealthMetrics) Result {
	if execution.Status == types.ActionStatusFailed {
		return Result{
			Status:         StatusDegraded,
			Message:        fmt.Sprintf("post-action verification: %s (action execution failed, error=%q)", StatusDegraded, execution.Error),
			Recommendation: RecommendationRollback,
		}
	}

	window := v.StabilizationWindow
	if window <= 0 {
		window = DefaultStabilizationWindow
	}
	sleep := v.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(window)

	var before metrics.HealthMetrics
	if beforeMetrics != nil {
		before = *beforeMetrics
	} else if v.Metrics != nil {
		before = v.Metrics.SampleHealth(ctx, service, execution.StartedAt.Add(-5*time.Minute))
	}

	var after metrics.HealthMetrics
	if v.Metrics != nil {
		after = v.Metrics.SampleHealth(ctx, service, execution.CompletedAt.Add(window))
	}

	improvements := computeImprovements(before, after)
	return v.decide(before, after, improvements, window)
}

// computeImprovements returns per-metric improvement percentage, sign-
// consistent for "higher is worse" metrics (error rate, latency) and
// inverted for availability (higher is better). request_rate is reported
// in the rendered message but deliberately excluded here: a rise or fall
// in traffic isn't itself an improvement or a regression, so it doesn't
// enter the success/degraded/unstable scoring.
func computeImprovements(before, after metrics.HealthMetrics) map[string]float64 {
	improvements := map[string]float64{
		"error_rate":   improvementPct(before.ErrorRate, after.ErrorRate, false),
		"p95_latency":  improvementPct(before.P95LatencyMS, after.P95LatencyMS, false),
		"p99_latency":  improvementPct(before.P99LatencyMS, after.P99LatencyMS, false),
		"availability": improvementPct(before.Availability, after.Availability, true),
	}
	return improvements
}

// improvementPct computes (before-after)/before*100, inverted for
// higher-is-better metrics so a positive result always means "got better".
func improvementPct(before, after float64, higherIsBetter bool) float64 {
	if before == 0 {
		return 0
	}
	pct := (before - after) / before * 100
	if higherIsBetter {
		pct = -pct
	}
	return pct
}

func (v *Verifier) decide(before, after metrics.HealthMetrics, improvements map[string]float64, window time.Duration) Result {
	threshold := v.ImprovementThreshold
	if threshold <= 0 {
		threshold = DefaultImprovementThreshold
	}

	var values []float64
	for _, pct := range improvements {
		values = append(values, pct)
	}

	build := func(status Status, rec Recommendation) Result {
		return Result{
			Status: status, BeforeMetrics: before, AfterMetrics: after,
			ImprovementPercentage: improvements, Recommendation: rec,
			StabilizationSeconds: window.Seconds(),
			Message:              renderMessage(status, improvements, before, after),
		}
	}

	for _, pct := range improvements {
		if pct < -degradedThreshold*100 {
			return build(StatusDegraded, RecommendationRollback)
		}
	}

	avg := mathutil.Mean(values) / 100

	switch {
	case avg >= threshold:
		return build(StatusSuccess, RecommendationContinue)
	case avg >= threshold/2:
		return build(StatusPartialSuccess, RecommendationMonitor)
	}

	spread := mathutil.Max(values) - mathutil.Min(values)
	if spread > unstableSpread*100 {
		return build(StatusUnstable, RecommendationEscalate)
	}

	// no_change: the action didn't help, so a human needs to pick the
	// next move rather than the loop quietly moving on.
	return build(StatusNoChange, RecommendationEscalate)
}

// renderMessage formats a human-readable before/after/Δ summary per
// metric, plus the overall average improvement.
func renderMessage(status Status, improvements map[string]float64, before, after metrics.HealthMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "post-action verification: %s\n", status)

	fmt.Fprintf(&b, "error_rate: before=%.4f after=%.4f delta=%+.1f%%\n",
		before.ErrorRate, after.ErrorRate, improvements["error_rate"])
	fmt.Fprintf(&b, "p95_latency_ms: before=%.1f after=%.1f delta=%+.1f%%\n",
		before.P95LatencyMS, after.P95LatencyMS, improvements["p95_latency"])
	fmt.Fprintf(&b, "p99_latency_ms: before=%.1f after=%.1f delta=%+.1f%%\n",
		before.P99LatencyMS, after.P99LatencyMS, improvements["p99_latency"])
	fmt.Fprintf(&b, "availability: before=%.4f after=%.4f delta=%+.1f%%\n",
		before.Availability, after.Availability, improvements["availability"])
	fmt.Fprintf(&b, "request_rate: before=%.1f after=%.1f delta=%+.1f\n",
		before.RequestRate, after.RequestRate, after.RequestRate-before.RequestRate)

	if len(improvements) > 0 {
		var values []float64
		for _, pct := range improvements {
			values = append(values, pct)
		}
		fmt.Fprintf(&b, "overall improvement: %+.1f%%", mathutil.Mean(values))
	}
	return b.String()
}
