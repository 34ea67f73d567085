// Package detector implements the sliding-window z-score anomaly detector:
// given a metric series, decide whether its most recent point is anomalous
// relative to the baseline formed by the preceding points, and label the
// anomaly with a coarse category.
package detector

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/pkg/mathutil"
	"github.com/sentinelops/sentinel/pkg/types"
)

// DefaultSigmaThreshold is the z-score beyond which a point is flagged.
const DefaultSigmaThreshold = 3.0

// Detector evaluates MetricSeries for anomalies using a configurable sigma
// threshold.
type Detector struct {
	SigmaThreshold float64
	Logger         *zap.Logger
}

// New builds a Detector with the given sigma threshold, falling back to
// DefaultSigmaThreshold when threshold <= 0. logger may be nil.
func New(threshold float64, logger *zap.Logger) *Detector {
	if threshold <= 0 {
		threshold = DefaultSigmaThreshold
	}
	return &Detector{SigmaThreshold: threshold, Logger: logger}
}

// Detect evaluates only the most recent point of series against the
// baseline formed by the rest. Returns no anomalies (not an error) when the
// series has fewer than 3 points, or when the most recent value is NaN/Inf
// (rejected as a non-anomaly and logged rather than silently dropped).
func (d *Detector) Detect(series types.MetricSeries) []types.Anomaly {
	points := series.Points
	if len(points) < 3 {
		return nil
	}

	last := points[len(points)-1]
	if math.IsNaN(last.Value) || math.IsInf(last.Value, 0) {
		d.logRejected(series.MetricName, last.Value)
		return nil
	}

	baseline := make([]float64, 0, len(points)-1)
	for _, p := range points[:len(points)-1] {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			d.logRejected(series.MetricName, p.Value)
			continue
		}
		baseline = append(baseline, p.Value)
	}
	if len(baseline) == 0 {
		return nil
	}

	mean := mathutil.Mean(baseline)
	sigma := mathutil.StandardDeviation(baseline)

	var z float64
	if sigma > 0 {
		z = math.Abs(last.Value-mean) / sigma
	} else {
		denom := math.Max(math.Abs(mean), math.Max(math.Abs(last.Value), 1.0))
		z = 10.0 * math.Abs(last.Value-mean) / denom
	}

	isAnomaly := z > d.SigmaThreshold

	var confidence float64
	if isAnomaly {
		confidence = math.Min(0.99, 0.5+(z-d.SigmaThreshold)/10.0)
	} else {
		confidence = math.Min(0.4, 0.4*z/d.SigmaThreshold)
	}

	anomaly := types.Anomaly{
		MetricName:     series.MetricName,
		IsAnomaly:      isAnomaly,
		CurrentValue:   last.Value,
		ExpectedValue:  mean,
		DeviationSigma: z,
		Confidence:     confidence,
		Timestamp:      time.Unix(int64(last.Timestamp), 0).UTC(),
		Labels:         series.Labels,
	}
	if isAnomaly {
		anomaly.Category = categorize(series.MetricName, last.Value, mean)
	}

	return []types.Anomaly{anomaly}
}

// logRejected records a NaN/Inf point dropped from consideration rather
// than silently discarding it, so bad upstream data is visible.
func (d *Detector) logRejected(metricName string, value float64) {
	if d.Logger == nil {
		return
	}
	d.Logger.Warn("rejecting non-finite metric point as non-anomaly",
		zap.String("metric", metricName), zap.Float64("value", value))
}

// categorize maps a metric name (plus the direction of the deviation) to a
// coarse symptom category, per the keyword table in spec §4.1.
func categorize(metricName string, current, expected float64) string {
	name := strings.ToLower(metricName)
	switch {
	case strings.Contains(name, "error"):
		if current > expected {
			return "error_spike"
		}
		return "recovery"
	case strings.Contains(name, "latency"), strings.Contains(name, "duration"):
		return "latency_spike"
	case strings.Contains(name, "memory"), strings.Contains(name, "heap"):
		return "memory_leak"
	case strings.Contains(name, "cpu"):
		return "cpu_spike"
	case strings.Contains(name, "request"), strings.Contains(name, "throughput"):
		if current > expected {
			return "traffic_spike"
		}
		return "traffic_drop"
	default:
		return "metric_anomaly"
	}
}
