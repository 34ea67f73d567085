package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentinelops/sentinel/pkg/mathutil"
	"github.com/sentinelops/sentinel/pkg/types"
)

// buildIncidentCandidate assembles a not-yet-persisted incident from the
// anomalies that tripped the confidence floor on one tick, picking the
// most frequently observed anomaly category as the incident's
// description driver.
func buildIncidentCandidate(service string, anomalies []types.Anomaly) types.Incident {
	categoryCounts := make(map[string]int)
	var confidences []float64
	snapshot := make(map[string]float64, len(anomalies))
	var components []string
	maxSeverity := types.SeverityLow

	for _, a := range anomalies {
		categoryCounts[a.Category]++
		confidences = append(confidences, a.Confidence)
		snapshot[a.MetricName] = a.CurrentValue
		components = append(components, a.MetricName)
		maxSeverity = types.MaxSeverity(maxSeverity, severityFor(a))
	}

	category := dominantCategory(categoryCounts)
	description := fmt.Sprintf("%s: %s detected on %s", category, strings.Join(uniqueMetricNames(anomalies), ", "), service)

	return types.Incident{
		Title:              fmt.Sprintf("%s anomaly on %s", category, service),
		Description:        description,
		Status:             types.IncidentStatusDetected,
		Severity:           maxSeverity,
		AffectedService:    service,
		AffectedComponents: components,
		DetectedAt:         time.Now(),
		MetricsSnapshot:    snapshot,
		Context: map[string]interface{}{
			"category":        category,
			"avg_confidence":  mathutil.Mean(confidences),
			"anomaly_count":   len(anomalies),
		},
	}
}

// severityFor maps an anomaly's deviation strength to a coarse incident
// severity; the precise sigma-to-severity mapping mirrors the detector's
// own confidence scaling (higher sigma, higher severity).
func severityFor(a types.Anomaly) types.Severity {
	switch {
	case a.DeviationSigma >= 5 || a.Confidence >= 0.95:
		return types.SeverityCritical
	case a.DeviationSigma >= 4 || a.Confidence >= 0.85:
		return types.SeverityHigh
	case a.DeviationSigma >= 3:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

func dominantCategory(counts map[string]int) string {
	best, bestCount := "unknown", -1
	for category, count := range counts {
		if count > bestCount {
			best, bestCount = category, count
		}
	}
	return best
}

func uniqueMetricNames(anomalies []types.Anomaly) []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range anomalies {
		if !seen[a.MetricName] {
			seen[a.MetricName] = true
			names = append(names, a.MetricName)
		}
	}
	return names
}
