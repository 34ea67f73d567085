// Package correlator fuses heterogeneous observability signals (metric,
// log, trace, event) within a time window into incident candidates, per
// spec §4.3.
package correlator

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sentinelops/sentinel/pkg/types"
)

// DefaultWindow is the default correlation window.
const DefaultWindow = 5 * time.Minute

// DefaultMinSignals is the minimum signal count per candidate.
const DefaultMinSignals = 2

// DefaultWeights are the per-signal-type weights used in the confidence average.
var DefaultWeights = map[types.SignalType]float64{
	types.SignalTypeMetric: 0.4,
	types.SignalTypeLog:    0.3,
	types.SignalTypeTrace:  0.3,
	types.SignalTypeEvent:  0.2,
}

// confidenceFloor is the minimum confidence for a candidate to be emitted.
const confidenceFloor = 0.6

// Correlator groups signals by service and window, emitting incident
// candidates for clusters with enough diversity and confidence.
type Correlator struct {
	Window     time.Duration
	MinSignals int
	Weights    map[types.SignalType]float64
	Service    string // optional filter; empty = all services
}

// New builds a Correlator with spec-default window/min-signals/weights.
func New() *Correlator {
	return &Correlator{
		Window:     DefaultWindow,
		MinSignals: DefaultMinSignals,
		Weights:    DefaultWeights,
	}
}

func serviceOf(s types.Signal) string {
	if v, ok := s.Labels["service"]; ok && v != "" {
		return v
	}
	if v, ok := s.Labels["app"]; ok && v != "" {
		return v
	}
	return "unknown"
}

// Correlate groups signals by service, partitions each group into windows,
// and emits a CorrelatedIncidentCandidate per qualifying window, sorted by
// confidence descending.
func (c *Correlator) Correlate(signals []types.Signal) []types.CorrelatedIncidentCandidate {
	window := c.Window
	if window <= 0 {
		window = DefaultWindow
	}
	minSignals := c.MinSignals
	if minSignals <= 0 {
		minSignals = DefaultMinSignals
	}
	weights := c.Weights
	if weights == nil {
		weights = DefaultWeights
	}

	groups := make(map[string][]types.Signal)
	for _, s := range signals {
		svc := serviceOf(s)
		if c.Service != "" && svc != c.Service {
			continue
		}
		groups[svc] = append(groups[svc], s)
	}

	var out []types.CorrelatedIncidentCandidate
	for svc, group := range groups {
		sorted := make([]types.Signal, len(group))
		copy(sorted, group)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

		var windowStart time.Time
		var bucket []types.Signal
		flush := func() {
			if cand, ok := buildCandidate(svc, bucket, minSignals, weights); ok {
				out = append(out, cand)
			}
		}
		for _, s := range sorted {
			if len(bucket) == 0 || s.Timestamp.Sub(windowStart) > window {
				flush()
				windowStart = s.Timestamp
				bucket = nil
			}
			bucket = append(bucket, s)
		}
		flush()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func buildCandidate(service string, signals []types.Signal, minSignals int, weights map[types.SignalType]float64) (types.CorrelatedIncidentCandidate, bool) {
	if len(signals) < minSignals {
		return types.CorrelatedIncidentCandidate{}, false
	}

	distinctTypes := map[types.SignalType]bool{}
	for _, s := range signals {
		distinctTypes[s.Type] = true
	}
	if len(distinctTypes) < 2 {
		return types.CorrelatedIncidentCandidate{}, false
	}

	var weightedSum, weightTotal, maxScore, scoreSum float64
	for _, s := range signals {
		w := weights[s.Type]
		weightedSum += s.AnomalyScore * w
		weightTotal += w
		if s.AnomalyScore > maxScore {
			maxScore = s.AnomalyScore
		}
		scoreSum += s.AnomalyScore
	}

	var weightedAvg float64
	if weightTotal > 0 {
		weightedAvg = weightedSum / weightTotal
	}

	diversityBonus := math.Min(0.3, 0.1*float64(len(distinctTypes)))
	confidence := math.Min(1.0, weightedAvg+diversityBonus)
	if confidence < confidenceFloor {
		return types.CorrelatedIncidentCandidate{}, false
	}

	meanScore := scoreSum / float64(len(signals))
	severityScore := (maxScore + meanScore) / 2

	return types.CorrelatedIncidentCandidate{
		Service:       service,
		Title:         fmt.Sprintf("Correlated anomaly on %s", service),
		Description:   fmt.Sprintf("%d signals across %d types correlated within window", len(signals), len(distinctTypes)),
		SeverityScore: severityScore,
		Signals:       signals,
		Confidence:    confidence,
	}, true
}
