package hypothesis

import (
	"sort"

	"github.com/sentinelops/sentinel/pkg/dependency"
	"github.com/sentinelops/sentinel/pkg/mathutil"
	"github.com/sentinelops/sentinel/pkg/types"
)

// categoryBaseScores is step 1 of the confidence formula, §4.5.
var categoryBaseScores = map[string]float64{
	"memory_leak":      0.70,
	"cpu_spike":        0.75,
	"traffic_spike":    0.80,
	"latency_spike":    0.65,
	"error_spike":      0.85,
	"database_issue":   0.60,
	"network_issue":    0.55,
	"deployment_issue": 0.80,
}

const defaultCategoryBase = 0.50

const (
	maxDiversityBonus = 0.15
	diversityPerType  = 0.05
	maxCountBonus     = 0.10
	countBonusPerItem = 0.03
	maxDeviationScore = 1.0
	deviationDivisor  = 6.0

	weightBase      = 0.4
	weightEvidence  = 0.35
	weightAnomaly   = 0.25

	confidenceFloor   = 0.01
	confidenceCeiling = 0.99
)

// categoryBase returns step 1: the base score for a hypothesis category.
func categoryBase(category string) float64 {
	if v, ok := categoryBaseScores[category]; ok {
		return v
	}
	return defaultCategoryBase
}

// evidenceQuality is step 2: avg_relevance*0.6 + diversity_bonus + count_bonus.
func evidenceQuality(evidence []types.Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	var relevanceSum float64
	distinctTypes := map[string]bool{}
	for _, e := range evidence {
		relevanceSum += e.Relevance
		distinctTypes[e.SignalType] = true
	}
	avgRelevance := relevanceSum / float64(len(evidence))
	diversityBonus := mathutil.Min([]float64{maxDiversityBonus, diversityPerType * float64(len(distinctTypes))})
	countBonus := mathutil.Min([]float64{maxCountBonus, countBonusPerItem * float64(len(evidence))})
	return avgRelevance*0.6 + diversityBonus + countBonus
}

// anomalyStrength is step 3: avg_anomaly_confidence*0.7 + deviation_score*0.3.
func anomalyStrength(anomalies []types.Anomaly) float64 {
	if len(anomalies) == 0 {
		return 0
	}
	var confSum, maxDeviation float64
	for _, a := range anomalies {
		confSum += a.Confidence
		if a.DeviationSigma > maxDeviation {
			maxDeviation = a.DeviationSigma
		}
	}
	avgConfidence := confSum / float64(len(anomalies))
	deviationScore := mathutil.Min([]float64{maxDeviationScore, maxDeviation / deviationDivisor})
	return avgConfidence*0.7 + deviationScore*0.3
}

// ScoreInput bundles everything the confidence formula needs for one
// hypothesis.
type ScoreInput struct {
	Hypothesis        RawHypothesis
	Anomalies         []types.Anomaly
	AffectedService   string
	HypothesisedCause string // service implicated by the hypothesis, if any; "" if same as affected
	Graph             *dependency.Graph // nil = no topology boost
}

// Score computes the deterministic confidence for one hypothesis, §4.5
// steps 1-6.
func Score(in ScoreInput) float64 {
	base := categoryBase(in.Hypothesis.Category)
	evidence := evidenceQuality(in.Hypothesis.Evidence)
	anomaly := anomalyStrength(in.Anomalies)

	combined := weightBase*base + weightEvidence*evidence + weightAnomaly*anomaly

	if in.Graph != nil && in.HypothesisedCause != "" {
		combined += in.Graph.DependencyBoost(in.AffectedService, in.HypothesisedCause)
	}

	return mathutil.Clamp(combined, confidenceFloor, confidenceCeiling)
}

// Rank builds types.Hypothesis records from raw model output plus their
// computed confidence, sorted descending by confidence with dense ranks
// assigned 1..N.
func Rank(incidentID string, raw []RawHypothesis, anomalies []types.Anomaly, affectedService string, graph *dependency.Graph, causeOf func(RawHypothesis) string) []types.Hypothesis {
	out := make([]types.Hypothesis, 0, len(raw))
	for _, h := range raw {
		cause := ""
		if causeOf != nil {
			cause = causeOf(h)
		}
		score := Score(ScoreInput{
			Hypothesis:        h,
			Anomalies:         anomalies,
			AffectedService:   affectedService,
			HypothesisedCause: cause,
			Graph:             graph,
		})
		supporting := make([]string, 0, len(h.Evidence))
		for _, e := range h.Evidence {
			supporting = append(supporting, e.SignalName)
		}
		out = append(out, types.Hypothesis{
			IncidentID:        incidentID,
			Description:       h.Description,
			Category:          h.Category,
			ConfidenceScore:   score,
			Evidence:          h.Evidence,
			Reasoning:         h.Reasoning,
			SupportingSignals: supporting,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfidenceScore > out[j].ConfidenceScore })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
