package action

import (
	"sort"

	"github.com/sentinelops/sentinel/pkg/mathutil"
	"github.com/sentinelops/sentinel/pkg/types"
)

// criticalityMultiplier scales the adjusted risk by how critical the
// affected service is.
var criticalityMultiplier = map[types.Criticality]float64{
	types.CriticalityLow:      0.8,
	types.CriticalityMedium:   1.0,
	types.CriticalityHigh:     1.2,
	types.CriticalityCritical: 1.5,
}

const maxUrgencyDiscount = 0.3

// RankedAction pairs a candidate action with its adjusted risk and
// estimated cost.
type RankedAction struct {
	Action        types.Action
	Profile       types.ActionRiskProfile
	AdjustedRisk  float64
	ExpectedCost  float64
	WorstCaseCost float64
}

// Rank orders candidates ascending by adjusted risk, applying an optional
// confidence floor filter, per §4.9. profiles is keyed by action type.
func Rank(candidates []types.Action, profiles map[string]types.ActionRiskProfile, criticality types.Criticality, downtimeMinutes float64, confidenceFloor float64, confidences map[string]float64) []RankedAction {
	mult := criticalityMultiplier[criticality]
	if mult == 0 {
		mult = 1.0
	}
	urgencyDiscount := mathutil.Min([]float64{maxUrgencyDiscount, downtimeMinutes / 20})

	var out []RankedAction
	for _, a := range candidates {
		if confidenceFloor > 0 {
			if c, ok := confidences[a.Type]; ok && c < confidenceFloor {
				continue
			}
		}
		profile := profiles[a.Type]
		adjusted := mathutil.Clamp(a.RiskScore*mult-urgencyDiscount, 0, 1)
		blastMult := blastRadiusMultiplier(a.BlastRadius)
		expectedCost := profile.ExpectedDowntimeSeconds / 60 * profile.EstimatedCostPerMinute * blastMult
		worstCost := (profile.WorstCaseDowntimeSeconds + profile.RecoveryTimeSeconds) / 60 * profile.EstimatedCostPerMinute * blastMult

		out = append(out, RankedAction{
			Action:        a,
			Profile:       profile,
			AdjustedRisk:  adjusted,
			ExpectedCost:  expectedCost,
			WorstCaseCost: worstCost,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AdjustedRisk < out[j].AdjustedRisk })
	return out
}

// Pick returns the first entry of ranked, if any: the lowest-adjusted-risk
// action when ranked comes from Rank. It does not sort.
func Pick(ranked []RankedAction) (RankedAction, bool) {
	if len(ranked) == 0 {
		return RankedAction{}, false
	}
	return ranked[0], true
}

func blastRadiusMultiplier(level types.RiskLevel) float64 {
	switch level {
	case types.RiskCritical:
		return 2.0
	case types.RiskHigh:
		return 1.5
	case types.RiskMedium:
		return 1.2
	default:
		return 1.0
	}
}
