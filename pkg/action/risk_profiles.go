package action

import "github.com/sentinelops/sentinel/pkg/types"

// DefaultRiskProfiles is the static, code-resident risk/cost table the
// risk-weighted ranker uses when the caller doesn't supply its own,
// covering every action type this package's selector can produce.
var DefaultRiskProfiles = map[string]types.ActionRiskProfile{
	"restart_pod": {
		ActionType:               "restart_pod",
		RiskCategory:             types.RiskMedium,
		RiskScore:                riskBase[types.RiskMedium],
		ExpectedDowntimeSeconds:  10,
		WorstCaseDowntimeSeconds: 60,
		RecoveryTimeSeconds:      30,
		Reversible:               false,
		BlastRadius:              types.RiskMedium,
		EstimatedCostPerMinute:   50,
	},
	"scale_up": {
		ActionType:               "scale_up",
		RiskCategory:             types.RiskLow,
		RiskScore:                riskBase[types.RiskLow],
		ExpectedDowntimeSeconds:  0,
		WorstCaseDowntimeSeconds: 15,
		RecoveryTimeSeconds:      30,
		Reversible:               true,
		BlastRadius:              types.RiskLow,
		EstimatedCostPerMinute:   20,
	},
	"scale_down": {
		ActionType:               "scale_down",
		RiskCategory:             types.RiskLow,
		RiskScore:                riskBase[types.RiskLow],
		ExpectedDowntimeSeconds:  0,
		WorstCaseDowntimeSeconds: 30,
		RecoveryTimeSeconds:      30,
		Reversible:               true,
		BlastRadius:              types.RiskLow,
		EstimatedCostPerMinute:   20,
	},
	"rollback_deployment": {
		ActionType:               "rollback_deployment",
		RiskCategory:             types.RiskHigh,
		RiskScore:                riskBase[types.RiskHigh],
		ExpectedDowntimeSeconds:  60,
		WorstCaseDowntimeSeconds: 300,
		RecoveryTimeSeconds:      120,
		Reversible:               false,
		BlastRadius:              types.RiskHigh,
		EstimatedCostPerMinute:   150,
	},
}
