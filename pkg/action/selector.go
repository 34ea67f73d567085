// Package action turns a top hypothesis into a concrete, runbook-allowed
// remediation recommendation and ranks candidate actions by adjusted risk,
// per §4.6/§4.9.
package action

import (
	"github.com/sentinelops/sentinel/pkg/mathutil"
	"github.com/sentinelops/sentinel/pkg/runbook"
	"github.com/sentinelops/sentinel/pkg/types"
)

// DefaultConfidenceThreshold is the minimum confidence below which approval
// is always required regardless of risk.
const DefaultConfidenceThreshold = 0.70

// categoryAction maps a hypothesis category to its candidate action type and
// base risk/blast tier.
type categoryAction struct {
	actionType string
	risk       types.RiskLevel
	blast      types.RiskLevel
}

var categoryActions = map[string]categoryAction{
	"memory_leak":    {"restart_pod", types.RiskMedium, types.RiskMedium},
	"cpu_spike":      {"scale_up", types.RiskLow, types.RiskLow},
	"traffic_spike":  {"scale_up", types.RiskLow, types.RiskLow},
	"traffic_drop":   {"scale_down", types.RiskLow, types.RiskLow},
	"latency_spike":  {"restart_pod", types.RiskMedium, types.RiskMedium},
	"error_spike":    {"rollback_deployment", types.RiskHigh, types.RiskHigh},
	"database_issue": {"restart_pod", types.RiskHigh, types.RiskHigh},
	"network_issue":  {"restart_pod", types.RiskHigh, types.RiskHigh},
}

// riskBase is the numeric risk score for each coarse risk tier.
var riskBase = map[types.RiskLevel]float64{
	types.RiskLow:      0.20,
	types.RiskMedium:   0.50,
	types.RiskHigh:     0.75,
	types.RiskCritical: 0.95,
}

// ServiceContext carries the topology facts the selector needs to compute
// tier penalties without importing pkg/dependency directly.
type ServiceContext struct {
	Tier               string // "tier-1", "tier-2", ... empty = no penalty
	CurrentReplicas    int
	ConfidenceThreshold float64 // 0 = use DefaultConfidenceThreshold
}

// Selector maps hypotheses onto runbook-constrained actions.
type Selector struct {
	Runbooks *runbook.Registry
}

// New builds a Selector backed by the given runbook registry.
func New(registry *runbook.Registry) *Selector {
	return &Selector{Runbooks: registry}
}

// Select produces an action recommendation for the top hypothesis on
// service, or (zero, false) if the category is unknown or the runbook
// forbids the mapped action.
func (s *Selector) Select(hyp types.Hypothesis, service string, ctx ServiceContext) (types.Action, bool) {
	mapped, ok := categoryActions[hyp.Category]
	if !ok {
		return types.Action{}, false
	}
	if s.Runbooks != nil && !s.Runbooks.IsAllowed(mapped.actionType, hyp.Category, service) {
		return types.Action{}, false
	}

	riskScore := mathutil.Clamp(computeRiskScore(mapped.risk, hyp.ConfidenceScore, ctx.Tier), 0, 1)
	riskLevel := binRisk(riskScore)

	threshold := ctx.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	requiresApproval := riskLevel == types.RiskHigh || riskLevel == types.RiskCritical ||
		hyp.ConfidenceScore < threshold || riskLevel == types.RiskMedium || riskLevel == types.RiskLow

	return types.Action{
		IncidentID:       hyp.IncidentID,
		Type:             mapped.actionType,
		Name:             mapped.actionType,
		Description:      "Remediate " + hyp.Category + " on " + service,
		TargetService:    service,
		RiskLevel:        riskLevel,
		RiskScore:        riskScore,
		BlastRadius:      mapped.blast,
		RequiresApproval: requiresApproval,
		Parameters:       buildParameters(mapped.actionType, ctx),
		ExecutionMode:    types.ExecutionModeDryRun,
		Status:           types.ActionStatusPendingApproval,
	}, true
}

func computeRiskScore(risk types.RiskLevel, confidence float64, tier string) float64 {
	score := riskBase[risk]
	score += (1 - confidence) * 0.1
	switch tier {
	case "tier-1":
		score += 0.15
	case "tier-2":
		score += 0.05
	}
	return score
}

func binRisk(score float64) types.RiskLevel {
	switch {
	case score >= 0.9:
		return types.RiskCritical
	case score >= 0.7:
		return types.RiskHigh
	case score >= 0.4:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func buildParameters(actionType string, ctx ServiceContext) map[string]interface{} {
	switch actionType {
	case "scale_up":
		current := ctx.CurrentReplicas
		if current <= 0 {
			current = 1
		}
		return map[string]interface{}{
			"target_replicas": current + 1,
			"max_replicas":    current + 5,
		}
	case "scale_down":
		current := ctx.CurrentReplicas
		target := current - 1
		if target < 1 {
			target = 1
		}
		return map[string]interface{}{
			"target_replicas": target,
		}
	case "restart_pod":
		return map[string]interface{}{
			"graceful_shutdown_seconds": 30,
		}
	case "rollback_deployment":
		return map[string]interface{}{
			"revision": "previous",
		}
	default:
		return map[string]interface{}{}
	}
}
