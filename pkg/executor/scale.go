package executor

import (
	"context"
	"time"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// ScaleExecutor patches a deployment's replica count. Rollback re-applies
// the previously recorded replica count.
type ScaleExecutor struct {
	Client OrchestratorClient
}

func scaleParams(params map[string]interface{}) (target, min, max int32, ok bool) {
	t, ok1 := toInt32(params["target_replicas"])
	mn, ok2 := toInt32(params["min_replicas"])
	mx, ok3 := toInt32(params["max_replicas"])
	if !ok2 {
		mn = 1
		ok2 = true
	}
	if !ok3 {
		mx = t
		ok3 = true
	}
	return t, mn, mx, ok1 && ok2 && ok3
}

func toInt32(v interface{}) (int32, bool) {
	switch n := v.(type) {
	case int:
		return int32(n), true
	case int32:
		return n, true
	case int64:
		return int32(n), true
	case float64:
		return int32(n), true
	default:
		return 0, false
	}
}

func (e *ScaleExecutor) Validate(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) error {
	if err := ValidateIdentifier(target.Namespace); err != nil {
		return err
	}
	if err := ValidateIdentifier(target.Deployment); err != nil {
		return err
	}
	t, min, max, ok := scaleParams(params)
	if !ok {
		return errors.ValidationError("target_replicas", "scale parameters must include a numeric target_replicas")
	}
	if !(min <= t && t <= max) {
		return errors.ValidationError("target_replicas", "target_replicas must satisfy min <= target <= max")
	}
	return nil
}

func (e *ScaleExecutor) Execute(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) ExecutionResult {
	started := time.Now()
	t, _, _, _ := scaleParams(params)

	if dryRun || e.Client == nil {
		return ExecutionResult{
			Status:      types.ActionStatusSucceeded,
			Message:     "scale validated syntactically (dry run)",
			StartedAt:   started,
			CompletedAt: time.Now(),
			DryRun:      true,
			Simulated:   e.Client == nil,
			Details:     map[string]interface{}{"target_replicas": t},
		}
	}

	priorReplicas, _, err := e.Client.DeploymentReplicas(ctx, target.Namespace, target.Deployment)
	if err != nil {
		return ExecutionResult{
			Status:      types.ActionStatusFailed,
			Message:     "failed to read current replica count",
			StartedAt:   started,
			CompletedAt: time.Now(),
			Error:       err.Error(),
		}
	}

	if err := e.Client.ScaleDeployment(ctx, target.Namespace, target.Deployment, t); err != nil {
		return ExecutionResult{
			Status:      types.ActionStatusFailed,
			Message:     "failed to scale deployment",
			StartedAt:   started,
			CompletedAt: time.Now(),
			Error:       err.Error(),
		}
	}

	return ExecutionResult{
		Status:      types.ActionStatusSucceeded,
		Message:     "scaled deployment to replicas",
		StartedAt:   started,
		CompletedAt: time.Now(),
		Details: map[string]interface{}{
			"target_replicas": t,
			"prior_replicas":  priorReplicas,
		},
	}
}

// Rollback re-executes a scale with the replica count recorded prior to the
// original execution.
func (e *ScaleExecutor) Rollback(ctx context.Context, target Target, prior ExecutionResult) (ExecutionResult, bool) {
	priorReplicas, ok := prior.Details["prior_replicas"]
	if !ok {
		return ExecutionResult{}, false
	}
	replicas, ok := toInt32(priorReplicas)
	if !ok {
		return ExecutionResult{}, false
	}
	result := e.Execute(ctx, target, map[string]interface{}{"target_replicas": replicas}, false)
	return result, true
}
