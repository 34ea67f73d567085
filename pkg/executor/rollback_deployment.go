package executor

import (
	"context"
	"time"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// RollbackDeploymentExecutor reverts a deployment to a known-good
// container image. Unlike a native "rollout undo", it restores an
// explicit target image rather than the previous ReplicaSet revision,
// since OrchestratorClient intentionally doesn't track revision history.
type RollbackDeploymentExecutor struct {
	Client OrchestratorClient
}

func rollbackImage(params map[string]interface{}) (string, bool) {
	image, ok := params["image"].(string)
	return image, ok && image != ""
}

func (e *RollbackDeploymentExecutor) Validate(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) error {
	if err := ValidateIdentifier(target.Namespace); err != nil {
		return err
	}
	if err := ValidateIdentifier(target.Deployment); err != nil {
		return err
	}
	if _, ok := rollbackImage(params); !ok {
		return errors.ValidationError("image", "rollback requires a target image")
	}
	if dryRun || e.Client == nil {
		return nil
	}
	available, err := e.Client.DeploymentAvailable(ctx, target.Namespace, target.Deployment)
	if err != nil {
		return errors.FailedToWithDetails("validate rollback preconditions", "executor", target.Deployment, err)
	}
	if !available {
		return errors.ValidationError("availability", "deployment must be fully available before a rollback")
	}
	return nil
}

func (e *RollbackDeploymentExecutor) Execute(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) ExecutionResult {
	started := time.Now()
	targetImage, _ := rollbackImage(params)

	if dryRun || e.Client == nil {
		return ExecutionResult{
			Status:      types.ActionStatusSucceeded,
			Message:     "rollback validated syntactically (dry run)",
			StartedAt:   started,
			CompletedAt: time.Now(),
			DryRun:      true,
			Simulated:   e.Client == nil,
			Details:     map[string]interface{}{"target_image": targetImage},
		}
	}

	priorImage, err := e.Client.DeploymentImage(ctx, target.Namespace, target.Deployment)
	if err != nil {
		return ExecutionResult{
			Status:      types.ActionStatusFailed,
			Message:     "failed to read current deployment image",
			StartedAt:   started,
			CompletedAt: time.Now(),
			Error:       err.Error(),
		}
	}

	if err := e.Client.SetDeploymentImage(ctx, target.Namespace, target.Deployment, targetImage); err != nil {
		return ExecutionResult{
			Status:      types.ActionStatusFailed,
			Message:     "failed to roll back deployment image",
			StartedAt:   started,
			CompletedAt: time.Now(),
			Error:       err.Error(),
		}
	}

	return ExecutionResult{
		Status:      types.ActionStatusSucceeded,
		Message:     "rolled back deployment to " + targetImage,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Details: map[string]interface{}{
			"target_image": targetImage,
			"prior_image":  priorImage,
		},
	}
}

// Rollback re-applies the image that was live before the original
// rollback ran, undoing an over-correction.
func (e *RollbackDeploymentExecutor) Rollback(ctx context.Context, target Target, prior ExecutionResult) (ExecutionResult, bool) {
	priorImage, ok := prior.Details["prior_image"].(string)
	if !ok || priorImage == "" {
		return ExecutionResult{}, false
	}
	result := e.Execute(ctx, target, map[string]interface{}{"image": priorImage}, false)
	return result, true
}
