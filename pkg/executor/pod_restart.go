package executor

import (
	"context"
	"time"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// OrchestratorClient is the narrow k8s-facing boundary the concrete
// executors depend on, satisfied by *pkg/k8s.Client in production.
type OrchestratorClient interface {
	DeploymentReplicas(ctx context.Context, namespace, name string) (current, ready int32, err error)
	DeploymentAvailable(ctx context.Context, namespace, name string) (bool, error)
	PodsForDeployment(ctx context.Context, namespace, deploymentName string) ([]PodRef, error)
	DeletePod(ctx context.Context, namespace, name string) error
	ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error
	DeploymentImage(ctx context.Context, namespace, name string) (string, error)
	SetDeploymentImage(ctx context.Context, namespace, name, image string) error
}

// PodRef is the minimal pod identity the executor needs; kept independent
// of corev1.Pod so this package doesn't need to import client-go types.
type PodRef struct {
	Name string
}

// minReplicasForRestart is the live-state precondition for a safe pod
// restart: enough replicas that deleting one doesn't take the service down.
const minReplicasForRestart = 2

// podSettleDelay is the brief wait after deleting a pod before reporting,
// per §4.10 "wait briefly; report".
var podSettleDelay = 2 * time.Second

// PodRestartExecutor deletes a specific pod, or the first pod matching a
// deployment's label selector, and lets its controller recreate it. Not
// rollbackable.
type PodRestartExecutor struct {
	Client OrchestratorClient
}

func (e *PodRestartExecutor) Validate(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) error {
	if err := ValidateIdentifier(target.Namespace); err != nil {
		return err
	}
	if err := ValidateIdentifier(target.Deployment); err != nil {
		return err
	}
	if target.PodName != "" {
		if err := ValidateIdentifier(target.PodName); err != nil {
			return err
		}
	}
	if dryRun || e.Client == nil {
		return nil
	}
	current, _, err := e.Client.DeploymentReplicas(ctx, target.Namespace, target.Deployment)
	if err != nil {
		return errors.FailedToWithDetails("validate pod restart preconditions", "executor", target.Deployment, err)
	}
	if current < minReplicasForRestart {
		return errors.ValidationError("replicas", "deployment must have at least 2 replicas to safely restart a pod")
	}
	available, err := e.Client.DeploymentAvailable(ctx, target.Namespace, target.Deployment)
	if err != nil {
		return errors.FailedToWithDetails("validate pod restart availability", "executor", target.Deployment, err)
	}
	if !available {
		return errors.ValidationError("availability", "deployment must be fully available before a pod restart")
	}
	return nil
}

func (e *PodRestartExecutor) Execute(ctx context.Context, target Target, params map[string]interface{}, dryRun bool) ExecutionResult {
	started := time.Now()
	if dryRun || e.Client == nil {
		return ExecutionResult{
			Status:      types.ActionStatusSucceeded,
			Message:     "pod restart validated syntactically (dry run)",
			StartedAt:   started,
			CompletedAt: time.Now(),
			DryRun:      true,
			Simulated:   e.Client == nil,
		}
	}

	podName := target.PodName
	if podName == "" {
		pods, err := e.Client.PodsForDeployment(ctx, target.Namespace, target.Deployment)
		if err != nil || len(pods) == 0 {
			return ExecutionResult{
				Status:      types.ActionStatusFailed,
				Message:     "no matching pod found",
				StartedAt:   started,
				CompletedAt: time.Now(),
				Error:       errString(err),
			}
		}
		podName = pods[0].Name
	}

	if err := e.Client.DeletePod(ctx, target.Namespace, podName); err != nil {
		return ExecutionResult{
			Status:      types.ActionStatusFailed,
			Message:     "failed to delete pod " + podName,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Error:       err.Error(),
		}
	}

	time.Sleep(podSettleDelay)

	return ExecutionResult{
		Status:      types.ActionStatusSucceeded,
		Message:     "restarted pod " + podName,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Details:     map[string]interface{}{"pod_name": podName},
	}
}

// Rollback is not applicable for pod restarts: a fresh pod cannot be
// "un-restarted".
func (e *PodRestartExecutor) Rollback(ctx context.Context, target Target, prior ExecutionResult) (ExecutionResult, bool) {
	return ExecutionResult{}, false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
