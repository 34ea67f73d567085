package executor

import (
	"context"

	"github.com/sentinelops/sentinel/pkg/k8s"
)

// K8sAdapter satisfies OrchestratorClient by delegating to a *k8s.Client,
// translating its corev1.Pod results into the package-local PodRef shape so
// the executor contract stays independent of client-go types.
type K8sAdapter struct {
	Client *k8s.Client
}

func (a *K8sAdapter) DeploymentReplicas(ctx context.Context, namespace, name string) (int32, int32, error) {
	return a.Client.DeploymentReplicas(ctx, namespace, name)
}

func (a *K8sAdapter) DeploymentAvailable(ctx context.Context, namespace, name string) (bool, error) {
	return a.Client.DeploymentAvailable(ctx, namespace, name)
}

func (a *K8sAdapter) PodsForDeployment(ctx context.Context, namespace, deploymentName string) ([]PodRef, error) {
	pods, err := a.Client.PodsForDeployment(ctx, namespace, deploymentName)
	if err != nil {
		return nil, err
	}
	refs := make([]PodRef, len(pods))
	for i, p := range pods {
		refs[i] = PodRef{Name: p.Name}
	}
	return refs, nil
}

func (a *K8sAdapter) DeletePod(ctx context.Context, namespace, name string) error {
	return a.Client.DeletePod(ctx, namespace, name)
}

func (a *K8sAdapter) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	return a.Client.ScaleDeployment(ctx, namespace, name, replicas)
}

func (a *K8sAdapter) DeploymentImage(ctx context.Context, namespace, name string) (string, error) {
	return a.Client.DeploymentImage(ctx, namespace, name)
}

func (a *K8sAdapter) SetDeploymentImage(ctx context.Context, namespace, name, image string) error {
	return a.Client.SetDeploymentImage(ctx, namespace, name, image)
}
