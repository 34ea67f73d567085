// Package k8s is a thin wrapper over k8s.io/client-go providing exactly the
// operations the executor needs against pods and deployments: delete pod,
// list pods by label, read/patch deployment replica count, and deployment
// readiness. It intentionally exposes none of client-go's generality.
package k8s

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/sentinelops/sentinel/internal/errors"
)

// Client wraps kubernetes.Interface with the narrow operation set the
// executor package needs.
type Client struct {
	clientset kubernetes.Interface
}

// NewClient wraps an existing kubernetes.Interface (typically built from
// in-cluster or kubeconfig rest.Config by the caller at startup).
func NewClient(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// DeploymentReplicas returns the current and ready replica counts for a
// deployment.
func (c *Client) DeploymentReplicas(ctx context.Context, namespace, name string) (current, ready int32, err error) {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return 0, 0, errors.FailedToWithDetails("read deployment", "k8s", namespace+"/"+name, err)
	}
	if dep.Spec.Replicas != nil {
		current = *dep.Spec.Replicas
	}
	return current, dep.Status.ReadyReplicas, nil
}

// ScaleDeployment patches a deployment's replica count.
func (c *Client) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return errors.FailedToWithDetails("read deployment for scale", "k8s", namespace+"/"+name, err)
	}
	dep.Spec.Replicas = &replicas
	if _, err := c.clientset.AppsV1().Deployments(namespace).Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return errors.FailedToWithDetails("scale deployment", "k8s", namespace+"/"+name, err)
	}
	return nil
}

// PodsForDeployment lists the pods matching a deployment's label selector.
func (c *Client) PodsForDeployment(ctx context.Context, namespace, deploymentName string) ([]corev1.Pod, error) {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, deploymentName, metav1.GetOptions{})
	if err != nil {
		return nil, errors.FailedToWithDetails("read deployment for pod lookup", "k8s", namespace+"/"+deploymentName, err)
	}
	selector := metav1.FormatLabelSelector(dep.Spec.Selector)
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, errors.FailedToWithDetails("list pods", "k8s", namespace+"/"+deploymentName, err)
	}
	return pods.Items, nil
}

// DeletePod deletes a single pod by name, letting its controller recreate it.
func (c *Client) DeletePod(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return errors.FailedToWithDetails("delete pod", "k8s", namespace+"/"+name, err)
	}
	return nil
}

// DeploymentImage returns the image of a deployment's first container,
// used as the "prior" value a rollback restores on failure.
func (c *Client) DeploymentImage(ctx context.Context, namespace, name string) (string, error) {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", errors.FailedToWithDetails("read deployment image", "k8s", namespace+"/"+name, err)
	}
	containers := dep.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return "", errors.FailedToWithDetails("read deployment image", "k8s", namespace+"/"+name, nil)
	}
	return containers[0].Image, nil
}

// SetDeploymentImage patches the image of a deployment's first container,
// the narrow primitive a rollback_deployment action needs: client-go
// doesn't expose "rollout undo" directly, and tracking full ReplicaSet
// revision history is out of scope for this package's deliberately thin
// surface.
func (c *Client) SetDeploymentImage(ctx context.Context, namespace, name, image string) error {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return errors.FailedToWithDetails("read deployment for image rollback", "k8s", namespace+"/"+name, err)
	}
	if len(dep.Spec.Template.Spec.Containers) == 0 {
		return errors.FailedToWithDetails("set deployment image", "k8s", namespace+"/"+name, nil)
	}
	dep.Spec.Template.Spec.Containers[0].Image = image
	if _, err := c.clientset.AppsV1().Deployments(namespace).Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return errors.FailedToWithDetails("set deployment image", "k8s", namespace+"/"+name, err)
	}
	return nil
}

// DeploymentAvailable reports whether a deployment's pods are fully ready
// (status.ReadyReplicas == spec.Replicas, both > 0).
func (c *Client) DeploymentAvailable(ctx context.Context, namespace, name string) (bool, error) {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return false, errors.FailedToWithDetails("read deployment availability", "k8s", namespace+"/"+name, err)
	}
	want := int32(0)
	if dep.Spec.Replicas != nil {
		want = *dep.Spec.Replicas
	}
	return want > 0 && dep.Status.ReadyReplicas == want, nil
}
