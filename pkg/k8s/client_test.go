package k8s

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func int32ptr(v int32) *int32 { return &v }

func testDeployment(name string, replicas, ready int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32ptr(replicas),
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": name}},
		},
		Status: appsv1.DeploymentStatus{ReadyReplicas: ready},
	}
}

func testPod(name, deployment string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{"app": deployment},
		},
	}
}

func TestDeploymentReplicas(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("api", 3, 3))
	c := NewClient(cs)
	current, ready, err := c.DeploymentReplicas(context.Background(), "default", "api")
	if err != nil {
		t.Fatalf("DeploymentReplicas: %v", err)
	}
	if current != 3 || ready != 3 {
		t.Errorf("expected 3/3, got %d/%d", current, ready)
	}
}

func TestScaleDeployment(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("api", 3, 3))
	c := NewClient(cs)
	if err := c.ScaleDeployment(context.Background(), "default", "api", 5); err != nil {
		t.Fatalf("ScaleDeployment: %v", err)
	}
	current, _, err := c.DeploymentReplicas(context.Background(), "default", "api")
	if err != nil {
		t.Fatalf("DeploymentReplicas: %v", err)
	}
	if current != 5 {
		t.Errorf("expected replicas updated to 5, got %d", current)
	}
}

func TestPodsForDeployment(t *testing.T) {
	cs := fake.NewSimpleClientset(
		testDeployment("api", 2, 2),
		testPod("api-abc", "api"),
		testPod("api-def", "api"),
		testPod("other-xyz", "other"),
	)
	c := NewClient(cs)
	pods, err := c.PodsForDeployment(context.Background(), "default", "api")
	if err != nil {
		t.Fatalf("PodsForDeployment: %v", err)
	}
	if len(pods) != 2 {
		t.Fatalf("expected 2 pods, got %d", len(pods))
	}
}

func TestDeletePod_NotFoundIsNotAnError(t *testing.T) {
	cs := fake.NewSimpleClientset()
	c := NewClient(cs)
	if err := c.DeletePod(context.Background(), "default", "ghost"); err != nil {
		t.Errorf("expected no error deleting missing pod, got %v", err)
	}
}

func TestDeploymentAvailable(t *testing.T) {
	cs := fake.NewSimpleClientset(testDeployment("api", 3, 3), testDeployment("degraded", 3, 1))
	c := NewClient(cs)

	ok, err := c.DeploymentAvailable(context.Background(), "default", "api")
	if err != nil || !ok {
		t.Errorf("expected api to be available, got ok=%v err=%v", ok, err)
	}
	ok, err = c.DeploymentAvailable(context.Background(), "default", "degraded")
	if err != nil || ok {
		t.Errorf("expected degraded to be unavailable, got ok=%v err=%v", ok, err)
	}
}
