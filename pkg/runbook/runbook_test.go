package runbook

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
runbooks:
  - id: rb-memory-leak-payments
    symptom: memory_leak
    category: memory_leak
    service: payments
    allowed_actions:
      - action_type: restart_pod
        approval_required: true
        risk_level: medium
  - id: rb-memory-leak-default
    symptom: memory_leak
    category: memory_leak
    allowed_actions:
      - action_type: restart_pod
        approval_required: true
        risk_level: medium
  - id: rb-cpu-spike-default
    symptom: cpu_spike
    category: cpu_spike
    allowed_actions:
      - action_type: scale_up
        approval_required: false
        risk_level: low
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "runbooks.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write sample config: %v", err)
	}
	return path
}

func TestLoad_ExactServicePreferredOverWildcard(t *testing.T) {
	path := writeSample(t)
	reg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rb, ok := reg.GetRunbook("memory_leak", "payments")
	if !ok {
		t.Fatal("expected runbook match for payments")
	}
	if rb.ID != "rb-memory-leak-payments" {
		t.Errorf("expected exact-service runbook, got %s", rb.ID)
	}
}

func TestLoad_FallsBackToWildcard(t *testing.T) {
	path := writeSample(t)
	reg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rb, ok := reg.GetRunbook("memory_leak", "some-other-service")
	if !ok {
		t.Fatal("expected wildcard fallback match")
	}
	if rb.ID != "rb-memory-leak-default" {
		t.Errorf("expected wildcard runbook, got %s", rb.ID)
	}
}

func TestIsAllowed(t *testing.T) {
	path := writeSample(t)
	reg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reg.IsAllowed("restart_pod", "memory_leak", "payments") {
		t.Error("expected restart_pod to be allowed for memory_leak/payments")
	}
	if reg.IsAllowed("rollback_deployment", "memory_leak", "payments") {
		t.Error("rollback_deployment should not be allowed for memory_leak/payments")
	}
	if reg.IsAllowed("scale_up", "unknown_category", "payments") {
		t.Error("unknown category should never allow any action")
	}
}

func TestGetAllowedActions_NoMatch(t *testing.T) {
	path := writeSample(t)
	reg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if actions := reg.GetAllowedActions("database_issue", "payments"); actions != nil {
		t.Errorf("expected nil actions for unmatched category, got %v", actions)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/runbooks.yaml", nil); err == nil {
		t.Error("expected error loading missing file")
	}
}
