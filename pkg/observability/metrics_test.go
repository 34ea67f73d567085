package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordIncidentCreated_IncrementsBySeverity(t *testing.T) {
	initial := testutil.ToFloat64(IncidentsCreatedTotal.WithLabelValues("critical"))
	RecordIncidentCreated("critical")
	after := testutil.ToFloat64(IncidentsCreatedTotal.WithLabelValues("critical"))
	if after != initial+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", initial, after)
	}
}

func TestRecordIncidentDeduplicated_IncrementsByMatchKind(t *testing.T) {
	initial := testutil.ToFloat64(IncidentsDeduplicatedTotal.WithLabelValues("fuzzy"))
	RecordIncidentDeduplicated("fuzzy")
	after := testutil.ToFloat64(IncidentsDeduplicatedTotal.WithLabelValues("fuzzy"))
	if after != initial+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", initial, after)
	}
}

func TestRecordAnalysisTask_ObservesDuration(t *testing.T) {
	before := sampleCount(t, AnalysisTaskDuration.WithLabelValues("resolved"))
	RecordAnalysisTask("resolved", 250*time.Millisecond)
	after := sampleCount(t, AnalysisTaskDuration.WithLabelValues("resolved"))
	if after != before+1 {
		t.Errorf("expected one more observation, got %d -> %d", before, after)
	}
}

func sampleCount(t *testing.T, observer prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := observer.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", observer)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("unexpected error writing metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordActionExecuted_IncrementsByTypeAndStatus(t *testing.T) {
	initial := testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues("restart_pod", "succeeded"))
	RecordActionExecuted("restart_pod", "succeeded")
	after := testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues("restart_pod", "succeeded"))
	if after != initial+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", initial, after)
	}
}

func TestRecordRateLimitDenied_IncrementsByLimiter(t *testing.T) {
	initial := testutil.ToFloat64(RateLimitDeniedTotal.WithLabelValues("api"))
	RecordRateLimitDenied("api")
	after := testutil.ToFloat64(RateLimitDeniedTotal.WithLabelValues("api"))
	if after != initial+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", initial, after)
	}
}

func TestRecordMonitorTick_ObservesDuration(t *testing.T) {
	before := sampleCount(t, MonitorTickDuration)
	RecordMonitorTick(2 * time.Second)
	after := sampleCount(t, MonitorTickDuration)
	if after != before+1 {
		t.Errorf("expected one more observation, got %d -> %d", before, after)
	}
}
