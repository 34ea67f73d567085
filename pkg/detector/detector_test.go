package detector

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/pkg/types"
)

func flatSeries(name string, n int, value float64) types.MetricSeries {
	points := make([]types.MetricPoint, n)
	for i := range points {
		points[i] = types.MetricPoint{Timestamp: float64(i), Value: value}
	}
	return types.MetricSeries{MetricName: name, Points: points}
}

func TestDetect_InsufficientData(t *testing.T) {
	series := flatSeries("cpu_usage", 2, 50.0)
	d := New(3.0, zap.NewNop())
	if got := d.Detect(series); got != nil {
		t.Errorf("expected nil for <3 points, got %v", got)
	}
}

func TestDetect_FlatBaselineNoAnomaly(t *testing.T) {
	series := flatSeries("cpu_usage", 21, 50.0)
	d := New(3.0, zap.NewNop())
	anomalies := d.Detect(series)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 result, got %d", len(anomalies))
	}
	if anomalies[0].IsAnomaly {
		t.Errorf("identical final value on zero-sigma baseline should not anomaly")
	}
}

func TestDetect_SingleSpike(t *testing.T) {
	series := flatSeries("request_latency_ms", 20, 50.0)
	series.Points = append(series.Points, types.MetricPoint{Timestamp: 20, Value: 200.0})
	d := New(3.0, zap.NewNop())
	anomalies := d.Detect(series)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly result, got %d", len(anomalies))
	}
	a := anomalies[0]
	if !a.IsAnomaly {
		t.Fatalf("expected spike to be flagged as anomaly")
	}
	if a.DeviationSigma <= 3.0 {
		t.Errorf("expected deviation_sigma > threshold, got %v", a.DeviationSigma)
	}
	if a.Confidence <= 0.5 {
		t.Errorf("expected confidence > 0.5, got %v", a.Confidence)
	}
	if a.Category != "latency_spike" {
		t.Errorf("expected category latency_spike, got %q", a.Category)
	}
}

func TestDetect_NaNRejected(t *testing.T) {
	series := flatSeries("cpu_usage", 5, 50.0)
	series.Points[4].Value = math.NaN()
	d := New(3.0, zap.NewNop())
	if got := d.Detect(series); got != nil {
		t.Errorf("expected nil for NaN last point, got %v", got)
	}
}

func TestDetect_ZeroSigmaOrderOfMagnitudeShift(t *testing.T) {
	series := flatSeries("queue_depth", 10, 5.0)
	series.Points = append(series.Points, types.MetricPoint{Timestamp: 10, Value: 500.0})
	d := New(3.0, zap.NewNop())
	anomalies := d.Detect(series)
	if !anomalies[0].IsAnomaly {
		t.Errorf("expected an order-of-magnitude shift on a flat baseline to be flagged")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		metric   string
		current  float64
		expected float64
		want     string
	}{
		{"http_errors_total", 100, 10, "error_spike"},
		{"http_errors_total", 1, 10, "recovery"},
		{"p99_latency_ms", 900, 100, "latency_spike"},
		{"heap_usage_bytes", 900, 100, "memory_leak"},
		{"cpu_usage_pct", 95, 10, "cpu_spike"},
		{"requests_total", 1000, 10, "traffic_spike"},
		{"requests_total", 1, 1000, "traffic_drop"},
		{"something_else", 1, 1, "metric_anomaly"},
	}
	for _, tt := range tests {
		if got := categorize(tt.metric, tt.current, tt.expected); got != tt.want {
			t.Errorf("categorize(%q) = %q, want %q", tt.metric, got, tt.want)
		}
	}
}
