package blastradius

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sentinelops/sentinel/pkg/dependency"
	"github.com/sentinelops/sentinel/pkg/metrics"
	"github.com/sentinelops/sentinel/pkg/types"
)

func graphWithManyDownstream() *dependency.Graph {
	g := dependency.NewGraph()
	deps := []types.ServiceDependency{
		{Service: "database", Criticality: types.CriticalityCritical},
	}
	for i := 0; i < 8; i++ {
		deps = append(deps, types.ServiceDependency{
			Service:     "consumer-" + string(rune('a'+i)),
			DependsOn:   []string{"database"},
			Criticality: types.CriticalityMedium,
		})
	}
	g.Load(deps)
	return g
}

func TestCalculate_HighDownstreamAndVolumeYieldsHighScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if strings.Contains(query, "5..") {
			w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1,"0.2"]}]}}`))
			return
		}
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1,"150"]}]}}`))
	}))
	defer srv.Close()

	g := graphWithManyDownstream()
	m := metrics.New(srv.URL)
	calc := New(g, m)
	result := calc.Calculate(context.Background(), "database")

	if result.Level != LevelCritical && result.Level != LevelHigh {
		t.Errorf("expected high/critical blast level for many downstream + high volume, got %v (score=%v)", result.Level, result.Score)
	}
	if result.AffectedServicesCount != 9 {
		t.Errorf("expected 9 affected services (8 downstream + self), got %d", result.AffectedServicesCount)
	}
}

func TestCalculate_NoDownstreamYieldsLowScore(t *testing.T) {
	g := dependency.NewGraph()
	g.Load([]types.ServiceDependency{{Service: "leaf", Criticality: types.CriticalityLow}})
	calc := New(g, nil)
	result := calc.Calculate(context.Background(), "leaf")
	if result.Level != LevelMinimal && result.Level != LevelLow {
		t.Errorf("expected minimal/low blast level for leaf service, got %v", result.Level)
	}
	if result.RequestVolumePerSecond != metrics.DefaultRequestVolumeFallback {
		t.Errorf("expected fallback rps with nil metrics client, got %v", result.RequestVolumePerSecond)
	}
}

func TestShouldActImmediately(t *testing.T) {
	tests := []struct {
		level      Level
		confidence float64
		want       Recommendation
	}{
		{LevelCritical, 0.1, RecommendActNow},
		{LevelHigh, 0.75, RecommendActNow},
		{LevelHigh, 0.5, RecommendObserve},
		{LevelMedium, 0.85, RecommendActSoon},
		{LevelMedium, 0.5, RecommendObserve},
		{LevelLow, 0.99, RecommendObserve},
	}
	for _, tt := range tests {
		got := ShouldActImmediately(Result{Level: tt.level}, tt.confidence)
		if got != tt.want {
			t.Errorf("ShouldActImmediately(%v, %v) = %v, want %v", tt.level, tt.confidence, got, tt.want)
		}
	}
}

func TestUrgencyMultiplier_ClampedToFive(t *testing.T) {
	g := graphWithManyDownstream()
	calc := New(g, nil)
	result := calc.Calculate(context.Background(), "database")
	if result.UrgencyMultiplier > 5.0 || result.UrgencyMultiplier < 1.0 {
		t.Errorf("expected urgency multiplier in [1,5], got %v", result.UrgencyMultiplier)
	}
}
