package hypothesis

import (
	"testing"
	"time"

	"github.com/sentinelops/sentinel/pkg/dependency"
	"github.com/sentinelops/sentinel/pkg/types"
)

func TestScore_NoEvidenceNoAnomaliesFallsBackToBaseOnly(t *testing.T) {
	in := ScoreInput{
		Hypothesis: RawHypothesis{Category: "error_spike"},
	}
	got := Score(in)
	want := mustClamp(weightBase * categoryBaseScores["error_spike"])
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func mustClamp(v float64) float64 {
	if v < confidenceFloor {
		return confidenceFloor
	}
	if v > confidenceCeiling {
		return confidenceCeiling
	}
	return v
}

func TestScore_UnknownCategoryUsesDefaultBase(t *testing.T) {
	in := ScoreInput{Hypothesis: RawHypothesis{Category: "totally-unknown"}}
	got := Score(in)
	want := mustClamp(weightBase * defaultCategoryBase)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestScore_EvidenceAndAnomaliesIncreaseConfidence(t *testing.T) {
	bare := Score(ScoreInput{Hypothesis: RawHypothesis{Category: "memory_leak"}})
	rich := Score(ScoreInput{
		Hypothesis: RawHypothesis{
			Category: "memory_leak",
			Evidence: []types.Evidence{
				{SignalType: "metric", Relevance: 0.9},
				{SignalType: "log", Relevance: 0.8},
			},
		},
		Anomalies: []types.Anomaly{
			{Confidence: 0.9, DeviationSigma: 5.0},
		},
	})
	if rich <= bare {
		t.Errorf("expected richer evidence to raise confidence above bare base: bare=%v rich=%v", bare, rich)
	}
}

func TestScore_TopologyBoostAppliedForUpstreamCause(t *testing.T) {
	g := dependency.NewGraph()
	g.Load([]types.ServiceDependency{
		{Service: "frontend", DependsOn: []string{"payments"}},
		{Service: "payments"},
	})
	without := Score(ScoreInput{
		Hypothesis:      RawHypothesis{Category: "error_spike"},
		AffectedService: "frontend",
	})
	with := Score(ScoreInput{
		Hypothesis:        RawHypothesis{Category: "error_spike"},
		AffectedService:   "frontend",
		HypothesisedCause: "payments",
		Graph:             g,
	})
	if with <= without {
		t.Errorf("expected topology boost to raise confidence: without=%v with=%v", without, with)
	}
}

func TestScore_ClampedToRange(t *testing.T) {
	in := ScoreInput{
		Hypothesis: RawHypothesis{
			Category: "error_spike",
			Evidence: []types.Evidence{
				{SignalType: "metric", Relevance: 1.0},
				{SignalType: "log", Relevance: 1.0},
				{SignalType: "trace", Relevance: 1.0},
				{SignalType: "event", Relevance: 1.0},
			},
		},
		Anomalies: []types.Anomaly{{Confidence: 1.0, DeviationSigma: 20}},
	}
	got := Score(in)
	if got > confidenceCeiling || got < confidenceFloor {
		t.Errorf("expected score within [%v, %v], got %v", confidenceFloor, confidenceCeiling, got)
	}
}

func TestRank_SortsDescendingWithDenseRanks(t *testing.T) {
	raw := []RawHypothesis{
		{Category: "database_issue"},   // base 0.60
		{Category: "error_spike"},      // base 0.85
		{Category: "network_issue"},    // base 0.55
	}
	ranked := Rank("inc-1", raw, nil, "api", nil, nil)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked hypotheses, got %d", len(ranked))
	}
	if ranked[0].Category != "error_spike" {
		t.Errorf("expected error_spike ranked first, got %s", ranked[0].Category)
	}
	for i, h := range ranked {
		if h.Rank != i+1 {
			t.Errorf("expected dense rank %d at index %d, got %d", i+1, i, h.Rank)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].ConfidenceScore > ranked[i-1].ConfidenceScore {
			t.Errorf("expected descending confidence order at index %d", i)
		}
	}
}

func TestBuildPrompt_IncludesAnomaliesAndContext(t *testing.T) {
	anomalies := []types.Anomaly{
		{MetricName: "request_latency_ms", CurrentValue: 500, ExpectedValue: 50, DeviationSigma: 8, Confidence: 0.9, Timestamp: time.Now()},
	}
	ctx := &ServiceContext{Dependencies: []string{"database"}, Tier: "tier-1"}
	prompt := BuildPrompt("api", anomalies, ctx)
	if prompt == "" {
		t.Fatal("expected non-empty prompt")
	}
	if !contains(prompt, "request_latency_ms") || !contains(prompt, "database") || !contains(prompt, "tier-1") {
		t.Errorf("expected prompt to reference anomaly metric and context, got: %s", prompt)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
