// Package blastradius estimates the scope and urgency of an incident from
// downstream topology and live request/error metrics, per §4.8.
package blastradius

import (
	"context"
	"time"

	"github.com/sentinelops/sentinel/pkg/dependency"
	"github.com/sentinelops/sentinel/pkg/mathutil"
	"github.com/sentinelops/sentinel/pkg/metrics"
	"github.com/sentinelops/sentinel/pkg/types"
)

// Level is the coarse blast-radius tier.
type Level string

const (
	LevelMinimal  Level = "minimal"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Urgency base multipliers per level, per §4.8.
var urgencyBase = map[Level]float64{
	LevelMinimal:  1.0,
	LevelLow:      1.5,
	LevelMedium:   2.5,
	LevelHigh:     3.5,
	LevelCritical: 5.0,
}

// DefaultUsersPerRPS and DefaultRevenuePerUserHour are configurable
// business constants used to translate traffic into an impact estimate.
const (
	DefaultUsersPerRPS          = 12.0
	DefaultRevenuePerUserHour   = 0.08
	evaluationWindow            = 5 * time.Minute
)

// Result is the computed blast radius for an incident.
type Result struct {
	Level                    Level
	Score                    float64
	AffectedServicesCount    int
	DownstreamServices       []string
	RequestVolumePerSecond   float64
	ErrorPropagationPct      float64
	EstimatedUsersImpacted   float64
	RevenueImpactPerHour     float64
	UrgencyMultiplier        float64
}

// Calculator computes blast radius from topology + live metrics.
type Calculator struct {
	Graph               *dependency.Graph
	Metrics             *metrics.Client
	UsersPerRPS         float64
	RevenuePerUserHour  float64
}

// New builds a Calculator with spec-default business constants.
func New(graph *dependency.Graph, metricsClient *metrics.Client) *Calculator {
	return &Calculator{
		Graph:              graph,
		Metrics:            metricsClient,
		UsersPerRPS:        DefaultUsersPerRPS,
		RevenuePerUserHour: DefaultRevenuePerUserHour,
	}
}

// Calculate computes the blast radius for an incident on service.
func (c *Calculator) Calculate(ctx context.Context, service string) Result {
	downstream := c.Graph.Downstream(service)

	rps := metrics.DefaultRequestVolumeFallback
	if c.Metrics != nil {
		rps = c.Metrics.RequestVolume(ctx, service, evaluationWindow)
	}

	errorPropagation := c.errorPropagationFraction(ctx, downstream)

	usersPerRPS := c.UsersPerRPS
	if usersPerRPS <= 0 {
		usersPerRPS = DefaultUsersPerRPS
	}
	revenuePerUserHour := c.RevenuePerUserHour
	if revenuePerUserHour <= 0 {
		revenuePerUserHour = DefaultRevenuePerUserHour
	}
	users := rps * usersPerRPS
	revenue := users * revenuePerUserHour

	criticality := c.Graph.CriticalityScore(service)

	downstreamNorm := mathutil.Min([]float64{1.0, float64(len(downstream)) / 10})
	volumeNorm := mathutil.Min([]float64{1.0, rps / 100})

	score := downstreamNorm*0.30 + volumeNorm*0.25 + errorPropagation*0.25 + criticality*0.20
	score = mathutil.Clamp(score, 0, 1)

	level := levelFor(score)
	urgency := mathutil.Clamp(urgencyBase[level]+score*0.5, 1.0, 5.0)

	return Result{
		Level:                  level,
		Score:                  score,
		AffectedServicesCount:  len(downstream) + 1,
		DownstreamServices:     downstream,
		RequestVolumePerSecond: rps,
		ErrorPropagationPct:    errorPropagation * 100,
		EstimatedUsersImpacted: users,
		RevenueImpactPerHour:   revenue,
		UrgencyMultiplier:      urgency,
	}
}

func (c *Calculator) errorPropagationFraction(ctx context.Context, downstream []string) float64 {
	if len(downstream) == 0 || c.Metrics == nil {
		return 0
	}
	elevated := 0
	for _, svc := range downstream {
		if c.Metrics.ErrorRate5xx(ctx, svc, evaluationWindow) > 0.05 {
			elevated++
		}
	}
	return float64(elevated) / float64(len(downstream))
}

func levelFor(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	case score >= 0.2:
		return LevelLow
	default:
		return LevelMinimal
	}
}

// Recommendation is the should-act-immediately decision, per §4.8.
type Recommendation string

const (
	RecommendActNow  Recommendation = "act_now"
	RecommendActSoon Recommendation = "act_soon"
	RecommendObserve Recommendation = "observe"
)

// ShouldActImmediately decides urgency from blast level and hypothesis
// confidence.
func ShouldActImmediately(blast Result, confidence float64) Recommendation {
	switch {
	case blast.Level == LevelCritical:
		return RecommendActNow
	case blast.Level == LevelHigh && confidence >= 0.7:
		return RecommendActNow
	case blast.Level == LevelMedium && confidence >= 0.8:
		return RecommendActSoon
	default:
		return RecommendObserve
	}
}
