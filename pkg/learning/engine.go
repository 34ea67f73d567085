package learning

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

// successThresholdHigh is the success_rate above which confidence_adjustment
// is boosted; successThresholdLow is the floor below which it is penalized.
const (
	successThresholdHigh = 0.8
	successThresholdLow  = 0.3
	adjustmentBoost      = 0.10
	adjustmentPenalty    = -0.10
)

// Engine tracks per-(service, category) outcome counters under a row lock,
// with an L1 in-memory cache kept in sync with committed values only —
// under load the cache is a read optimisation, the datastore row lock is
// authoritative (§4.16).
type Engine struct {
	Repo    *Repository
	Session *store.Session
	Logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]types.IncidentPattern
}

// New builds an Engine over an open Repository/Session pair.
func New(repo *Repository, session *store.Session, logger *zap.Logger) *Engine {
	return &Engine{
		Repo:    repo,
		Session: session,
		Logger:  logger,
		cache:   make(map[string]types.IncidentPattern),
	}
}

// Warmup loads every persisted pattern into the L1 cache, meant to run once
// at process startup; the cache ceiling is bounded by #services ×
// #categories, so no eviction policy is needed at this scale.
func (e *Engine) Warmup(ctx context.Context) error {
	patterns, err := e.Repo.All(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range patterns {
		e.cache[p.PatternID] = p
	}
	return nil
}

// Lookup returns the cached pattern for (service, category), if any. This
// is a read-optimisation path only — callers that need authoritative
// values under a race must go through RecordOutcome's row lock.
func (e *Engine) Lookup(service, category string) (types.IncidentPattern, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.cache[types.PatternID(service, category)]
	return p, ok
}

// RecordOutcome applies one incident outcome capture to the pattern keyed
// by (service, category): row-locks the pattern, recomputes occurrence
// count and success rate from the locked values, derives the confidence
// adjustment, persists, and refreshes the L1 cache to match the committed
// row (§4.16 steps 1-5).
func (e *Engine) RecordOutcome(ctx context.Context, service, category string, correct bool) (types.IncidentPattern, error) {
	patternID := types.PatternID(service, category)
	var result types.IncidentPattern

	err := e.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		existing, found, err := e.Repo.Lock(ctx, tx, patternID)
		if err != nil {
			return err
		}

		var updated types.IncidentPattern
		if !found {
			successRate := 0.0
			if correct {
				successRate = 1.0
			}
			updated = types.IncidentPattern{
				PatternID:       patternID,
				Name:            patternID,
				Category:        category,
				OccurrenceCount: 1,
				SuccessRate:     successRate,
			}
		} else {
			newCount := existing.OccurrenceCount + 1
			outcome := 0.0
			if correct {
				outcome = 1.0
			}
			newSuccess := (existing.SuccessRate*float64(existing.OccurrenceCount) + outcome) / float64(newCount)
			updated = existing
			updated.OccurrenceCount = newCount
			updated.SuccessRate = newSuccess
		}
		updated.ConfidenceAdjustment = confidenceAdjustment(updated.SuccessRate)

		if err := e.Repo.Upsert(ctx, tx, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return types.IncidentPattern{}, err
	}

	e.mu.Lock()
	e.cache[patternID] = result
	e.mu.Unlock()

	if e.Logger != nil {
		e.Logger.Debug("recorded pattern outcome",
			zap.String("pattern_id", patternID),
			zap.Int("occurrence_count", result.OccurrenceCount),
			zap.Float64("success_rate", result.SuccessRate))
	}
	return result, nil
}

func confidenceAdjustment(successRate float64) float64 {
	switch {
	case successRate > successThresholdHigh:
		return adjustmentBoost
	case successRate < successThresholdLow:
		return adjustmentPenalty
	default:
		return 0
	}
}
