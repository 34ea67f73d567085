// Package analysis implements the out-of-band worker body invoked for
// each incident transitioning to "analyzing": metrics + detection,
// hypothesis generation, action selection, and the resulting incident
// state transition, all inside one transaction (§4.15).
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/action"
	"github.com/sentinelops/sentinel/pkg/blastradius"
	"github.com/sentinelops/sentinel/pkg/dependency"
	"github.com/sentinelops/sentinel/pkg/detector"
	"github.com/sentinelops/sentinel/pkg/hypothesis"
	"github.com/sentinelops/sentinel/pkg/incident"
	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

// DefaultMaxRetries is the number of attempts for retryable failures,
// including the first.
const DefaultMaxRetries = 3

// DefaultRetryDelay is the fixed delay between retries.
const DefaultRetryDelay = 10 * time.Second

// DefaultSoftTimeout is the per-task soft deadline; on expiry the task
// marks the incident FAILED and exits cleanly instead of leaving it
// stuck in analyzing.
const DefaultSoftTimeout = 90 * time.Second

// DefaultHardTimeout bounds the entire attempt, including the cleanup
// path; the host may terminate the process past this point.
const DefaultHardTimeout = 120 * time.Second

// MetricsSource is the minimal metrics dependency the task needs.
type MetricsSource interface {
	QueryRange(ctx context.Context, promQL string, start, end time.Time, step time.Duration) (types.MetricSeries, error)
}

// Task is the analysis worker body for one incident.
type Task struct {
	Session      *store.Session
	Incidents    *incident.Repository
	Hypotheses   *HypothesisRepository
	Actions      *ActionRepository
	Metrics      MetricsSource
	MetricQuery  string // promQL template with a single %s for the service
	Detector     *detector.Detector
	Generator     HypothesisGenerator
	Selector      *action.Selector
	Dependency    *dependency.Graph    // optional; nil falls back to medium criticality
	BlastRadius   *blastradius.Calculator // optional; nil skips blast-radius annotation
	ServiceCtx    hypothesis.ServiceContext
	ExecutionMode types.ExecutionMode
	Logger        *zap.Logger

	MaxRetries  int
	RetryDelay  time.Duration
	SoftTimeout time.Duration
	HardTimeout time.Duration
}

// Run retries runOnce up to MaxRetries times on retryable errors with a
// fixed delay, per §4.15's retry policy; structural/non-retryable errors
// fail immediately.
func (t *Task) Run(ctx context.Context, incidentID string) error {
	maxRetries := t.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	delay := t.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = t.runWithTimeouts(ctx, incidentID)
		if lastErr == nil {
			return nil
		}
		if !errors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < maxRetries {
			if t.Logger != nil {
				t.Logger.Warn("analysis task retrying after transient failure",
					zap.String("incident_id", incidentID), zap.Int("attempt", attempt), zap.Error(lastErr))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}

// runWithTimeouts composes the soft/hard timeout model: the hard timeout
// bounds the whole attempt (including the cleanup path below), the soft
// timeout bounds the happy-path work alone.
func (t *Task) runWithTimeouts(ctx context.Context, incidentID string) error {
	hardTimeout := t.HardTimeout
	if hardTimeout <= 0 {
		hardTimeout = DefaultHardTimeout
	}
	hardCtx, cancelHard := context.WithTimeout(ctx, hardTimeout)
	defer cancelHard()

	softTimeout := t.SoftTimeout
	if softTimeout <= 0 {
		softTimeout = DefaultSoftTimeout
	}
	softCtx, cancelSoft := context.WithTimeout(hardCtx, softTimeout)
	defer cancelSoft()

	err := t.runOnce(softCtx, incidentID)
	if err != nil && softCtx.Err() == context.DeadlineExceeded {
		if failErr := t.markFailed(hardCtx, incidentID); failErr != nil && t.Logger != nil {
			t.Logger.Error("failed to mark incident FAILED after soft-timeout expiry",
				zap.String("incident_id", incidentID), zap.Error(failErr))
		}
		return err
	}
	return err
}

// runOnce performs the transactional body of one analysis pass. Any
// failure after the incident is successfully locked sets the incident to
// FAILED and returns nil so the transaction commits that terminal state
// (§4.15 step 7: raising would roll back the commit and leave the
// incident stuck in analyzing).
func (t *Task) runOnce(ctx context.Context, incidentID string) error {
	return t.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		inc, found, err := t.Incidents.LockByID(ctx, tx, incidentID)
		if err != nil {
			return err
		}
		if !found {
			return errors.ValidationError("incident_id", "no incident with this id")
		}
		if inc.Status != types.IncidentStatusAnalyzing {
			return nil // idempotent: already processed by another attempt
		}

		if err := t.process(ctx, tx, inc); err != nil {
			if t.Logger != nil {
				t.Logger.Error("analysis task failed, marking incident FAILED",
					zap.String("incident_id", incidentID), zap.Error(err))
			}
			if _, transErr := t.Incidents.Transition(ctx, tx, incidentID, types.IncidentStatusFailed); transErr != nil {
				return transErr
			}
			return nil
		}
		return nil
	})
}

func (t *Task) process(ctx context.Context, tx *sqlx.Tx, inc types.Incident) error {
	anomalies, err := t.detectAnomalies(ctx, inc.AffectedService)
	if err != nil {
		return err
	}
	if len(anomalies) == 0 {
		_, err := t.Incidents.Transition(ctx, tx, inc.ID, types.IncidentStatusResolved)
		return err
	}

	raw, modelID, err := t.Generator.Generate(ctx, inc.AffectedService, anomalies, t.ServiceCtx)
	if err != nil {
		return err
	}

	ranked := hypothesis.Rank(inc.ID, raw.Hypotheses, anomalies, inc.AffectedService, nil, func(hypothesis.RawHypothesis) string { return "" })
	for i := range ranked {
		ranked[i].ModelID = modelID
	}
	if err := t.Hypotheses.InsertAll(ctx, tx, ranked); err != nil {
		return err
	}
	if len(ranked) == 0 {
		return nil
	}

	if err := t.annotateBlastRadius(ctx, tx, &inc); err != nil {
		return err
	}

	recommendedAction, ok := t.selectAction(ranked, inc)
	if !ok {
		return nil
	}
	recommendedAction.IncidentID = inc.ID
	recommendedAction.TargetService = inc.AffectedService
	recommendedAction.Status = types.ActionStatusPendingApproval
	recommendedAction.ExecutionMode = t.ExecutionMode

	if _, err := t.Actions.Insert(ctx, tx, recommendedAction); err != nil {
		return err
	}

	_, err = t.Incidents.Transition(ctx, tx, inc.ID, types.IncidentStatusPendingApproval)
	return err
}

// selectAction maps every ranked hypothesis onto its runbook-allowed
// candidate action and picks the lowest-adjusted-risk one, rather than
// blindly acting on the top hypothesis's category alone.
func (t *Task) selectAction(ranked []types.Hypothesis, inc types.Incident) (types.Action, bool) {
	serviceCtx := action.ServiceContext{
		Tier:                t.ServiceCtx.Tier,
		ConfidenceThreshold: action.DefaultConfidenceThreshold,
	}

	candidates := make([]types.Action, 0, len(ranked))
	confidences := make(map[string]float64, len(ranked))
	for _, h := range ranked {
		act, ok := t.Selector.Select(h, inc.AffectedService, serviceCtx)
		if !ok {
			continue
		}
		candidates = append(candidates, act)
		confidences[act.Type] = h.ConfidenceScore
	}
	if len(candidates) == 0 {
		return types.Action{}, false
	}

	criticality := types.CriticalityMedium
	if t.Dependency != nil {
		if node, ok := t.Dependency.Node(inc.AffectedService); ok {
			criticality = node.Criticality
		}
	}
	downtimeMinutes := time.Since(inc.DetectedAt).Minutes()

	rankedActions := action.Rank(candidates, action.DefaultRiskProfiles, criticality, downtimeMinutes, 0, confidences)
	picked, ok := action.Pick(rankedActions)
	if !ok {
		return types.Action{}, false
	}
	return picked.Action, true
}

func (t *Task) annotateBlastRadius(ctx context.Context, tx *sqlx.Tx, inc *types.Incident) error {
	if t.BlastRadius == nil {
		return nil
	}
	blast := t.BlastRadius.Calculate(ctx, inc.AffectedService)
	if inc.Context == nil {
		inc.Context = make(map[string]interface{})
	}
	inc.Context["blast_radius_level"] = string(blast.Level)
	inc.Context["blast_radius_score"] = blast.Score
	return t.Incidents.UpdateContext(ctx, tx, inc.ID, inc.Context)
}

func (t *Task) detectAnomalies(ctx context.Context, service string) ([]types.Anomaly, error) {
	if t.MetricQuery == "" || t.Metrics == nil {
		return nil, nil
	}
	now := time.Now()
	series, err := t.Metrics.QueryRange(ctx, fmt.Sprintf(t.MetricQuery, service), now.Add(-5*time.Minute), now, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return t.Detector.Detect(series), nil
}

// markFailed runs its own short transaction to force the incident into
// FAILED when the happy path didn't get a chance to.
func (t *Task) markFailed(ctx context.Context, incidentID string) error {
	return t.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		inc, found, err := t.Incidents.LockByID(ctx, tx, incidentID)
		if err != nil {
			return err
		}
		if !found || inc.Status.Terminal() {
			return nil
		}
		_, err = t.Incidents.Transition(ctx, tx, incidentID, types.IncidentStatusFailed)
		return err
	})
}
