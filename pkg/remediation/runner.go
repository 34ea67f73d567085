// Package remediation is the glue between an approved Action and the
// executor/verifier/learning packages: it drives validate -> execute ->
// verify -> record-outcome for one action and writes back the action's
// and incident's terminal states, closing the loop described in §2's
// happy-path data flow ("approval gate -> executor -> verifier ->
// learning engine") that no single component owns on its own.
package remediation

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/analysis"
	"github.com/sentinelops/sentinel/pkg/executor"
	"github.com/sentinelops/sentinel/pkg/incident"
	"github.com/sentinelops/sentinel/pkg/learning"
	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
	"github.com/sentinelops/sentinel/pkg/verifier"
)

// Runner executes one approved action end to end and feeds its outcome
// back into the pattern-learning store.
type Runner struct {
	Session   *store.Session
	Actions   *analysis.ActionRepository
	Incidents *incident.Repository
	Executors *executor.Registry
	Verifier  *verifier.Verifier
	Learning  *learning.Engine
	Namespace string // k8s namespace every action target resolves under
	Logger    *zap.Logger
}

// Outcome summarizes what happened to one action for the caller (tests,
// metrics, logs).
type Outcome struct {
	Action       types.Action
	Execution    executor.ExecutionResult
	Verification verifier.Result
	RolledBack   bool
}

// Run locks action, transitions it approved -> executing, runs the
// four-phase executor contract, verifies the result against live metrics,
// records the outcome against the learning engine, and transitions the
// action and its incident to a terminal state. Any structural failure
// (unknown action type, illegal transition) fails fast without touching
// the orchestrator; any execution failure still reaches a terminal state
// so the action never gets stuck mid-lifecycle.
func (r *Runner) Run(ctx context.Context, actionID string) (Outcome, error) {
	var act types.Action
	var incidentID string

	err := r.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		locked, found, err := r.Actions.LockByID(ctx, tx, actionID)
		if err != nil {
			return err
		}
		if !found {
			return errors.ValidationError("action_id", "no action with this id")
		}
		if !executor.CanTransitionAction(locked.Status, types.ActionStatusExecuting) {
			return errors.ValidationError("status", "action is not in a state that can begin execution")
		}
		if err := r.Actions.UpdateStatus(ctx, tx, actionID, types.ActionStatusExecuting); err != nil {
			return err
		}
		act = locked
		act.Status = types.ActionStatusExecuting
		incidentID = locked.IncidentID
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	exec, ok := r.Executors.Get(act.Type)
	if !ok {
		return r.finishFailed(ctx, act, incidentID, errors.ValidationError("action_type", "no executor registered for "+act.Type))
	}

	target := executor.Target{Namespace: r.Namespace, Deployment: act.TargetService}
	dryRun := act.ExecutionMode == types.ExecutionModeDryRun

	if err := exec.Validate(ctx, target, act.Parameters, dryRun); err != nil {
		return r.finishFailed(ctx, act, incidentID, err)
	}

	result := exec.Execute(ctx, target, act.Parameters, dryRun)

	var verification verifier.Result
	if r.Verifier != nil {
		verification = r.Verifier.Verify(ctx, act.TargetService, result, nil)
	}

	rolledBack := false
	if result.Status == types.ActionStatusSucceeded && verification.Recommendation == verifier.RecommendationRollback {
		if rollbackResult, applicable := exec.Rollback(ctx, target, result); applicable {
			result = rollbackResult
			rolledBack = true
		}
	}

	terminal := terminalStatus(result, rolledBack)
	correct := terminal == types.ActionStatusSucceeded

	outcome := Outcome{Action: act, Execution: result, Verification: verification, RolledBack: rolledBack}

	err = r.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		if err := r.Actions.UpdateStatus(ctx, tx, act.ID, terminal); err != nil {
			return err
		}
		incidentTerminal := types.IncidentStatusResolved
		if terminal == types.ActionStatusFailed {
			incidentTerminal = types.IncidentStatusFailed
		}
		_, err := r.Incidents.Transition(ctx, tx, incidentID, incidentTerminal)
		return err
	})
	if err != nil {
		return outcome, err
	}
	outcome.Action.Status = terminal

	if r.Learning != nil {
		if _, lerr := r.Learning.RecordOutcome(ctx, act.TargetService, categoryFromAction(act), correct); lerr != nil && r.Logger != nil {
			r.Logger.Warn("failed to record learning outcome", zap.String("action_id", act.ID), zap.Error(lerr))
		}
	}

	return outcome, nil
}

// finishFailed transitions both the action and its incident to FAILED when
// a structural error occurs before or during execution, so the lifecycle
// never gets stuck (mirrors §4.15 step 7's "fail the row, not the caller").
func (r *Runner) finishFailed(ctx context.Context, act types.Action, incidentID string, cause error) (Outcome, error) {
	txErr := r.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		if err := r.Actions.UpdateStatus(ctx, tx, act.ID, types.ActionStatusFailed); err != nil {
			return err
		}
		_, err := r.Incidents.Transition(ctx, tx, incidentID, types.IncidentStatusFailed)
		return err
	})
	act.Status = types.ActionStatusFailed
	outcome := Outcome{Action: act, Execution: executor.ExecutionResult{
		Status:      types.ActionStatusFailed,
		Message:     cause.Error(),
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
		Error:       cause.Error(),
	}}
	if txErr != nil {
		return outcome, txErr
	}
	return outcome, nil
}

func terminalStatus(result executor.ExecutionResult, rolledBack bool) types.ActionStatus {
	if rolledBack {
		return types.ActionStatusRolledBack
	}
	if result.Status == types.ActionStatusSucceeded {
		return types.ActionStatusSucceeded
	}
	return types.ActionStatusFailed
}

// categoryFromAction stands in for the originating hypothesis category,
// which the Action row doesn't carry. Decision (see DESIGN.md): key the
// learning pattern off the action type rather than extend the Action
// schema the spec doesn't ask for.
func categoryFromAction(act types.Action) string {
	return act.Type
}
