package analysis

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

// HypothesisRepository persists ranked hypotheses for an incident.
type HypothesisRepository struct{}

// NewHypothesisRepository builds a HypothesisRepository.
func NewHypothesisRepository() *HypothesisRepository {
	return &HypothesisRepository{}
}

// InsertAll writes one row per hypothesis, in rank order, inside tx.
func (r *HypothesisRepository) InsertAll(ctx context.Context, tx *sqlx.Tx, hyps []types.Hypothesis) error {
	const query = `INSERT INTO hypotheses
		(incident_id, description, category, confidence_score, rank, evidence,
		 reasoning, model_id, prompt_tokens, completion_tokens, supporting_signals)
		VALUES (:incident_id, :description, :category, :confidence_score, :rank, :evidence,
		 :reasoning, :model_id, :prompt_tokens, :completion_tokens, :supporting_signals)`

	for _, h := range hyps {
		evidence, err := json.Marshal(h.Evidence)
		if err != nil {
			return errors.ParseError("evidence", "json", err)
		}
		signals, err := json.Marshal(h.SupportingSignals)
		if err != nil {
			return errors.ParseError("supporting_signals", "json", err)
		}
		row := map[string]interface{}{
			"incident_id":        h.IncidentID,
			"description":        h.Description,
			"category":           h.Category,
			"confidence_score":   h.ConfidenceScore,
			"rank":               h.Rank,
			"evidence":           string(evidence),
			"reasoning":          h.Reasoning,
			"model_id":           h.ModelID,
			"prompt_tokens":      h.PromptTokens,
			"completion_tokens":  h.CompletionTokens,
			"supporting_signals": string(signals),
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return errors.DatabaseError("insert hypothesis", err)
		}
	}
	return nil
}

// ActionRepository persists the recommended action for an incident.
type ActionRepository struct {
	NewID func() string
}

// NewActionRepository builds an ActionRepository.
func NewActionRepository() *ActionRepository {
	return &ActionRepository{NewID: func() string { return uuid.New().String() }}
}

// Insert writes a new action row in its initial status and returns the
// generated id.
func (r *ActionRepository) Insert(ctx context.Context, tx *sqlx.Tx, action types.Action) (string, error) {
	if action.ID == "" {
		action.ID = r.NewID()
	}
	params, err := json.Marshal(action.Parameters)
	if err != nil {
		return "", errors.ParseError("parameters", "json", err)
	}

	const query = `INSERT INTO actions
		(id, incident_id, type, name, description, target_service, target_resource,
		 risk_level, risk_score, blast_radius, requires_approval, parameters,
		 execution_mode, status)
		VALUES (:id, :incident_id, :type, :name, :description, :target_service, :target_resource,
		 :risk_level, :risk_score, :blast_radius, :requires_approval, :parameters,
		 :execution_mode, :status)`
	row := map[string]interface{}{
		"id":                action.ID,
		"incident_id":       action.IncidentID,
		"type":              action.Type,
		"name":              action.Name,
		"description":       action.Description,
		"target_service":    action.TargetService,
		"target_resource":   action.TargetResource,
		"risk_level":        string(action.RiskLevel),
		"risk_score":        action.RiskScore,
		"blast_radius":      string(action.BlastRadius),
		"requires_approval": action.RequiresApproval,
		"parameters":        string(params),
		"execution_mode":    string(action.ExecutionMode),
		"status":            string(action.Status),
	}
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return "", errors.DatabaseError("insert action", err)
	}
	return action.ID, nil
}

// actionRow is the sqlx scan target for the actions table.
type actionRow struct {
	ID               string  `db:"id"`
	IncidentID       string  `db:"incident_id"`
	Type             string  `db:"type"`
	Name             string  `db:"name"`
	Description      string  `db:"description"`
	TargetService    string  `db:"target_service"`
	TargetResource   string  `db:"target_resource"`
	RiskLevel        string  `db:"risk_level"`
	RiskScore        float64 `db:"risk_score"`
	BlastRadius      string  `db:"blast_radius"`
	RequiresApproval bool    `db:"requires_approval"`
	Parameters       string  `db:"parameters"`
	ExecutionMode    string  `db:"execution_mode"`
	Status           string  `db:"status"`
}

// LockByID acquires a row-level exclusive lock on the action identified by
// id, so the remediation runner is the single writer for its lifecycle
// transitions (§4.11; the same row-lock discipline as pkg/incident).
func (r *ActionRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (types.Action, bool, error) {
	const base = `SELECT id, incident_id, type, name, description, target_service,
		target_resource, risk_level, risk_score, blast_radius, requires_approval,
		parameters, execution_mode, status FROM actions WHERE id = $1`
	query := store.RowLockQuery(base)

	var r0 actionRow
	if err := tx.GetContext(ctx, &r0, query, id); err != nil {
		if err == sql.ErrNoRows {
			return types.Action{}, false, nil
		}
		return types.Action{}, false, errors.DatabaseError("lock action by id", err)
	}
	action, err := fromActionRow(r0)
	return action, true, err
}

// UpdateStatus transitions action id to next, guarded by the caller having
// already validated the move against executor.CanTransitionAction.
func (r *ActionRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, next types.ActionStatus) error {
	const query = `UPDATE actions SET status = :status WHERE id = :id`
	row := map[string]interface{}{"id": id, "status": string(next)}
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return errors.DatabaseError("update action status", err)
	}
	return nil
}

// ListApprovedIDs returns up to limit ids of actions awaiting execution,
// ordered by id, run outside any transaction: the execution loop re-locks
// each id individually when it actually attempts to run it, so a stale
// read here only risks a redundant, safely-rejected attempt, not a
// double-execution.
func (r *ActionRepository) ListApprovedIDs(ctx context.Context, db *sqlx.DB, limit int) ([]string, error) {
	const query = `SELECT id FROM actions WHERE status = $1 ORDER BY id ASC LIMIT $2`
	var ids []string
	if err := db.SelectContext(ctx, &ids, query, string(types.ActionStatusApproved), limit); err != nil {
		return nil, errors.DatabaseError("list approved actions", err)
	}
	return ids, nil
}

func fromActionRow(r0 actionRow) (types.Action, error) {
	var params map[string]interface{}
	if r0.Parameters != "" {
		if err := json.Unmarshal([]byte(r0.Parameters), &params); err != nil {
			return types.Action{}, errors.ParseError("parameters", "json", err)
		}
	}
	return types.Action{
		ID:               r0.ID,
		IncidentID:       r0.IncidentID,
		Type:             r0.Type,
		Name:             r0.Name,
		Description:      r0.Description,
		TargetService:    r0.TargetService,
		TargetResource:   r0.TargetResource,
		RiskLevel:        types.RiskLevel(r0.RiskLevel),
		RiskScore:        r0.RiskScore,
		BlastRadius:      types.RiskLevel(r0.BlastRadius),
		RequiresApproval: r0.RequiresApproval,
		Parameters:       params,
		ExecutionMode:    types.ExecutionMode(r0.ExecutionMode),
		Status:           types.ActionStatus(r0.Status),
	}, nil
}
