package incident

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// Transition moves an incident to next under its row lock, serialising
// concurrent transition attempts on the same incident (§5: "within one
// incident, lifecycle transitions are serialised by row lock").
func (r *Repository) Transition(ctx context.Context, tx *sqlx.Tx, id string, next types.IncidentStatus) (types.Incident, error) {
	inc, found, err := r.LockByID(ctx, tx, id)
	if err != nil {
		return types.Incident{}, err
	}
	if !found {
		return types.Incident{}, errors.ValidationError("incident_id", "no incident with this id")
	}
	if !inc.Status.CanTransition(next) {
		return types.Incident{}, errors.ValidationError("status", "illegal transition from "+string(inc.Status)+" to "+string(next))
	}

	inc.Status = next
	if next == types.IncidentStatusResolved {
		now := time.Now()
		inc.ResolvedAt = &now
	}
	const query = `UPDATE incidents SET status = :status, resolved_at = :resolved_at WHERE id = :id`
	r0, err := toRow(inc)
	if err != nil {
		return types.Incident{}, err
	}
	if _, err := tx.NamedExecContext(ctx, query, r0); err != nil {
		return types.Incident{}, errors.DatabaseError("transition incident", err)
	}
	return inc, nil
}
