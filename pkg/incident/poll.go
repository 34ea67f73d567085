package incident

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/types"
)

// ClaimDetected atomically finds the oldest DETECTED incident, transitions
// it to ANALYZING, and returns its id. SKIP LOCKED lets multiple worker
// processes poll the same table concurrently without blocking on each
// other's in-flight claim, the database-backed analogue of a queue's
// Dequeue for a standalone worker process that has no in-process channel
// to share with whatever produced the incident.
func (r *Repository) ClaimDetected(ctx context.Context) (string, bool, error) {
	var id string
	err := r.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		const query = `SELECT id FROM incidents WHERE status = $1
			ORDER BY detected_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`
		if err := tx.GetContext(ctx, &id, query, string(types.IncidentStatusDetected)); err != nil {
			if err == sql.ErrNoRows {
				id = ""
				return nil
			}
			return errors.DatabaseError("claim detected incident", err)
		}
		_, err := r.Transition(ctx, tx, id, types.IncidentStatusAnalyzing)
		return err
	})
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}
