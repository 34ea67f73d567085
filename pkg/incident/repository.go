package incident

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

// row is the sqlx scan target for the incidents table.
type row struct {
	ID                 string         `db:"id"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	Status             string         `db:"status"`
	Severity           string         `db:"severity"`
	AffectedService    string         `db:"affected_service"`
	AffectedComponents string         `db:"affected_components"`
	DetectedAt         time.Time      `db:"detected_at"`
	ResolvedAt         sql.NullTime   `db:"resolved_at"`
	MetricsSnapshot    string         `db:"metrics_snapshot"`
	Context            string         `db:"context"`
	Fingerprint        string         `db:"fingerprint"`
	DuplicateCount     int            `db:"duplicate_count"`
	LastDuplicateAt    sql.NullTime   `db:"last_duplicate_at"`
}

// Repository persists incidents to PostgreSQL via sqlx over a pgx-backed
// connection pool, using row-level locks for the dedup critical sections.
type Repository struct {
	Session *store.Session
}

// NewRepository builds a Repository over an open Session.
func NewRepository(s *store.Session) *Repository {
	return &Repository{Session: s}
}

// LockExactCandidate acquires a row-level exclusive lock on the most
// recent non-terminal incident for service with the given fingerprint,
// detected within the lookback window. Returns found=false if none exists.
func (r *Repository) LockExactCandidate(ctx context.Context, tx *sqlx.Tx, service, fingerprint string, since time.Time) (types.Incident, bool, error) {
	const base = `SELECT id, title, description, status, severity, affected_service,
		affected_components, detected_at, resolved_at, metrics_snapshot, context,
		fingerprint, duplicate_count, last_duplicate_at
		FROM incidents
		WHERE affected_service = $1 AND fingerprint = $2 AND detected_at >= $3
		  AND status NOT IN ('resolved', 'failed', 'escalated')
		ORDER BY detected_at DESC LIMIT 1`
	query := store.RowLockQuery(base)

	var r0 row
	if err := tx.GetContext(ctx, &r0, query, service, fingerprint, since); err != nil {
		if err == sql.ErrNoRows {
			return types.Incident{}, false, nil
		}
		return types.Incident{}, false, errors.DatabaseError("lock exact candidate", err)
	}
	inc, err := fromRow(r0)
	return inc, true, err
}

// RecentCandidates returns up to 10 of the most recent non-terminal
// incidents for service detected within the lookback window, for fuzzy
// matching.
func (r *Repository) RecentCandidates(ctx context.Context, tx *sqlx.Tx, service string, since time.Time) ([]types.Incident, error) {
	const query = `SELECT id, title, description, status, severity, affected_service,
		affected_components, detected_at, resolved_at, metrics_snapshot, context,
		fingerprint, duplicate_count, last_duplicate_at
		FROM incidents
		WHERE affected_service = $1 AND detected_at >= $2
		  AND status NOT IN ('resolved', 'failed', 'escalated')
		ORDER BY detected_at DESC LIMIT 10`

	var rows []row
	if err := tx.SelectContext(ctx, &rows, query, service, since); err != nil {
		return nil, errors.DatabaseError("recent candidates", err)
	}
	out := make([]types.Incident, 0, len(rows))
	for _, r0 := range rows {
		inc, err := fromRow(r0)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

// LockByID re-acquires the row lock on a specific incident by id, used
// once the fuzzy match selects a candidate.
func (r *Repository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (types.Incident, bool, error) {
	const base = `SELECT id, title, description, status, severity, affected_service,
		affected_components, detected_at, resolved_at, metrics_snapshot, context,
		fingerprint, duplicate_count, last_duplicate_at
		FROM incidents WHERE id = $1`
	query := store.RowLockQuery(base)

	var r0 row
	if err := tx.GetContext(ctx, &r0, query, id); err != nil {
		if err == sql.ErrNoRows {
			return types.Incident{}, false, nil
		}
		return types.Incident{}, false, errors.DatabaseError("lock by id", err)
	}
	inc, err := fromRow(r0)
	return inc, true, err
}

// Create inserts a brand-new incident row.
func (r *Repository) Create(ctx context.Context, tx *sqlx.Tx, inc types.Incident) error {
	r0, err := toRow(inc)
	if err != nil {
		return err
	}
	const query = `INSERT INTO incidents
		(id, title, description, status, severity, affected_service,
		 affected_components, detected_at, resolved_at, metrics_snapshot, context,
		 fingerprint, duplicate_count, last_duplicate_at)
		VALUES (:id, :title, :description, :status, :severity, :affected_service,
		 :affected_components, :detected_at, :resolved_at, :metrics_snapshot, :context,
		 :fingerprint, :duplicate_count, :last_duplicate_at)`
	if _, err := tx.NamedExecContext(ctx, query, r0); err != nil {
		return errors.DatabaseError("create incident", err)
	}
	return nil
}

// MergeDuplicate updates an existing incident's merged fields in place:
// duplicate_count += 1, last_duplicate_at stamped, metrics_snapshot and
// context merged, severity escalated if higher. No new row is written.
func (r *Repository) MergeDuplicate(ctx context.Context, tx *sqlx.Tx, inc types.Incident) error {
	r0, err := toRow(inc)
	if err != nil {
		return err
	}
	const query = `UPDATE incidents SET
		severity = :severity, metrics_snapshot = :metrics_snapshot, context = :context,
		duplicate_count = :duplicate_count, last_duplicate_at = :last_duplicate_at
		WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, r0); err != nil {
		return errors.DatabaseError("merge duplicate incident", err)
	}
	return nil
}

// UpdateContext persists inc's free-form Context map in place, for
// lifecycle metadata (e.g. a computed blast radius) that accrues after the
// incident row is first created, without disturbing its status.
func (r *Repository) UpdateContext(ctx context.Context, tx *sqlx.Tx, id string, context map[string]interface{}) error {
	data, err := json.Marshal(context)
	if err != nil {
		return errors.ParseError("context", "json", err)
	}
	const query = `UPDATE incidents SET context = :context WHERE id = :id`
	row := map[string]interface{}{"id": id, "context": string(data)}
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return errors.DatabaseError("update incident context", err)
	}
	return nil
}

func fromRow(r0 row) (types.Incident, error) {
	var components []string
	if r0.AffectedComponents != "" {
		if err := json.Unmarshal([]byte(r0.AffectedComponents), &components); err != nil {
			return types.Incident{}, errors.ParseError("affected_components", "json", err)
		}
	}
	var metrics map[string]float64
	if r0.MetricsSnapshot != "" {
		if err := json.Unmarshal([]byte(r0.MetricsSnapshot), &metrics); err != nil {
			return types.Incident{}, errors.ParseError("metrics_snapshot", "json", err)
		}
	}
	var ctxMap map[string]interface{}
	if r0.Context != "" {
		if err := json.Unmarshal([]byte(r0.Context), &ctxMap); err != nil {
			return types.Incident{}, errors.ParseError("context", "json", err)
		}
	}

	inc := types.Incident{
		ID:                 r0.ID,
		Title:              r0.Title,
		Description:        r0.Description,
		Status:             types.IncidentStatus(r0.Status),
		Severity:           types.Severity(r0.Severity),
		AffectedService:    r0.AffectedService,
		AffectedComponents: components,
		DetectedAt:         r0.DetectedAt,
		MetricsSnapshot:    metrics,
		Context:            ctxMap,
		Fingerprint:        r0.Fingerprint,
		DuplicateCount:     r0.DuplicateCount,
	}
	if r0.ResolvedAt.Valid {
		t := r0.ResolvedAt.Time
		inc.ResolvedAt = &t
	}
	if r0.LastDuplicateAt.Valid {
		t := r0.LastDuplicateAt.Time
		inc.LastDuplicateAt = &t
	}
	return inc, nil
}

func toRow(inc types.Incident) (row, error) {
	components, err := json.Marshal(inc.AffectedComponents)
	if err != nil {
		return row{}, errors.ParseError("affected_components", "json", err)
	}
	metrics, err := json.Marshal(inc.MetricsSnapshot)
	if err != nil {
		return row{}, errors.ParseError("metrics_snapshot", "json", err)
	}
	ctxJSON, err := json.Marshal(inc.Context)
	if err != nil {
		return row{}, errors.ParseError("context", "json", err)
	}

	r0 := row{
		ID:                 inc.ID,
		Title:              inc.Title,
		Description:        inc.Description,
		Status:             string(inc.Status),
		Severity:           string(inc.Severity),
		AffectedService:    inc.AffectedService,
		AffectedComponents: string(components),
		DetectedAt:         inc.DetectedAt,
		MetricsSnapshot:    string(metrics),
		Context:            string(ctxJSON),
		Fingerprint:        inc.Fingerprint,
		DuplicateCount:     inc.DuplicateCount,
	}
	if inc.ResolvedAt != nil {
		r0.ResolvedAt = sql.NullTime{Time: *inc.ResolvedAt, Valid: true}
	}
	if inc.LastDuplicateAt != nil {
		r0.LastDuplicateAt = sql.NullTime{Time: *inc.LastDuplicateAt, Valid: true}
	}
	return r0, nil
}
