// Package learning implements pattern-outcome tracking: a row-locked
// confidence-adjustment counter per (service, category) pattern, backed by
// an L1 in-memory read cache that is only ever refreshed from a committed
// transaction (§4.16).
package learning

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/sentinelops/sentinel/internal/errors"
	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

type row struct {
	PatternID            string  `db:"pattern_id"`
	Name                 string  `db:"name"`
	Category             string  `db:"category"`
	SignalIndicators     string  `db:"signal_indicators"`
	ConfidenceAdjustment float64 `db:"confidence_adjustment"`
	OccurrenceCount      int     `db:"occurrence_count"`
	SuccessRate          float64 `db:"success_rate"`
}

// Repository persists IncidentPattern rows keyed by pattern_id.
type Repository struct {
	Session *store.Session
}

// NewRepository builds a Repository over an open Session.
func NewRepository(s *store.Session) *Repository {
	return &Repository{Session: s}
}

// Lock acquires a row-level exclusive lock on the pattern row, returning
// found=false if no row exists yet for this pattern_id.
func (r *Repository) Lock(ctx context.Context, tx *sqlx.Tx, patternID string) (types.IncidentPattern, bool, error) {
	base := `SELECT pattern_id, name, category, signal_indicators,
		confidence_adjustment, occurrence_count, success_rate
		FROM incident_patterns WHERE pattern_id = $1`
	query := store.RowLockQuery(base)

	var r0 row
	if err := tx.GetContext(ctx, &r0, query, patternID); err != nil {
		if err == sql.ErrNoRows {
			return types.IncidentPattern{}, false, nil
		}
		return types.IncidentPattern{}, false, errors.DatabaseError("lock pattern", err)
	}
	pat, err := fromRow(r0)
	return pat, true, err
}

// Upsert inserts a new pattern row or overwrites an existing one by
// pattern_id, used by both fresh-pattern creation and outcome updates.
func (r *Repository) Upsert(ctx context.Context, tx *sqlx.Tx, pat types.IncidentPattern) error {
	r0, err := toRow(pat)
	if err != nil {
		return err
	}
	const query = `INSERT INTO incident_patterns
		(pattern_id, name, category, signal_indicators, confidence_adjustment,
		 occurrence_count, success_rate)
		VALUES (:pattern_id, :name, :category, :signal_indicators, :confidence_adjustment,
		 :occurrence_count, :success_rate)
		ON CONFLICT (pattern_id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			signal_indicators = EXCLUDED.signal_indicators,
			confidence_adjustment = EXCLUDED.confidence_adjustment,
			occurrence_count = EXCLUDED.occurrence_count,
			success_rate = EXCLUDED.success_rate`
	if _, err := tx.NamedExecContext(ctx, query, r0); err != nil {
		return errors.DatabaseError("upsert pattern", err)
	}
	return nil
}

// All returns every persisted pattern, for L1 cache warmup at startup.
func (r *Repository) All(ctx context.Context) ([]types.IncidentPattern, error) {
	const query = `SELECT pattern_id, name, category, signal_indicators,
		confidence_adjustment, occurrence_count, success_rate
		FROM incident_patterns`
	var rows []row
	if err := r.Session.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.DatabaseError("load all patterns", err)
	}
	out := make([]types.IncidentPattern, 0, len(rows))
	for _, r0 := range rows {
		pat, err := fromRow(r0)
		if err != nil {
			return nil, err
		}
		out = append(out, pat)
	}
	return out, nil
}

func fromRow(r0 row) (types.IncidentPattern, error) {
	var indicators []string
	if r0.SignalIndicators != "" {
		if err := json.Unmarshal([]byte(r0.SignalIndicators), &indicators); err != nil {
			return types.IncidentPattern{}, errors.ParseError("signal_indicators", "json", err)
		}
	}
	return types.IncidentPattern{
		PatternID:            r0.PatternID,
		Name:                 r0.Name,
		Category:             r0.Category,
		SignalIndicators:     indicators,
		ConfidenceAdjustment: r0.ConfidenceAdjustment,
		OccurrenceCount:      r0.OccurrenceCount,
		SuccessRate:          r0.SuccessRate,
	}, nil
}

func toRow(pat types.IncidentPattern) (row, error) {
	indicators, err := json.Marshal(pat.SignalIndicators)
	if err != nil {
		return row{}, errors.ParseError("signal_indicators", "json", err)
	}
	return row{
		PatternID:            pat.PatternID,
		Name:                 pat.Name,
		Category:             pat.Category,
		SignalIndicators:     string(indicators),
		ConfidenceAdjustment: pat.ConfidenceAdjustment,
		OccurrenceCount:      pat.OccurrenceCount,
		SuccessRate:          pat.SuccessRate,
	}, nil
}
