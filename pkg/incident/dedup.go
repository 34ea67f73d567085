package incident

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sentinelops/sentinel/pkg/store"
	"github.com/sentinelops/sentinel/pkg/types"
)

// fuzzyThreshold is the minimum Jaccard token similarity to treat two
// incident descriptions as the same underlying issue.
const fuzzyThreshold = 0.7

// severityLookback bounds how far back exact/fuzzy candidate search looks,
// scaled by how urgent the new incident's severity is.
var severityLookback = map[types.Severity]time.Duration{
	types.SeverityCritical: 15 * time.Minute,
	types.SeverityHigh:     30 * time.Minute,
	types.SeverityMedium:   60 * time.Minute,
	types.SeverityLow:      120 * time.Minute,
	types.SeverityInfo:     120 * time.Minute,
}

// Result reports whether CreateOrUpdate inserted a new incident or merged
// into an existing one.
type Result struct {
	Incident types.Incident
	Created  bool
}

// Deduplicator implements the two-layer exact + fuzzy incident dedup
// algorithm, each step holding a row lock for the duration of the
// enclosing transaction to prevent split-brain inserts across replicas.
type Deduplicator struct {
	Repo    *Repository
	Session *store.Session
	NewID   func() string
}

// New builds a Deduplicator backed by session.
func New(session *store.Session) *Deduplicator {
	return &Deduplicator{
		Repo:    NewRepository(session),
		Session: session,
		NewID:   func() string { return uuid.New().String() },
	}
}

// CreateOrUpdate runs the full dedup algorithm inside one transaction and
// either inserts candidate as a new incident or merges it into an
// existing match. candidate.Fingerprint is recomputed here from Service/
// Description/AffectedComponents, so callers need not set it.
func (d *Deduplicator) CreateOrUpdate(ctx context.Context, candidate types.Incident) (Result, error) {
	candidate.Fingerprint = Fingerprint(candidate.AffectedService, candidate.Description, candidate.AffectedComponents)

	var result Result
	err := d.Session.Tx(ctx, func(tx *sqlx.Tx) error {
		lookback := severityLookback[candidate.Severity]
		if lookback == 0 {
			lookback = severityLookback[types.SeverityLow]
		}
		since := candidate.DetectedAt.Add(-lookback)

		if match, found, err := d.Repo.LockExactCandidate(ctx, tx, candidate.AffectedService, candidate.Fingerprint, since); err != nil {
			return err
		} else if found {
			merged := mergeInto(match, candidate)
			if err := d.Repo.MergeDuplicate(ctx, tx, merged); err != nil {
				return err
			}
			result = Result{Incident: merged, Created: false}
			return nil
		}

		candidates, err := d.Repo.RecentCandidates(ctx, tx, candidate.AffectedService, since)
		if err != nil {
			return err
		}
		normalizedNew := Normalize(candidate.Description)
		for _, c := range candidates {
			if JaccardSimilarity(normalizedNew, Normalize(c.Description)) >= fuzzyThreshold {
				locked, found, err := d.Repo.LockByID(ctx, tx, c.ID)
				if err != nil {
					return err
				}
				if !found {
					continue
				}
				merged := mergeInto(locked, candidate)
				if err := d.Repo.MergeDuplicate(ctx, tx, merged); err != nil {
					return err
				}
				result = Result{Incident: merged, Created: false}
				return nil
			}
		}

		if candidate.ID == "" {
			candidate.ID = d.NewID()
		}
		if err := d.Repo.Create(ctx, tx, candidate); err != nil {
			return err
		}
		result = Result{Incident: candidate, Created: true}
		return nil
	})
	return result, err
}

// mergeInto applies the §4.13 merge rules: metrics and context from the
// new observation are merged over the existing record, duplicate count
// increments, last_duplicate_at is stamped, and severity only escalates.
func mergeInto(existing, candidate types.Incident) types.Incident {
	merged := existing
	merged.MetricsSnapshot = mergeFloatMaps(existing.MetricsSnapshot, candidate.MetricsSnapshot)
	merged.Context = mergeAnyMaps(existing.Context, candidate.Context)
	merged.DuplicateCount = existing.DuplicateCount + 1
	now := candidate.DetectedAt
	merged.LastDuplicateAt = &now
	if types.MaxSeverity(existing.Severity, candidate.Severity) != existing.Severity {
		merged.Severity = candidate.Severity
	}
	return merged
}

func mergeFloatMaps(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func mergeAnyMaps(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
