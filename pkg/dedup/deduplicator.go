// Package dedup implements alert-level deduplication: fingerprinting,
// severity normalisation, and windowed collapsing of duplicate alerts.
package dedup

import (
	"sort"
	"time"

	"github.com/sentinelops/sentinel/pkg/types"
)

// DefaultWindow is the default deduplication window.
const DefaultWindow = 5 * time.Minute

// DedupedAlert is one collapsed window of identical-fingerprint alerts.
type DedupedAlert struct {
	RepresentativeAlert types.Alert
	Count                int
	FirstSeen            time.Time
	LastSeen              time.Time
	MaxSeverity           types.Severity
}

// Deduplicator collapses a batch of alerts into deduped windows.
type Deduplicator struct {
	Window time.Duration
	MaxAge time.Duration // 0 = no cutoff
}

// New builds a Deduplicator with the given window, falling back to
// DefaultWindow when window <= 0.
func New(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{Window: window}
}

// Dedupe groups alerts by fingerprint, then partitions each group into
// windows ordered by timestamp: a new window opens whenever the next alert
// falls more than Window after the current window's first alert. The result
// is independent of the input alerts' order (property #3 in spec §8).
func (d *Deduplicator) Dedupe(alerts []types.Alert) []DedupedAlert {
	now := time.Now()

	groups := make(map[string][]types.Alert)
	for _, a := range alerts {
		if d.MaxAge > 0 && now.Sub(a.Timestamp) > d.MaxAge {
			continue
		}
		fp := a.Fingerprint
		if fp == "" {
			fp = Fingerprint(a)
		}
		groups[fp] = append(groups[fp], a)
	}

	var out []DedupedAlert
	for _, group := range groups {
		sorted := make([]types.Alert, len(group))
		copy(sorted, group)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})

		var windowStart time.Time
		var current *DedupedAlert
		for _, a := range sorted {
			if current == nil || a.Timestamp.Sub(windowStart) > d.Window {
				if current != nil {
					out = append(out, *current)
				}
				windowStart = a.Timestamp
				current = &DedupedAlert{
					RepresentativeAlert: a,
					Count:                1,
					FirstSeen:            a.Timestamp,
					LastSeen:              a.Timestamp,
					MaxSeverity:           a.Severity,
				}
				continue
			}
			current.Count++
			current.LastSeen = a.Timestamp
			current.MaxSeverity = types.MaxSeverity(current.MaxSeverity, a.Severity)
		}
		if current != nil {
			out = append(out, *current)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}
