package dedup

import (
	"strings"

	"github.com/sentinelops/sentinel/pkg/types"
)

// severityTable maps common raw source strings to the normalized scale.
var severityTable = map[string]types.Severity{
	"critical": types.SeverityCritical,
	"crit":     types.SeverityCritical,
	"fatal":    types.SeverityCritical,
	"p1":       types.SeverityCritical,
	"high":     types.SeverityHigh,
	"urgent":   types.SeverityHigh,
	"error":    types.SeverityHigh,
	"p2":       types.SeverityHigh,
	"warning":  types.SeverityMedium,
	"medium":   types.SeverityMedium,
	"p3":       types.SeverityMedium,
	"low":      types.SeverityLow,
	"minor":    types.SeverityLow,
	"p4":       types.SeverityLow,
	"info":     types.SeverityInfo,
	"informational": types.SeverityInfo,
}

// fuzzyKeywords is consulted when the raw string isn't in the exact table,
// matching by substring so sources like "CRITICAL_ALERT" still resolve.
var fuzzyKeywords = []struct {
	substr string
	sev    types.Severity
}{
	{"crit", types.SeverityCritical},
	{"fatal", types.SeverityCritical},
	{"urgent", types.SeverityHigh},
	{"error", types.SeverityHigh},
	{"warn", types.SeverityMedium},
	{"minor", types.SeverityLow},
	{"info", types.SeverityInfo},
}

// NormalizeSeverity maps a raw source severity string onto the canonical
// scale, defaulting to medium (and expecting the caller to log) for unknown
// values.
func NormalizeSeverity(raw string) types.Severity {
	key := strings.ToLower(strings.TrimSpace(raw))
	if sev, ok := severityTable[key]; ok {
		return sev
	}
	for _, fk := range fuzzyKeywords {
		if strings.Contains(key, fk.substr) {
			return fk.sev
		}
	}
	return types.SeverityMedium
}
