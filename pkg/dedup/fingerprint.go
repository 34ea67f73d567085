package dedup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/sentinelops/sentinel/pkg/types"
)

// excludedLabelKeys are stripped before hashing because they vary per
// instance/replica/scrape without changing the logical identity of an alert.
var excludedLabelKeys = map[string]bool{
	"instance":   true,
	"pod":        true,
	"timestamp":  true,
	"alertstate": true,
}

// Fingerprint derives a stable identity for an alert from
// (service, name, labels minus {instance, pod, timestamp, alertstate}).
func Fingerprint(a types.Alert) string {
	keys := make([]string, 0, len(a.Labels))
	for k := range a.Labels {
		if !excludedLabelKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s", a.Service, a.Name)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, a.Labels[k])
	}

	h := xxhash.Sum64String(b.String())
	return fmt.Sprintf("%016x", h)
}
