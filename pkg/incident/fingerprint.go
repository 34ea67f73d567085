package incident

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// abbreviations is the small normalisation table applied before fuzzy
// matching so "db connection issue" and "database conn problem" land on
// comparable token sets.
var abbreviations = map[string]string{
	"db":   "database",
	"svc":  "service",
	"conn": "connection",
}

var punctuation = regexp.MustCompile(`[^\w\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// Fingerprint derives a stable identity for an incident from
// (lowercase service, lowercase description, sorted lowercase components).
func Fingerprint(service, description string, components []string) string {
	sorted := make([]string, len(components))
	copy(sorted, components)
	for i := range sorted {
		sorted[i] = strings.ToLower(sorted[i])
	}
	sort.Strings(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s", strings.ToLower(service), strings.ToLower(description))
	for _, c := range sorted {
		fmt.Fprintf(&b, "|%s", c)
	}

	h := xxhash.Sum64String(b.String())
	return fmt.Sprintf("%016x", h)
}

// Normalize lowercases text, strips punctuation, collapses whitespace, and
// expands known abbreviations token-by-token.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = punctuation.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(strings.TrimSpace(text), " ")

	tokens := strings.Split(text, " ")
	for i, tok := range tokens {
		if expanded, ok := abbreviations[tok]; ok {
			tokens[i] = expanded
		}
	}
	return strings.Join(tokens, " ")
}

// JaccardSimilarity computes token-set similarity between two normalised
// strings: |intersection| / |union|. Two empty strings are defined as
// dissimilar (0), not NaN.
func JaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Split(text, " ") {
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}
