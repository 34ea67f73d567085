// Package hypothesis builds reasoning prompts for the LLM collaborator and
// computes the deterministic, explainable confidence score for each
// candidate hypothesis it returns, per §4.5.
package hypothesis

import (
	"fmt"
	"strings"

	"github.com/sentinelops/sentinel/pkg/types"
)

// SystemPrompt sets the "expert SRE" role and structured-output contract.
const SystemPrompt = `You are an expert Site Reliability Engineer investigating a production incident.
Given the anomalies and context below, produce 2-5 candidate hypotheses explaining the root cause.
For each hypothesis provide: a description, a category, supporting evidence with relevance scores,
and your reasoning. Respond with a single JSON object matching the requested schema. Do not include
a confidence score — confidence is computed separately.`

// ServiceContext is the optional context block appended to the prompt.
type ServiceContext struct {
	Dependencies      []string
	RecentDeployments []string
	Tier              string
	Team              string
}

// BuildPrompt renders the structured user prompt for a hypothesis-generation
// call: service name, numbered anomalies, optional context, and an explicit
// instruction to produce 2-5 hypotheses.
func BuildPrompt(service string, anomalies []types.Anomaly, ctx *ServiceContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Service: %s\n\n", service)
	fmt.Fprintf(&b, "Anomalies (%d):\n", len(anomalies))
	for i, a := range anomalies {
		fmt.Fprintf(&b, "%d. metric=%s current=%.4f expected=%.4f deviation_sigma=%.2f confidence=%.2f timestamp=%s",
			i+1, a.MetricName, a.CurrentValue, a.ExpectedValue, a.DeviationSigma, a.Confidence, a.Timestamp.Format("2006-01-02T15:04:05Z"))
		if len(a.Labels) > 0 {
			b.WriteString(" labels={")
			first := true
			for k, v := range a.Labels {
				if !first {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s=%s", k, v)
				first = false
			}
			b.WriteString("}")
		}
		b.WriteString("\n")
	}

	if ctx != nil {
		b.WriteString("\nService context:\n")
		if len(ctx.Dependencies) > 0 {
			fmt.Fprintf(&b, "- dependencies: %s\n", strings.Join(ctx.Dependencies, ", "))
		}
		if len(ctx.RecentDeployments) > 0 {
			fmt.Fprintf(&b, "- recent deployments: %s\n", strings.Join(ctx.RecentDeployments, ", "))
		}
		if ctx.Tier != "" {
			fmt.Fprintf(&b, "- tier: %s\n", ctx.Tier)
		}
		if ctx.Team != "" {
			fmt.Fprintf(&b, "- team: %s\n", ctx.Team)
		}
	}

	b.WriteString("\nProduce 2 to 5 hypotheses ranked by plausibility, each with evidence and reasoning.\n")
	return b.String()
}

// RawHypothesis is the shape the model is expected to emit per hypothesis
// (no confidence score — that's computed downstream).
type RawHypothesis struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Evidence    []types.Evidence `json:"evidence"`
	Reasoning   string          `json:"reasoning"`
}

// RawResponse is the top-level structured-output schema.
type RawResponse struct {
	Hypotheses       []RawHypothesis `json:"hypotheses"`
	OverallAssessment string         `json:"overall_assessment"`
}
