package analysis

import (
	"context"

	"github.com/sentinelops/sentinel/pkg/hypothesis"
	"github.com/sentinelops/sentinel/pkg/llm"
	"github.com/sentinelops/sentinel/pkg/types"
)

// HypothesisGenerator produces candidate explanations for a set of
// anomalies observed on service, narrowed to an interface so the worker
// can be tested without a live language-model backend.
type HypothesisGenerator interface {
	Generate(ctx context.Context, service string, anomalies []types.Anomaly, serviceCtx hypothesis.ServiceContext) (hypothesis.RawResponse, string, error)
}

// LLMGenerator implements HypothesisGenerator over pkg/llm.Client,
// building the reasoning prompt and parsing its structured response.
type LLMGenerator struct {
	Client *llm.Client
}

// NewLLMGenerator builds an LLMGenerator over client.
func NewLLMGenerator(client *llm.Client) *LLMGenerator {
	return &LLMGenerator{Client: client}
}

// Generate returns the parsed hypothesis set plus the model id used, so
// the caller can stamp it onto each persisted hypothesis row.
func (g *LLMGenerator) Generate(ctx context.Context, service string, anomalies []types.Anomaly, serviceCtx hypothesis.ServiceContext) (hypothesis.RawResponse, string, error) {
	prompt := hypothesis.BuildPrompt(service, anomalies, &serviceCtx)
	resp, err := g.Client.Complete(ctx, hypothesis.SystemPrompt, prompt)
	if err != nil {
		return hypothesis.RawResponse{}, "", err
	}

	var raw hypothesis.RawResponse
	if err := hypothesis.ParseStructured(resp.Content, &raw); err != nil {
		return hypothesis.RawResponse{}, "", err
	}
	return raw, resp.Model, nil
}
