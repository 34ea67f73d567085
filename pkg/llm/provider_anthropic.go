package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sentinelops/sentinel/internal/errors"
)

// AnthropicProvider is the concrete Provider backed by Anthropic's Messages
// API — the teacher's own direct dependency for LLM access.
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicProvider builds a Provider authenticated with apiKey.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxTokens: 4096,
	}
}

// Complete satisfies Provider by issuing a single-turn Messages.New call.
func (p *AnthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, model string, temperature float64) (Response, error) {
	resolvedModel := anthropic.Model(model)
	if model == "" {
		resolvedModel = anthropic.ModelClaude3_5SonnetLatest
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       resolvedModel,
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return Response{}, errors.NetworkError("anthropic messages.new", "anthropic-api", err)
	}

	var content string
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			content += text
		}
	}

	return Response{
		Content:          content,
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		Model:            string(msg.Model),
	}, nil
}
