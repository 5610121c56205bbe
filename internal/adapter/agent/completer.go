package agent

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/genericrobot77/meds-job/pkg/anthropic"
	"github.com/genericrobot77/meds-job/pkg/perplexity"
)

// Completer sends one prompt to a language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicCompleter completes prompts with the Anthropic Messages API.
type AnthropicCompleter struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	temp := 0.0
	resp, err := c.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: system, Cached: true}},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "agent: anthropic completion")
	}
	resp.Usage.LogCost(resp.Model, "agent")
	if resp.StopReason == "max_tokens" {
		return "", eris.Wrap(errTruncated, "agent: anthropic completion")
	}
	return resp.Text(), nil
}

// PerplexityCompleter completes prompts with Perplexity search-grounded chat.
type PerplexityCompleter struct {
	Client  perplexity.Client
	Model   string
	Domains []string
}

// Complete implements Completer.
func (c *PerplexityCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	temp := 0.0
	resp, err := c.Client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: c.Model,
		Messages: []perplexity.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:        &temp,
		SearchDomainFilter: c.Domains,
	})
	if err != nil {
		return "", eris.Wrap(err, "agent: perplexity completion")
	}
	return resp.Text(), nil
}
