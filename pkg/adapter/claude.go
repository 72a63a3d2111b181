package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
)

const defaultClaudeMaxTokens = 4096

// ClaudeClient generates text with the Anthropic Messages API. It has no
// embedding endpoint, so it is paired with another Embedder.
type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

var _ interfaces.Generator = (*ClaudeClient)(nil)

type ClaudeOption func(*ClaudeClient)

func WithClaudeModel(model string) ClaudeOption {
	return func(c *ClaudeClient) {
		c.model = model
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &ClaudeClient{
		client: &client,
		model:  string(anthropic.ModelClaudeSonnet4_5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends a single user message. A response schema is not enforced
// by the API; callers fall back to parsing free text.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string, opts ...interfaces.GenerateOption) (string, error) {
	cfg := interfaces.NewGenerateConfig(opts...)

	maxTokens := int64(defaultClaudeMaxTokens)
	if cfg.MaxOutputTokens > 0 {
		maxTokens = int64(cfg.MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if cfg.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: cfg.System}}
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*cfg.Temperature))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create message", goerr.V("model", c.model))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
