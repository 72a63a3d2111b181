package interfaces

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Generator produces a single text completion for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
}

// Embedder converts text into vectors. EmbedBatch must return one vector per
// input text in the same order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerateConfig holds per-call generation settings. Providers ignore
// settings they do not support.
type GenerateConfig struct {
	System          string
	Schema          *jsonschema.Schema
	Temperature     *float32
	MaxOutputTokens int32
}

type GenerateOption func(*GenerateConfig)

// WithSystem sets the system instruction
func WithSystem(system string) GenerateOption {
	return func(c *GenerateConfig) {
		c.System = system
	}
}

// WithResponseSchema requests JSON output matching the schema
func WithResponseSchema(schema *jsonschema.Schema) GenerateOption {
	return func(c *GenerateConfig) {
		c.Schema = schema
	}
}

func WithTemperature(t float32) GenerateOption {
	return func(c *GenerateConfig) {
		c.Temperature = &t
	}
}

func WithMaxOutputTokens(n int32) GenerateOption {
	return func(c *GenerateConfig) {
		c.MaxOutputTokens = n
	}
}

// NewGenerateConfig applies options to an empty config
func NewGenerateConfig(opts ...GenerateOption) *GenerateConfig {
	cfg := &GenerateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
