package memory_test

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/kioku/pkg/interfaces"
)

// mockGenerator is a mock implementation of interfaces.Generator for testing
type mockGenerator struct {
	generateFunc func(ctx context.Context, prompt string, cfg *interfaces.GenerateConfig) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, opts ...interfaces.GenerateOption) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.generateFunc != nil {
		return m.generateFunc(ctx, prompt, interfaces.NewGenerateConfig(opts...))
	}
	return "", errors.New("not implemented")
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockEmbedder returns fixed vectors per text and counts calls
type mockEmbedder struct {
	vectors map[string][]float32
	err     error

	mu         sync.Mutex
	embedCalls int
	batchCalls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.vectors[text], nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vectors[text]
	}
	return out, nil
}
