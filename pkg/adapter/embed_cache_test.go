package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
)

type countingEmbedder struct {
	batches [][]string
	err     error
}

func (m *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (m *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.batches = append(m.batches, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	base := &countingEmbedder{}
	cached, err := adapter.NewCachedEmbedder(base, 100)
	gt.NoError(t, err)
	defer cached.Close()

	v, err := cached.Embed(ctx, "tea")
	gt.NoError(t, err)
	gt.Equal(t, v, []float32{3, 1})

	vectors, err := cached.EmbedBatch(ctx, []string{"coffee", "tea", "coffee", "jazz"})
	gt.NoError(t, err)
	gt.A(t, vectors).Length(4)
	gt.Equal(t, vectors[0], []float32{6, 1})
	gt.Equal(t, vectors[1], []float32{3, 1})
	gt.Equal(t, vectors[2], []float32{6, 1})
	gt.Equal(t, vectors[3], []float32{4, 1})

	// only missing texts are sent, each once
	gt.A(t, base.batches).Length(2)
	gt.Equal(t, base.batches[1], []string{"coffee", "jazz"})

	_, err = cached.EmbedBatch(ctx, []string{"tea", "jazz"})
	gt.NoError(t, err)
	gt.A(t, base.batches).Length(2)
}

func TestCachedEmbedderError(t *testing.T) {
	base := &countingEmbedder{err: errors.New("unavailable")}
	cached, err := adapter.NewCachedEmbedder(base, 0)
	gt.NoError(t, err)
	defer cached.Close()

	_, err = cached.Embed(context.Background(), "tea")
	gt.Error(t, err)
}
