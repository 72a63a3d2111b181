package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
)

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns only memories above threshold", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float32{"drinks": {1, 0}}}
		snapshot := model.NewSnapshot()
		snapshot.FlashMemory = []*model.MemoryRecord{
			{Text: "likes tea", Embedding: []float32{1, 0}},
			{Text: "likes coffee", Embedding: []float32{0, 1}},
		}

		r := memory.NewRetriever(embedder, memory.RetrieverConfig{SimilarityThreshold: 0.5, MaxContextItems: 2})
		texts, err := r.Retrieve(ctx, "drinks", snapshot)
		gt.NoError(t, err)
		gt.Equal(t, texts, []string{"likes tea"})
		gt.Equal(t, embedder.embedCalls, 1)
	})

	t.Run("no embedded memories skips embedding", func(t *testing.T) {
		embedder := &mockEmbedder{}
		snapshot := model.NewSnapshot()
		snapshot.FlashMemory = []*model.MemoryRecord{{Text: "not embedded yet"}}

		r := memory.NewRetriever(embedder, memory.RetrieverConfig{})
		texts, err := r.Retrieve(ctx, "anything", snapshot)
		gt.NoError(t, err)
		gt.A(t, texts).Length(0)
		gt.Equal(t, embedder.embedCalls, 0)
	})

	t.Run("empty query skips embedding", func(t *testing.T) {
		embedder := &mockEmbedder{}
		snapshot := model.NewSnapshot()
		snapshot.FlashMemory = []*model.MemoryRecord{{Text: "likes tea", Embedding: []float32{1, 0}}}

		r := memory.NewRetriever(embedder, memory.RetrieverConfig{})
		texts, err := r.Retrieve(ctx, "  ", snapshot)
		gt.NoError(t, err)
		gt.A(t, texts).Length(0)
		gt.Equal(t, embedder.embedCalls, 0)
	})

	t.Run("sorted by similarity with stable ties and limit", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
		snapshot := model.NewSnapshot()
		snapshot.FlashMemory = []*model.MemoryRecord{
			{Text: "weak", Embedding: []float32{0.6, 0.8}},
			{Text: "tie first", Embedding: []float32{1, 0}},
		}
		snapshot.LongTermMemory = []*model.MemoryRecord{
			{Text: "tie second", Embedding: []float32{2, 0}},
			{Text: "unrelated", Embedding: []float32{0, 1}},
		}

		r := memory.NewRetriever(embedder, memory.RetrieverConfig{SimilarityThreshold: 0.3, MaxContextItems: 2})
		texts, err := r.Retrieve(ctx, "q", snapshot)
		gt.NoError(t, err)
		gt.Equal(t, texts, []string{"tie first", "tie second"})

		scored, err := r.RetrieveScored(ctx, "q", snapshot, 10)
		gt.NoError(t, err)
		gt.A(t, scored).Length(2)

		scored, err = r.RetrieveScored(ctx, "q", snapshot, 1)
		gt.NoError(t, err)
		gt.A(t, scored).Length(1)
		gt.Equal(t, scored[0].Record.Text, "tie first")
	})

	t.Run("empty query vector returns nothing", func(t *testing.T) {
		embedder := &mockEmbedder{vectors: map[string][]float32{}}
		snapshot := model.NewSnapshot()
		snapshot.FlashMemory = []*model.MemoryRecord{{Text: "likes tea", Embedding: []float32{1, 0}}}

		r := memory.NewRetriever(embedder, memory.RetrieverConfig{})
		texts, err := r.Retrieve(ctx, "unknown", snapshot)
		gt.NoError(t, err)
		gt.A(t, texts).Length(0)
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		embedder := &mockEmbedder{err: errors.New("embedding service down")}
		snapshot := model.NewSnapshot()
		snapshot.FlashMemory = []*model.MemoryRecord{{Text: "likes tea", Embedding: []float32{1, 0}}}

		r := memory.NewRetriever(embedder, memory.RetrieverConfig{})
		_, err := r.Retrieve(ctx, "tea", snapshot)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("failed to embed query")
	})
}
