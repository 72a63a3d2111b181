package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// ScoredMemory is a retrieved memory with its similarity to the query
type ScoredMemory struct {
	Record     *model.MemoryRecord
	Similarity float64
}

// Retriever finds stored memories relevant to a query
type Retriever struct {
	embedder interfaces.Embedder
	cfg      RetrieverConfig
}

func NewRetriever(embedder interfaces.Embedder, cfg RetrieverConfig) *Retriever {
	return &Retriever{
		embedder: embedder,
		cfg:      cfg.WithDefaults(),
	}
}

// Retrieve returns the texts of the most similar memories, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, snapshot *model.MemorySnapshot) ([]string, error) {
	scored, err := r.RetrieveScored(ctx, query, snapshot, r.cfg.MaxContextItems)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(scored))
	for i, s := range scored {
		texts[i] = s.Record.Text
	}
	return texts, nil
}

// RetrieveScored returns up to limit memories whose similarity to the query
// is at least the threshold, sorted by similarity. Ties keep snapshot order.
// The embedder is not called when no memory has an embedding.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, snapshot *model.MemorySnapshot, limit int) ([]ScoredMemory, error) {
	if strings.TrimSpace(query) == "" || snapshot == nil {
		return nil, nil
	}
	if limit <= 0 || limit > r.cfg.MaxContextItems {
		limit = r.cfg.MaxContextItems
	}

	var candidates []*model.MemoryRecord
	for _, record := range snapshot.Records() {
		if record.HasEmbedding() {
			candidates = append(candidates, record)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if len(queryVec) == 0 {
		return nil, nil
	}

	var scored []ScoredMemory
	for _, record := range candidates {
		sim := CosineSimilarity(queryVec, record.Embedding)
		if sim >= r.cfg.SimilarityThreshold {
			scored = append(scored, ScoredMemory{Record: record, Similarity: sim})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	logging.From(ctx).Debug("retrieved memories",
		"candidates", len(candidates),
		"matched", len(scored),
	)

	return scored, nil
}
