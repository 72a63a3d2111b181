package adapter

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
)

// CachedEmbedder memoizes vectors by text in front of another Embedder.
// Only texts missing from the cache are sent, in one batch.
type CachedEmbedder struct {
	base  interfaces.Embedder
	cache *ristretto.Cache
}

var _ interfaces.Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder creates a cache holding up to maxEntries vectors
func NewCachedEmbedder(base interfaces.Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Cost counts entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &CachedEmbedder{base: base, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var (
		missing []string
		indexes = map[string][]int{}
	)
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			vectors[i] = v.([]float32)
			continue
		}
		if _, queued := indexes[text]; !queued {
			missing = append(missing, text)
		}
		indexes[text] = append(indexes[text], i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	fetched, err := c.base.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, goerr.New("unexpected number of embeddings",
			goerr.V("expected", len(missing)),
			goerr.V("actual", len(fetched)),
		)
	}

	for i, text := range missing {
		if len(fetched[i]) > 0 {
			c.cache.Set(text, fetched[i], 1)
		}
		for _, idx := range indexes[text] {
			vectors[idx] = fetched[i]
		}
	}
	c.cache.Wait()

	return vectors, nil
}

// Close releases the cache
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
