// Package embedding computes document embeddings through an LLM provider and
// caches them in the vector store so each document is embedded at most once.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"nicheexplorer/internal/llm"
	"nicheexplorer/internal/logger"
	"nicheexplorer/internal/vectorstore"
)

// Cache is a read-through embedding cache. Lookups hit the vector store
// first; only missing ids go to the provider, and fresh vectors are written
// back for the next request.
type Cache struct {
	store    vectorstore.Store
	provider llm.EmbeddingProvider
	log      *slog.Logger
}

// New creates a cache over the given store and provider.
func New(store vectorstore.Store, provider llm.EmbeddingProvider) *Cache {
	return &Cache{
		store:    store,
		provider: provider,
		log:      logger.Get(),
	}
}

// GetOrCompute returns one embedding per input position, aligned with ids.
// Cached vectors are served from the store; the rest are computed in a single
// provider batch. Duplicate ids within a batch are computed at most once.
//
// The second return value is the number of positions served from the store.
// Store and provider failures degrade rather than fail: a store read error
// treats every id as a miss, a provider error leaves the affected positions
// nil, and a write-back error is logged and ignored.
func (c *Cache) GetOrCompute(ctx context.Context, ids []string, texts []string) ([][]float32, int, error) {
	if len(ids) != len(texts) {
		return nil, 0, fmt.Errorf("ids and texts length mismatch: %d != %d", len(ids), len(texts))
	}

	result := make([][]float32, len(ids))
	if len(ids) == 0 {
		return result, 0, nil
	}

	cached, err := c.store.GetByIDs(ctx, ids)
	if err != nil {
		c.log.Warn("Embedding cache read failed, computing all", "error", err)
		cached = map[string][]float32{}
	}

	cachedCount := 0
	positions := make(map[string][]int)
	var missIDs []string
	var missTexts []string

	for i, id := range ids {
		if vec, ok := cached[id]; ok {
			result[i] = vec
			cachedCount++
			continue
		}
		if _, seen := positions[id]; !seen {
			missIDs = append(missIDs, id)
			missTexts = append(missTexts, texts[i])
		}
		positions[id] = append(positions[id], i)
	}

	if len(missIDs) == 0 {
		return result, cachedCount, nil
	}

	vectors, err := c.provider.EmbedTexts(ctx, missTexts)
	if err != nil {
		c.log.Warn("Embedding provider failed, returning partial result",
			"missing", len(missIDs), "error", err)
		return result, cachedCount, nil
	}
	if len(vectors) != len(missIDs) {
		c.log.Warn("Embedding provider returned wrong count",
			"expected", len(missIDs), "got", len(vectors))
		return result, cachedCount, nil
	}

	for i, id := range missIDs {
		for _, pos := range positions[id] {
			result[pos] = vectors[i]
		}
	}

	if err := c.store.UpsertBatch(ctx, missIDs, vectors); err != nil {
		c.log.Warn("Embedding cache write failed", "count", len(missIDs), "error", err)
	}

	c.log.Debug("Embedding batch served", "total", len(ids), "cached", cachedCount, "computed", len(missIDs))
	return result, cachedCount, nil
}

// GetByIDs returns only the embeddings already present in the store.
func (c *Cache) GetByIDs(ctx context.Context, ids []string) (map[string][]float32, error) {
	return c.store.GetByIDs(ctx, ids)
}
