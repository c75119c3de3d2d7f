// Package vectorstore persists article embeddings in PostgreSQL with the
// pgvector extension.
package vectorstore

import (
	"context"
)

// Store reads and writes embedding vectors keyed by article external id.
type Store interface {
	// GetByIDs returns the stored embeddings for the given ids. Ids with no
	// stored embedding are absent from the result map.
	GetByIDs(ctx context.Context, ids []string) (map[string][]float32, error)

	// UpsertBatch stores embeddings for the given ids, overwriting any
	// existing vectors. ids and embeddings must have equal length.
	UpsertBatch(ctx context.Context, ids []string, embeddings [][]float32) error
}
