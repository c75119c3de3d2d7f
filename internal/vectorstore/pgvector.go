package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// DefaultDimensions matches the Gemini embedding output size.
const DefaultDimensions = 768

// PgVectorStore implements Store on a pgxpool connection pool.
type PgVectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPool creates a pgx connection pool with pgvector types registered on
// every connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}

// NewPgVectorStore creates a store over an existing pool. dimensions fixes
// the vector column width; pass DefaultDimensions for Gemini embeddings.
func NewPgVectorStore(pool *pgxpool.Pool, dimensions int) *PgVectorStore {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &PgVectorStore{pool: pool, dimensions: dimensions}
}

// EnsureSchema creates the pgvector extension and the article table if they
// do not exist yet.
func (s *PgVectorStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS article (
			external_id TEXT PRIMARY KEY,
			embedding VECTOR(%d)
		)`, s.dimensions),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// GetByIDs returns stored embeddings for the given ids. Unknown ids are
// simply absent from the result.
func (s *PgVectorStore) GetByIDs(ctx context.Context, ids []string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT external_id, embedding FROM article WHERE external_id = ANY($1) AND embedding IS NOT NULL`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		result[id] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("embedding row iteration failed: %w", err)
	}

	return result, nil
}

// UpsertBatch stores embeddings for the given ids in one round trip,
// overwriting existing vectors.
func (s *PgVectorStore) UpsertBatch(ctx context.Context, ids []string, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return fmt.Errorf("ids and embeddings length mismatch: %d != %d", len(ids), len(embeddings))
	}
	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(
			`INSERT INTO article (external_id, embedding) VALUES ($1, $2)
			 ON CONFLICT (external_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
			id, pgvector.NewVector(embeddings[i]))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range ids {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert embedding: %w", err)
		}
	}
	return nil
}
