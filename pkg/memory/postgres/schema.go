package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the pgvector extension, the npc_memories table and its
// indexes if they do not already exist. It is idempotent and safe to run on
// every startup.
//
// embeddingDimensions fixes the vector column width; it must match the
// embedding model in use.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if embeddingDimensions <= 0 {
		return fmt.Errorf("migrate: embedding dimensions must be positive, got %d", embeddingDimensions)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS npc_memories (
			id         TEXT PRIMARY KEY,
			npc_id     TEXT NOT NULL,
			content    TEXT NOT NULL,
			importance DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			category   TEXT NOT NULL DEFAULT 'general',
			embedding  vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDimensions),

		`CREATE INDEX IF NOT EXISTS idx_npc_memories_npc
			ON npc_memories (npc_id, created_at DESC)`,

		// HNSW over cosine distance; matches the <=> operator used in Search.
		`CREATE INDEX IF NOT EXISTS idx_npc_memories_embedding
			ON npc_memories USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
