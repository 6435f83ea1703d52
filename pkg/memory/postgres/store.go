// Package postgres provides the PostgreSQL/pgvector-backed
// [memory.SemanticIndex]. It is the retrieval path the AI director uses when
// an embeddings provider is configured: memories are stored with their
// embedding vectors and recalled by cosine similarity instead of keyword
// scoring.
package postgres

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/veilgate/ludens/pkg/memory"
)

// Compile-time interface checks.
var (
	_ memory.SemanticIndex = (*Index)(nil)
	_ io.Closer            = (*Index)(nil)
)

// Index is a pgvector-backed semantic index over NPC memories, using an
// HNSW index for fast approximate nearest-neighbour search.
//
// All methods are safe for concurrent use.
type Index struct {
	pool *pgxpool.Pool
}

// NewIndex establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate] to ensure
// the memories table and extension exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to produce [memory.Record.Embedding] values (e.g., 1536 for OpenAI
// text-embedding-3-small). Changing this value after the first migration
// requires a manual schema change.
func NewIndex(ctx context.Context, dsn string, embeddingDimensions int) (*Index, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("semantic index: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("semantic index: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("semantic index: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("semantic index: migrate: %w", err)
	}

	return &Index{pool: pool}, nil
}

// Index implements [memory.SemanticIndex]. It upserts a pre-embedded record;
// a record with an existing ID is completely replaced.
func (ix *Index) Index(ctx context.Context, rec memory.Record) error {
	const q = `
		INSERT INTO npc_memories
		    (id, npc_id, content, importance, category, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    npc_id     = EXCLUDED.npc_id,
		    content    = EXCLUDED.content,
		    importance = EXCLUDED.importance,
		    category   = EXCLUDED.category,
		    embedding  = EXCLUDED.embedding,
		    created_at = EXCLUDED.created_at`

	vec := pgvector.NewVector(rec.Embedding)
	_, err := ix.pool.Exec(ctx, q,
		rec.ID,
		rec.NPCID,
		rec.Content,
		rec.Importance,
		rec.Category,
		vec,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("semantic index: index record: %w", err)
	}
	return nil
}

// Search implements [memory.SemanticIndex]. It finds the topK records for
// the NPC whose embeddings are closest (cosine distance) to the query
// embedding.
//
// Results are ordered by ascending cosine distance (most similar first).
func (ix *Index) Search(ctx context.Context, npcID string, embedding []float32, topK int) ([]memory.Result, error) {
	const q = `
		SELECT id, npc_id, content, importance, category, embedding, created_at,
		       embedding <=> $1 AS distance
		FROM   npc_memories
		WHERE  npc_id = $2
		ORDER  BY distance
		LIMIT  $3`

	rows, err := ix.pool.Query(ctx, q, pgvector.NewVector(embedding), npcID, topK)
	if err != nil {
		return nil, fmt.Errorf("semantic index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Result, error) {
		var (
			res memory.Result
			vec pgvector.Vector
		)
		if err := row.Scan(
			&res.Record.ID,
			&res.Record.NPCID,
			&res.Record.Content,
			&res.Record.Importance,
			&res.Record.Category,
			&vec,
			&res.Record.CreatedAt,
			&res.Score,
		); err != nil {
			return memory.Result{}, err
		}
		res.Record.Embedding = vec.Slice()
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("semantic index: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.Result{}
	}
	return results, nil
}

// Close releases all connections held by the underlying connection pool.
// It always returns nil; the pool has no failure mode on close.
func (ix *Index) Close() error {
	ix.pool.Close()
	return nil
}
