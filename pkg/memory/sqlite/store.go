// Package sqlite provides a [memory.Store] backed by a local SQLite
// database (modernc.org/sqlite, no cgo). It gives NPC memories persistence
// across server restarts without requiring a Postgres deployment.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/veilgate/ludens/pkg/memory"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
    id         TEXT PRIMARY KEY,
    npc_id     TEXT NOT NULL,
    content    TEXT NOT NULL,
    importance REAL NOT NULL,
    category   TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_npc ON memories (npc_id, importance DESC);
CREATE INDEX IF NOT EXISTS idx_memories_age ON memories (npc_id, created_at);
`

// Store persists records in a single SQLite file. Relevance scoring runs in
// process over the NPC's rows; the per-NPC row counts are capacity-bounded
// so the scan stays small.
type Store struct {
	db       *sql.DB
	capacity int

	now func() time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithCapacity overrides the per-NPC record cap.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock replaces the store's clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}

	s := &Store{db: db, capacity: memory.DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append implements [memory.Store].
func (s *Store) Append(ctx context.Context, rec memory.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.Category == "" {
		rec.Category = "general"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO memories (id, npc_id, content, importance, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		    content    = excluded.content,
		    importance = excluded.importance,
		    category   = excluded.category,
		    created_at = excluded.created_at`
	if _, err := tx.ExecContext(ctx, insert,
		rec.ID, rec.NPCID, rec.Content, rec.Importance, rec.Category, rec.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("sqlite store: insert: %w", err)
	}

	// Capacity eviction: drop the least important (oldest as tiebreak)
	// while over the cap.
	const evict = `
		DELETE FROM memories WHERE id IN (
		    SELECT id FROM memories
		    WHERE npc_id = ?
		    ORDER BY importance ASC, created_at ASC
		    LIMIT max(0, (SELECT count(*) FROM memories WHERE npc_id = ?) - ?)
		)`
	if _, err := tx.ExecContext(ctx, evict, rec.NPCID, rec.NPCID, s.capacity); err != nil {
		return fmt.Errorf("sqlite store: evict: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: commit: %w", err)
	}
	return nil
}

// Query implements [memory.Store].
func (s *Store) Query(ctx context.Context, npcID string, opts ...memory.QueryOpt) ([]memory.Record, error) {
	params := memory.ApplyQueryOpts(opts)

	q := `SELECT id, npc_id, content, importance, category, created_at
	      FROM memories WHERE npc_id = ?`
	args := []any{npcID}
	if params.Category != "" {
		q += " AND category = ?"
		args = append(args, params.Category)
	}
	q += " ORDER BY importance DESC, created_at DESC LIMIT ?"
	args = append(args, params.Limit)

	return s.collect(ctx, q, args...)
}

// Relevant implements [memory.Store]. Rows are fetched per NPC and scored in
// process with the shared [memory.Score] algorithm.
func (s *Store) Relevant(ctx context.Context, npcID, query string, limit int) ([]memory.Record, error) {
	const q = `SELECT id, npc_id, content, importance, category, created_at
	           FROM memories WHERE npc_id = ?`
	recs, err := s.collect(ctx, q, npcID)
	if err != nil {
		return nil, err
	}

	keywords := memory.Keywords(query)
	now := s.now()

	scored := make([]memory.Result, 0, len(recs))
	for _, rec := range recs {
		if score := memory.Score(rec, keywords, now); score > 0 {
			scored = append(scored, memory.Result{Record: rec, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]memory.Record, len(scored))
	for i, res := range scored {
		out[i] = res.Record
	}
	return out, nil
}

// Forget implements [memory.Store].
func (s *Store) Forget(ctx context.Context, npcID string, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge).UnixNano()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE npc_id = ? AND created_at < ?`, npcID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite store: forget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite store: forget: %w", err)
	}
	return int(n), nil
}

// Close implements [memory.Store].
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) collect(ctx context.Context, query string, args ...any) ([]memory.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: query: %w", err)
	}
	defer rows.Close()

	out := []memory.Record{}
	for rows.Next() {
		var (
			rec   memory.Record
			nanos int64
		)
		if err := rows.Scan(&rec.ID, &rec.NPCID, &rec.Content, &rec.Importance, &rec.Category, &nanos); err != nil {
			return nil, fmt.Errorf("sqlite store: scan: %w", err)
		}
		rec.CreatedAt = time.Unix(0, nanos)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: rows: %w", err)
	}
	return out, nil
}
