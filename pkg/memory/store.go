// Package memory defines the NPC memory layer used by the Ludens AI
// director.
//
// Two interfaces make up the layer:
//
//   - [Store]: a capacity-bounded, importance-weighted record log with
//     keyword relevance retrieval. Every NPC gets one logical store.
//   - [SemanticIndex]: an optional vector index for embedding-based
//     similarity search, used instead of keyword retrieval when an
//     embeddings provider is configured.
//
// All interfaces are public so that external packages can supply alternative
// storage backends (in-memory, SQLite, Postgres/pgvector, …) without
// depending on ludens internals.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Query options
// ─────────────────────────────────────────────────────────────────────────────

// queryOptions accumulates options for [Store.Query].
// Unexported — callers configure it via [QueryOpt] functional options.
type queryOptions struct {
	category string
	limit    int
}

// QueryOpt is a functional option for [Store.Query].
type QueryOpt func(*queryOptions)

// WithCategory restricts results to records with the given category.
// The default (empty string) matches all categories.
func WithCategory(category string) QueryOpt {
	return func(o *queryOptions) { o.category = category }
}

// WithLimit caps the number of records returned. A value of 0 (the default)
// applies the standard limit of 10.
func WithLimit(n int) QueryOpt {
	return func(o *queryOptions) { o.limit = n }
}

// QueryParams holds the resolved parameters from a slice of [QueryOpt].
type QueryParams struct {
	Category string
	Limit    int
}

// ApplyQueryOpts applies a slice of [QueryOpt] functional options and
// returns the resolved parameters. This helper allows storage backends to
// read the option values without accessing the unexported option type.
func ApplyQueryOpts(opts []QueryOpt) QueryParams {
	o := &queryOptions{limit: 10}
	for _, opt := range opts {
		opt(o)
	}
	return QueryParams{Category: o.category, Limit: o.limit}
}

// ─────────────────────────────────────────────────────────────────────────────
// Interfaces
// ─────────────────────────────────────────────────────────────────────────────

// Store is an NPC memory log. Implementations enforce a per-NPC capacity:
// appending beyond it evicts the least important record.
type Store interface {
	// Append stores a record for rec.NPCID. The implementation assigns
	// CreatedAt when it is zero.
	Append(ctx context.Context, rec Record) error

	// Query returns records for the NPC ranked by descending importance,
	// optionally filtered by [WithCategory] and capped by [WithLimit].
	// Returns an empty (non-nil) slice when no records match.
	Query(ctx context.Context, npcID string, opts ...QueryOpt) ([]Record, error)

	// Relevant returns up to limit records scored against the query text:
	// keyword match count, weighted by importance and decayed by age (see
	// [Score]). Records that match no keyword are excluded.
	Relevant(ctx context.Context, npcID, query string, limit int) ([]Record, error)

	// Forget removes records older than maxAge and reports how many were
	// removed.
	Forget(ctx context.Context, npcID string, maxAge time.Duration) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// SemanticIndex is a vector index over memory records for embedding-based
// retrieval. Callers produce embeddings before calling Index or Search.
type SemanticIndex interface {
	// Index upserts a pre-embedded record into the index. A record with an
	// existing ID is replaced.
	Index(ctx context.Context, rec Record) error

	// Search finds the topK records for the NPC whose embeddings are closest
	// to the query embedding. Results are ordered by ascending distance
	// (most similar first), with the distance in Result.Score.
	// Returns an empty (non-nil) slice when no records match.
	Search(ctx context.Context, npcID string, embedding []float32, topK int) ([]Result, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared scoring
// ─────────────────────────────────────────────────────────────────────────────

// relevanceFloor is the minimum recency factor; memories older than a day
// still retain half their score.
const relevanceFloor = 0.5

// Score computes the keyword relevance of a record against pre-lowercased
// keywords at the given instant: the number of keywords contained in the
// content, multiplied by the record's importance, multiplied by a recency
// factor that decays linearly to 0.5 over 24 hours.
//
// A result of 0 means the record is irrelevant to the query.
func Score(rec Record, keywords []string, now time.Time) float64 {
	content := strings.ToLower(rec.Content)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}

	ageFactor := 1.0 - rec.Age(now).Hours()/24
	if ageFactor < relevanceFloor {
		ageFactor = relevanceFloor
	}
	return float64(matches) * rec.Importance * ageFactor
}

// Keywords lowercases and splits a query into scoring keywords.
func Keywords(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Summarize renders records as a numbered list for prompt injection.
// An empty input yields "No memories available.".
func Summarize(records []Record) string {
	if len(records) == 0 {
		return "No memories available."
	}
	var b strings.Builder
	b.WriteString("Memory Summary:\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. %s (Importance: %.1f)\n", i+1, rec.Content, rec.Importance)
	}
	return b.String()
}
