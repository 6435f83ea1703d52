package memory

import "time"

// DefaultCapacity is the per-NPC record cap applied by capacity-bounded
// stores. When exceeded, the least important record is evicted.
const DefaultCapacity = 100

// Record is a single NPC memory: something the NPC experienced, said or
// decided, weighted by how much it matters.
type Record struct {
	// ID is the unique identifier for this record (e.g., a UUID).
	ID string

	// NPCID identifies the NPC this memory belongs to.
	NPCID string

	// Content is the memory text.
	Content string

	// Importance weights the memory for ranking and eviction (0.0–1.0 by
	// convention; higher survives longer).
	Importance float64

	// Category is a coarse label. Well-known values: "general", "dialog",
	// "decision", "event". Custom values are allowed.
	Category string

	// CreatedAt is when the memory was formed.
	CreatedAt time.Time

	// Embedding is the optional vector representation of Content, present
	// when an embeddings provider is configured. Dimension must match the
	// semantic index configuration.
	Embedding []float32
}

// Age returns how old the record is relative to now.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// Result pairs a retrieved record with its retrieval score. For keyword
// retrieval higher is better; for vector retrieval Score holds the cosine
// distance and lower is better.
type Result struct {
	Record Record
	Score  float64
}
