// Package memstore provides the default in-memory [memory.Store]. It is the
// backend used when no persistence is configured and the reference for the
// capacity and relevance semantics the other backends replicate.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilgate/ludens/pkg/memory"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

// Store keeps per-NPC record slices guarded by a single mutex. Suitable for
// a single server process; records are lost on restart.
type Store struct {
	mu       sync.Mutex
	capacity int
	records  map[string][]memory.Record

	// now is the clock, replaceable in tests.
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

// New returns an empty store with the default capacity.
func New(opts ...Option) *Store {
	s := &Store{
		capacity: memory.DefaultCapacity,
		records:  make(map[string][]memory.Record),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements [memory.Store]. When the NPC is at capacity the least
// important record is evicted to make room.
func (s *Store) Append(_ context.Context, rec memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	recs := append(s.records[rec.NPCID], rec)
	if len(recs) > s.capacity {
		lowest := 0
		for i, r := range recs {
			if r.Importance < recs[lowest].Importance {
				lowest = i
			}
		}
		recs = append(recs[:lowest], recs[lowest+1:]...)
	}
	s.records[rec.NPCID] = recs
	return nil
}

// Query implements [memory.Store].
func (s *Store) Query(_ context.Context, npcID string, opts ...memory.QueryOpt) ([]memory.Record, error) {
	params := memory.ApplyQueryOpts(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]memory.Record, 0, len(s.records[npcID]))
	for _, rec := range s.records[npcID] {
		if params.Category != "" && rec.Category != params.Category {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

// Relevant implements [memory.Store].
func (s *Store) Relevant(_ context.Context, npcID, query string, limit int) ([]memory.Record, error) {
	keywords := memory.Keywords(query)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	scored := make([]memory.Result, 0, len(s.records[npcID]))
	for _, rec := range s.records[npcID] {
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
func (s *Store) Forget(_ context.Context, npcID string, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[npcID]
	kept := recs[:0]
	for _, rec := range recs {
		if !rec.CreatedAt.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	removed := len(recs) - len(kept)
	s.records[npcID] = kept
	return removed, nil
}

// Close implements [memory.Store]. It is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }
