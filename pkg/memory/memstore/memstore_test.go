package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/veilgate/ludens/pkg/memory"
)

func TestAppendAssignsDefaults(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.Append(ctx, memory.Record{NPCID: "npc-1", Content: "met the player", Importance: 1}); err != nil {
		t.Fatal(err)
	}

	recs, err := s.Query(ctx, "npc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].ID == "" || recs[0].CreatedAt.IsZero() {
		t.Errorf("missing defaults: %+v", recs[0])
	}
}

func TestCapacityEvictsLeastImportant(t *testing.T) {
	t.Parallel()

	s := New(WithCapacity(3))
	ctx := context.Background()

	add := func(content string, importance float64) {
		t.Helper()
		if err := s.Append(ctx, memory.Record{NPCID: "npc-1", Content: content, Importance: importance}); err != nil {
			t.Fatal(err)
		}
	}
	add("trivial", 0.1)
	add("important", 0.9)
	add("medium", 0.5)
	add("critical", 1.0) // evicts "trivial"

	recs, err := s.Query(ctx, "npc-1", memory.WithLimit(10))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want capacity 3", len(recs))
	}
	for _, rec := range recs {
		if rec.Content == "trivial" {
			t.Error("least important record survived eviction")
		}
	}
}

func TestQueryRanksAndFilters(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	seed := []memory.Record{
		{NPCID: "npc-1", Content: "sold a sword", Importance: 0.4, Category: "trade"},
		{NPCID: "npc-1", Content: "was robbed", Importance: 0.9, Category: "event"},
		{NPCID: "npc-1", Content: "bought ore", Importance: 0.6, Category: "trade"},
		{NPCID: "npc-2", Content: "other npc", Importance: 1.0, Category: "trade"},
	}
	for _, rec := range seed {
		if err := s.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Query(ctx, "npc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3 (npc scoped)", len(recs))
	}
	if recs[0].Content != "was robbed" {
		t.Errorf("top record = %q, want highest importance first", recs[0].Content)
	}

	trade, err := s.Query(ctx, "npc-1", memory.WithCategory("trade"), memory.WithLimit(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(trade) != 1 || trade[0].Content != "bought ore" {
		t.Errorf("trade query = %+v", trade)
	}
}

func TestRelevantScoring(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	seed := []memory.Record{
		{NPCID: "npc-1", Content: "the dragon attacked the village", Importance: 0.5, CreatedAt: now.Add(-time.Hour)},
		{NPCID: "npc-1", Content: "dragon", Importance: 1.0, CreatedAt: now.Add(-48 * time.Hour)},
		{NPCID: "npc-1", Content: "ate breakfast", Importance: 1.0, CreatedAt: now},
	}
	for _, rec := range seed {
		if err := s.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Relevant(ctx, "npc-1", "dragon village", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("relevant = %d, want 2 (no-match excluded)", len(recs))
	}
	// Two keyword matches at importance 0.5 and near-full recency beat one
	// match at importance 1.0 floored to 0.5 recency.
	if recs[0].Content != "the dragon attacked the village" {
		t.Errorf("top relevant = %q", recs[0].Content)
	}
}

func TestRelevantRecencyFloor(t *testing.T) {
	t.Parallel()

	now := time.Now()
	rec := memory.Record{Content: "dragon", Importance: 1.0, CreatedAt: now.Add(-1000 * time.Hour)}
	if got := memory.Score(rec, []string{"dragon"}, now); got != 0.5 {
		t.Errorf("score = %v, want recency floor 0.5", got)
	}
}

func TestForget(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := s.Append(ctx, memory.Record{NPCID: "npc-1", Content: "old", Importance: 1, CreatedAt: now.Add(-10 * 24 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, memory.Record{NPCID: "npc-1", Content: "fresh", Importance: 1, CreatedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Forget(ctx, "npc-1", 7*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	recs, err := s.Query(ctx, "npc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Content != "fresh" {
		t.Errorf("surviving records = %+v", recs)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	if got := memory.Summarize(nil); got != "No memories available." {
		t.Errorf("empty summary = %q", got)
	}

	got := memory.Summarize([]memory.Record{
		{Content: "met the player", Importance: 0.7},
		{Content: "lost a bet", Importance: 0.3},
	})
	want := "Memory Summary:\n1. met the player (Importance: 0.7)\n2. lost a bet (Importance: 0.3)\n"
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}
