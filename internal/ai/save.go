package ai

import (
	"context"
	"fmt"
	"sort"

	"github.com/veilgate/ludens/pkg/memory"
)

// NPCSnapshot is one NPC's persistent state as written to save files:
// identity, emotions, and the full memory log.
type NPCSnapshot struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Personality string             `json:"personality"`
	Emotions    map[string]float64 `json:"emotions"`
	Memories    []memory.Record    `json:"memories,omitempty"`
}

// ExportNPCs captures every registered NPC for persistence, ordered by ID.
func (d *Director) ExportNPCs(ctx context.Context) ([]NPCSnapshot, error) {
	d.mu.Lock()
	snaps := make([]NPCSnapshot, 0, len(d.npcs))
	for _, st := range d.npcs {
		snaps = append(snaps, NPCSnapshot{
			ID:          st.id,
			Name:        st.name,
			Personality: st.personality,
			Emotions:    st.emotions.Snapshot(),
		})
	}
	d.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })

	for i := range snaps {
		recs, err := d.store.Query(ctx, snaps[i].ID, memory.WithLimit(memory.DefaultCapacity))
		if err != nil {
			return nil, fmt.Errorf("ai: export memories for %q: %w", snaps[i].ID, err)
		}
		snaps[i].Memories = recs
	}
	return snaps, nil
}

// ImportNPCs restores NPCs from a save file: registration, emotions, and
// memories. Memories carrying embeddings are re-indexed when a semantic
// index is configured.
func (d *Director) ImportNPCs(ctx context.Context, snaps []NPCSnapshot) error {
	for _, snap := range snaps {
		d.RegisterNPC(snap.ID, snap.Name, snap.Personality)

		d.mu.Lock()
		st := d.npcs[snap.ID]
		for emo, value := range snap.Emotions {
			st.emotions.Set(emo, value)
		}
		d.mu.Unlock()

		for _, rec := range snap.Memories {
			rec.NPCID = snap.ID
			if err := d.store.Append(ctx, rec); err != nil {
				return fmt.Errorf("ai: import memories for %q: %w", snap.ID, err)
			}
			if d.index != nil && len(rec.Embedding) > 0 {
				if err := d.index.Index(ctx, rec); err != nil {
					d.log.Warn("reindex imported memory failed", "npc", snap.ID, "error", err)
				}
			}
		}
	}
	return nil
}
