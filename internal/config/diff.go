package config

import "maps"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	NPCsChanged     bool      // true if any NPC personality, behavior, emotions, or budget_tier changed
	NPCChanges      []NPCDiff // per-NPC diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// NPCDiff describes what changed for a single NPC between two configs.
type NPCDiff struct {
	ID                 string
	PersonalityChanged bool
	BehaviorChanged    bool
	EmotionsChanged    bool
	BudgetTierChanged  bool
	Added              bool
	Removed            bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build NPC lookup maps keyed by ID.
	oldNPCs := make(map[string]*NPCConfig, len(old.NPCs))
	for i := range old.NPCs {
		oldNPCs[old.NPCs[i].ID] = &old.NPCs[i]
	}
	newNPCs := make(map[string]*NPCConfig, len(new.NPCs))
	for i := range new.NPCs {
		newNPCs[new.NPCs[i].ID] = &new.NPCs[i]
	}

	// Detect modified and removed NPCs.
	for id, oldNPC := range oldNPCs {
		newNPC, exists := newNPCs[id]
		if !exists {
			d.NPCChanges = append(d.NPCChanges, NPCDiff{
				ID:      id,
				Removed: true,
			})
			d.NPCsChanged = true
			continue
		}
		nd := diffNPC(id, oldNPC, newNPC)
		if nd.PersonalityChanged || nd.BehaviorChanged || nd.EmotionsChanged || nd.BudgetTierChanged {
			d.NPCChanges = append(d.NPCChanges, nd)
			d.NPCsChanged = true
		}
	}

	// Detect added NPCs.
	for id := range newNPCs {
		if _, exists := oldNPCs[id]; !exists {
			d.NPCChanges = append(d.NPCChanges, NPCDiff{
				ID:    id,
				Added: true,
			})
			d.NPCsChanged = true
		}
	}

	return d
}

// diffNPC compares two NPC configs with the same ID.
func diffNPC(id string, old, new *NPCConfig) NPCDiff {
	nd := NPCDiff{ID: id}

	if old.Personality != new.Personality {
		nd.PersonalityChanged = true
	}

	if old.Behavior != new.Behavior {
		nd.BehaviorChanged = true
	}

	if !maps.Equal(old.Emotions, new.Emotions) {
		nd.EmotionsChanged = true
	}

	if old.BudgetTier != new.BudgetTier {
		nd.BudgetTierChanged = true
	}

	return nd
}
