package mcphost

import (
	"cmp"
	"slices"

	"github.com/veilgate/ludens/internal/mcp"
	"github.com/veilgate/ludens/pkg/provider/llm"
)

// budgetEnforcer filters tool entries by the active budget tier so that
// over-budget tools never reach the LLM. The zero value is ready for use.
type budgetEnforcer struct{}

// filter returns the definitions of all entries whose tier is ≤ maxTier,
// sorted by effective latency ascending.
func (budgetEnforcer) filter(entries []toolEntry, maxTier mcp.BudgetTier) []llm.ToolDefinition {
	var kept []toolEntry
	for i := range entries {
		if entries[i].tier <= maxTier {
			kept = append(kept, entries[i])
		}
	}

	slices.SortFunc(kept, func(a, b toolEntry) int {
		return cmp.Compare(a.effectiveP50(), b.effectiveP50())
	})

	defs := make([]llm.ToolDefinition, len(kept))
	for i, e := range kept {
		defs[i] = e.def
	}
	return defs
}

// effectiveP50 prefers the measured P50 once samples exist, falling back to
// the declared estimate.
func (e toolEntry) effectiveP50() int64 {
	if e.samples != nil && e.samples.Count() > 0 {
		return e.measuredP50Ms
	}
	return e.declaredP50Ms
}
