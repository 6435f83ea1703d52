// Package gametools provides the built-in MCP tools that give NPCs
// structured access to the running world.
//
// Three tools are exported via [Tools]:
//   - "world_query"     reads the current world snapshot, optionally
//     narrowed to a single object.
//   - "recall_memories" retrieves an NPC's most relevant memories.
//   - "roll_dice"       evaluates a standard dice expression (e.g. "2d6+3").
//
// All handlers are safe for concurrent use. world_query hops onto the
// simulation loop via [game.Engine.Do] so it never races the tick.
package gametools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/mcp/tools"
	"github.com/veilgate/ludens/pkg/memory"
	"github.com/veilgate/ludens/pkg/provider/llm"
)

// worldQueryArgs is the JSON-decoded input for "world_query".
type worldQueryArgs struct {
	// ObjectID narrows the result to a single object when non-empty.
	ObjectID string `json:"object_id"`
}

// worldQueryHandler captures a snapshot on the simulation loop and returns
// it as JSON. With an object_id it returns just that object's state.
func worldQueryHandler(eng *game.Engine) func(ctx context.Context, args string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a worldQueryArgs
		if args != "" && args != "{}" {
			if err := json.Unmarshal([]byte(args), &a); err != nil {
				return "", fmt.Errorf("gametools: parse world_query arguments: %w", err)
			}
		}

		snapCh := make(chan game.Snapshot, 1)
		if !eng.Do(func() { snapCh <- eng.Snapshot() }) {
			return "", fmt.Errorf("gametools: world loop not accepting work")
		}

		var snap game.Snapshot
		select {
		case snap = <-snapCh:
		case <-ctx.Done():
			return "", ctx.Err()
		}

		if a.ObjectID != "" {
			for _, obj := range snap.Objects {
				if obj.ID == a.ObjectID {
					out, err := json.Marshal(obj)
					if err != nil {
						return "", fmt.Errorf("gametools: encode object state: %w", err)
					}
					return string(out), nil
				}
			}
			return "", fmt.Errorf("gametools: object %q not found in active scene", a.ObjectID)
		}

		out, err := json.Marshal(snap)
		if err != nil {
			return "", fmt.Errorf("gametools: encode snapshot: %w", err)
		}
		return string(out), nil
	}
}

// recallArgs is the JSON-decoded input for "recall_memories".
type recallArgs struct {
	NPCID string `json:"npc_id"`
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// recallHandler retrieves relevant memories and formats them as a numbered
// summary suitable for direct insertion into a prompt.
func recallHandler(store memory.Store) func(ctx context.Context, args string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a recallArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("gametools: parse recall_memories arguments: %w", err)
		}
		if a.NPCID == "" {
			return "", fmt.Errorf("gametools: npc_id must not be empty")
		}
		if a.Limit <= 0 {
			a.Limit = 5
		}

		recs, err := store.Relevant(ctx, a.NPCID, a.Query, a.Limit)
		if err != nil {
			return "", fmt.Errorf("gametools: recall memories: %w", err)
		}
		return memory.Summarize(recs), nil
	}
}

// rollArgs is the JSON-decoded input for "roll_dice".
type rollArgs struct {
	Expression string `json:"expression"`
}

// rollResult is the JSON-encoded output of "roll_dice".
type rollResult struct {
	Expression string `json:"expression"`
	Rolls      []int  `json:"rolls"`
	Total      int    `json:"total"`
}

// rollHandler evaluates the dice expression and returns each individual die
// result plus the total.
func rollHandler(_ context.Context, args string) (string, error) {
	var a rollArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("gametools: parse roll_dice arguments: %w", err)
	}
	if a.Expression == "" {
		return "", fmt.Errorf("gametools: expression must not be empty")
	}

	count, sides, modifier, err := parseExpression(a.Expression)
	if err != nil {
		return "", err
	}

	rolls := make([]int, count)
	total := modifier
	for i := range count {
		r := rand.IntN(sides) + 1
		rolls[i] = r
		total += r
	}

	out, err := json.Marshal(rollResult{Expression: a.Expression, Rolls: rolls, Total: total})
	if err != nil {
		return "", fmt.Errorf("gametools: encode roll result: %w", err)
	}
	return string(out), nil
}

// Upper bounds on dice expressions. The tool runs on the world's tool path,
// so an unbounded count would let one model call burn arbitrary CPU.
const (
	maxDiceCount = 100
	maxDiceSides = 1000
)

// parseExpression parses NdS, NdS+M, or NdS-M. N defaults to 1 when
// omitted; S must be ≥ 1; M may be negative. Count and sides are capped at
// [maxDiceCount] and [maxDiceSides].
func parseExpression(expr string) (count, sides, modifier int, err error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	dIdx := strings.Index(expr, "d")
	if dIdx == -1 {
		return 0, 0, 0, fmt.Errorf("gametools: invalid expression %q: missing 'd' separator", expr)
	}

	countStr := expr[:dIdx]
	if countStr == "" {
		count = 1
	} else {
		count, err = strconv.Atoi(countStr)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("gametools: invalid dice count %q in expression %q", countStr, expr)
		}
	}
	if count < 1 {
		return 0, 0, 0, fmt.Errorf("gametools: dice count must be ≥ 1, got %d in expression %q", count, expr)
	}
	if count > maxDiceCount {
		return 0, 0, 0, fmt.Errorf("gametools: dice count must be ≤ %d, got %d in expression %q", maxDiceCount, count, expr)
	}

	rest := expr[dIdx+1:]
	sidesStr := rest
	modStr := ""
	sign := 1
	if i := strings.IndexAny(rest, "+-"); i != -1 {
		sidesStr = rest[:i]
		modStr = rest[i+1:]
		if rest[i] == '-' {
			sign = -1
		}
	}

	sides, err = strconv.Atoi(sidesStr)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("gametools: invalid sides %q in expression %q", sidesStr, expr)
	}
	if sides < 1 {
		return 0, 0, 0, fmt.Errorf("gametools: sides must be ≥ 1, got %d in expression %q", sides, expr)
	}
	if sides > maxDiceSides {
		return 0, 0, 0, fmt.Errorf("gametools: sides must be ≤ %d, got %d in expression %q", maxDiceSides, sides, expr)
	}

	if modStr != "" {
		m, err := strconv.Atoi(modStr)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("gametools: invalid modifier %q in expression %q", modStr, expr)
		}
		modifier = sign * m
	}

	return count, sides, modifier, nil
}

// Tools returns the built-in game tools bound to the given engine and
// memory store, ready for registration with the MCP host.
func Tools(eng *game.Engine, store memory.Store) []tools.Tool {
	return []tools.Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        "world_query",
				Description: "Query the live world state. Without arguments returns the full snapshot (tick, game time, weather, all objects). With object_id returns that object's position, velocity, and type.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"object_id": map[string]any{
							"type":        "string",
							"description": "Optional ID of a single object to inspect.",
						},
					},
				},
				EstimatedDurationMs: 20,
				MaxDurationMs:       100,
				Idempotent:          true,
				CacheableSeconds:    0,
			},
			Handler:     worldQueryHandler(eng),
			DeclaredP50: 20,
			DeclaredMax: 100,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "recall_memories",
				Description: "Retrieve an NPC's memories most relevant to a query, ranked by importance and recency. Returns a numbered summary.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"npc_id": map[string]any{
							"type":        "string",
							"description": "ID of the NPC whose memories to search.",
						},
						"query": map[string]any{
							"type":        "string",
							"description": "Free-text query matched against memory contents.",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of memories to return (default 5).",
						},
					},
					"required": []string{"npc_id"},
				},
				EstimatedDurationMs: 50,
				MaxDurationMs:       500,
				Idempotent:          true,
				CacheableSeconds:    0,
			},
			Handler:     recallHandler(store),
			DeclaredP50: 50,
			DeclaredMax: 500,
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "roll_dice",
				Description: "Evaluate a dice expression and return each individual die result and the total. Supports standard notation such as 2d6+3, 1d20, or 4d8-1.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"expression": map[string]any{
							"type":        "string",
							"description": "Dice expression to evaluate, e.g. 2d6+3, 1d20, 4d8-1",
						},
					},
					"required": []string{"expression"},
				},
				EstimatedDurationMs: 5,
				MaxDurationMs:       20,
				Idempotent:          false,
				CacheableSeconds:    0,
			},
			Handler:     rollHandler,
			DeclaredP50: 5,
			DeclaredMax: 20,
		},
	}
}
