// Package ai implements the NPC intelligence layer: per-NPC emotion and
// memory, LLM-backed dialog generation, and decision making.
//
// The [Director] is the single entry point. The world loop calls
// [Director.Update] every tick to decay emotions; dialog and decision
// requests arrive from client sessions or the Discord bridge on their own
// goroutines and never block the tick.
//
// All provider dependencies are optional. Without an LLM the Director
// degrades to canned behavior (dialog returns "...", decisions pick the
// first option) so the simulation keeps running when no backend is
// reachable.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"

	"github.com/veilgate/ludens/internal/ai/behavior"
	"github.com/veilgate/ludens/internal/ai/emotion"
	"github.com/veilgate/ludens/internal/mcp"
	"github.com/veilgate/ludens/pkg/memory"
	"github.com/veilgate/ludens/pkg/memory/memstore"
	"github.com/veilgate/ludens/pkg/provider/embeddings"
	"github.com/veilgate/ludens/pkg/provider/llm"
)

// DegradedReply is what NPCs say when no LLM provider is configured or the
// provider fails.
const DegradedReply = "..."

const (
	dialogImportance   = 0.7
	decisionImportance = 0.8
	relevantMemories   = 3
)

// ErrUnknownNPC is returned for operations on an unregistered NPC.
var ErrUnknownNPC = errors.New("ai: unknown npc")

// npcState is the Director's per-NPC record. Emotion state and behavior are
// created lazily on first access.
type npcState struct {
	id          string
	name        string
	personality string
	emotions    *emotion.State
	behavior    behavior.Behavior
}

// Director coordinates NPC memory, emotion, behavior, and language.
type Director struct {
	mu   sync.Mutex
	npcs map[string]*npcState

	provider llm.Provider        // nil means degraded mode
	embedder embeddings.Provider // nil means keyword retrieval
	index    memory.SemanticIndex
	store    memory.Store
	host     mcp.Host // nil means no tool calling
	tier     mcp.BudgetTier

	temperature float64
	maxTokens   int

	log *slog.Logger
}

// Option configures a [Director].
type Option func(*Director)

// WithLLM sets the language model provider. Without one the Director runs
// in degraded mode.
func WithLLM(p llm.Provider) Option {
	return func(d *Director) { d.provider = p }
}

// WithEmbeddings enables semantic memory retrieval. Requires a semantic
// index via [WithSemanticIndex] to take effect.
func WithEmbeddings(e embeddings.Provider) Option {
	return func(d *Director) { d.embedder = e }
}

// WithSemanticIndex sets the vector index consulted for memory retrieval
// when an embeddings provider is configured.
func WithSemanticIndex(ix memory.SemanticIndex) Option {
	return func(d *Director) { d.index = ix }
}

// WithStore replaces the default in-memory store with a persistent backend.
func WithStore(s memory.Store) Option {
	return func(d *Director) { d.store = s }
}

// WithMCP offers the host's tools to the LLM during dialog generation.
func WithMCP(h mcp.Host, tier mcp.BudgetTier) Option {
	return func(d *Director) {
		d.host = h
		d.tier = tier
	}
}

// WithSampling overrides the completion temperature and token cap.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(d *Director) {
		d.temperature = temperature
		d.maxTokens = maxTokens
	}
}

// NewDirector creates a Director with an in-memory store and no providers;
// use options to wire the AI stack.
func NewDirector(opts ...Option) *Director {
	d := &Director{
		npcs:        make(map[string]*npcState),
		store:       memstore.New(),
		temperature: 0.8,
		maxTokens:   256,
		log:         slog.With("system", "ai"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterNPC adds an NPC under the Director's control. Re-registering an
// ID updates its name and personality but keeps emotions and memories.
func (d *Director) RegisterNPC(id, name, personality string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st, ok := d.npcs[id]; ok {
		st.name = name
		st.personality = personality
		return
	}
	d.npcs[id] = &npcState{
		id:          id,
		name:        name,
		personality: personality,
		emotions:    emotion.NewState(),
	}
	d.log.Info("npc registered", "id", id, "name", name)
}

// state returns the NPC record, or nil when unregistered.
func (d *Director) state(id string) *npcState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.npcs[id]
}

// NPCIDs returns the IDs of all registered NPCs.
func (d *Director) NPCIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.npcs))
	for id := range d.npcs {
		ids = append(ids, id)
	}
	return ids
}

// NPCName returns the display name for an NPC ID, or the ID itself when
// unregistered.
func (d *Director) NPCName(id string) string {
	if st := d.state(id); st != nil {
		return st.name
	}
	return id
}

// ── Behavior registry ─────────────────────────────────────────────────────

// SetBehavior assigns the NPC's active behavior. The behavior is returned
// by [Director.BehaviorOf] for attachment to the NPC's game object.
func (d *Director) SetBehavior(npcID string, b behavior.Behavior) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.npcs[npcID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNPC, npcID)
	}
	st.behavior = b
	return nil
}

// BehaviorOf returns the NPC's assigned behavior, or nil.
func (d *Director) BehaviorOf(npcID string) behavior.Behavior {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.npcs[npcID]
	if !ok {
		return nil
	}
	return st.behavior
}

// ── Memory ────────────────────────────────────────────────────────────────

// AddMemory stores a memory for the NPC. When embeddings are configured the
// record is embedded and written to the semantic index as well.
func (d *Director) AddMemory(ctx context.Context, npcID, content string, importance float64, category string) error {
	if d.state(npcID) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownNPC, npcID)
	}

	rec := memory.Record{
		NPCID:      npcID,
		Content:    content,
		Importance: importance,
		Category:   category,
	}

	if err := d.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("ai: add memory: %w", err)
	}

	if d.embedder != nil && d.index != nil {
		vec, err := d.embedder.Embed(ctx, content)
		if err != nil {
			// The keyword path still works; semantic indexing is best effort.
			d.log.Warn("embed memory failed", "npc", npcID, "error", err)
			return nil
		}
		rec.Embedding = vec
		if err := d.index.Index(ctx, rec); err != nil {
			d.log.Warn("index memory failed", "npc", npcID, "error", err)
		}
	}
	return nil
}

// Memories returns the NPC's stored memories ranked by importance.
func (d *Director) Memories(ctx context.Context, npcID string, opts ...memory.QueryOpt) ([]memory.Record, error) {
	if d.state(npcID) == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNPC, npcID)
	}
	return d.store.Query(ctx, npcID, opts...)
}

// recall returns the NPC's memories most relevant to the query, semantic
// when the embedding stack is configured, keyword-scored otherwise.
func (d *Director) recall(ctx context.Context, npcID, query string, limit int) []memory.Record {
	if d.embedder != nil && d.index != nil {
		vec, err := d.embedder.Embed(ctx, query)
		if err == nil {
			results, err := d.index.Search(ctx, npcID, vec, limit)
			if err == nil {
				recs := make([]memory.Record, len(results))
				for i, r := range results {
					recs[i] = r.Record
				}
				return recs
			}
			d.log.Warn("semantic search failed, falling back to keywords", "npc", npcID, "error", err)
		} else {
			d.log.Warn("embed query failed, falling back to keywords", "npc", npcID, "error", err)
		}
	}

	recs, err := d.store.Relevant(ctx, npcID, query, limit)
	if err != nil {
		d.log.Warn("memory retrieval failed", "npc", npcID, "error", err)
		return nil
	}
	return recs
}

// ── Emotion ───────────────────────────────────────────────────────────────

// UpdateEmotion sets an emotion to an absolute value, clamped to [0, 1].
// [emotion.State] is not synchronized; the Director's lock guards it.
func (d *Director) UpdateEmotion(npcID, emo string, value float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.npcs[npcID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNPC, npcID)
	}
	st.emotions.Set(emo, value)
	return nil
}

// AdjustEmotion shifts an emotion by delta, clamped to [0, 1].
func (d *Director) AdjustEmotion(npcID, emo string, delta float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.npcs[npcID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNPC, npcID)
	}
	st.emotions.Adjust(emo, delta)
	return nil
}

// Mood describes the NPC's dominant emotion, e.g. "moderately happiness".
func (d *Director) Mood(npcID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.npcs[npcID]
	if !ok {
		return ""
	}
	return st.emotions.Mood()
}

// Emotions returns a copy of the NPC's emotion values.
func (d *Director) Emotions(npcID string) map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.npcs[npcID]
	if !ok {
		return nil
	}
	return st.emotions.Snapshot()
}

// Update advances all NPC emotion states by delta seconds, decaying values
// toward their baselines. Called from the world loop every tick.
func (d *Director) Update(delta float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, st := range d.npcs {
		st.emotions.Update(delta)
	}
}

// ── Dialog ────────────────────────────────────────────────────────────────

// GenerateDialog produces the NPC's spoken reply to the player's input.
// The prompt carries the NPC's mood, its most relevant memories, and the
// scene context; MCP tools are offered when a host is configured. The
// exchange is recorded as a new memory.
//
// Without an LLM provider, or when the provider fails, [DegradedReply] is
// returned with a nil error.
func (d *Director) GenerateDialog(ctx context.Context, npcID, playerInput, sceneContext string) (string, error) {
	d.mu.Lock()
	st, ok := d.npcs[npcID]
	if !ok {
		d.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrUnknownNPC, npcID)
	}
	name, personality, mood := st.name, st.personality, st.emotions.Mood()
	d.mu.Unlock()

	if d.provider == nil {
		return DegradedReply, nil
	}

	memories := d.recall(ctx, npcID, playerInput, relevantMemories)

	req := llm.CompletionRequest{
		SystemPrompt: dialogSystemPrompt(name, personality, mood, memories, sceneContext),
		Messages: []llm.Message{
			{Role: "user", Content: playerInput},
		},
		Temperature: d.temperature,
		MaxTokens:   d.maxTokens,
	}
	if d.host != nil {
		req.Tools = d.host.AvailableTools(d.tier)
	}

	reply, err := d.complete(ctx, req)
	if err != nil {
		d.log.Error("dialog generation failed", "npc", npcID, "error", err)
		return DegradedReply, nil
	}

	line := strings.TrimSpace(reply)
	if line == "" {
		line = DegradedReply
	} else {
		content := fmt.Sprintf("Player said: %q. I replied: %q.", playerInput, line)
		if err := d.AddMemory(ctx, npcID, content, dialogImportance, "dialog"); err != nil {
			d.log.Warn("record dialog memory failed", "npc", npcID, "error", err)
		}
	}
	return line, nil
}

// complete runs one completion, resolving at most one round of tool calls
// through the MCP host before asking for the final text.
func (d *Director) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	resp, err := d.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.ToolCalls) == 0 || d.host == nil {
		return resp.Content, nil
	}

	msgs := append([]llm.Message{}, req.Messages...)
	msgs = append(msgs, llm.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	for _, tc := range resp.ToolCalls {
		result, err := d.host.ExecuteTool(ctx, tc.Name, tc.Arguments)
		content := ""
		switch {
		case err != nil:
			content = "tool error: " + err.Error()
		case result != nil:
			content = result.Content
		}
		msgs = append(msgs, llm.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: tc.ID,
		})
	}

	followUp := req
	followUp.Messages = msgs
	followUp.Tools = nil // one round of tools, then a final answer

	final, err := d.provider.Complete(ctx, followUp)
	if err != nil {
		return "", err
	}
	return final.Content, nil
}

// ── Decisions ─────────────────────────────────────────────────────────────

// MakeDecision asks the NPC to choose between options, informed by its
// emotional state and memories. The LLM's free-text reply is matched back
// to the closest option; an unmatchable reply falls back to the first
// option. The decision is recorded as a new memory.
//
// Without an LLM provider the first option is returned.
func (d *Director) MakeDecision(ctx context.Context, npcID string, options []string, sceneContext string) (string, error) {
	d.mu.Lock()
	st, ok := d.npcs[npcID]
	if !ok {
		d.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrUnknownNPC, npcID)
	}
	name, personality := st.name, st.personality
	emotions := st.emotions.Snapshot()
	d.mu.Unlock()

	if len(options) == 0 {
		return "", errors.New("ai: no options to decide between")
	}

	if d.provider == nil {
		return options[0], nil
	}

	memories := d.recall(ctx, npcID, strings.Join(options, " "), relevantMemories)

	req := llm.CompletionRequest{
		SystemPrompt: decisionSystemPrompt(name, personality, emotions, memories, sceneContext),
		Messages: []llm.Message{
			{Role: "user", Content: decisionQuestion(options)},
		},
		Temperature: d.temperature,
		MaxTokens:   64,
	}

	resp, err := d.provider.Complete(ctx, req)
	if err != nil {
		d.log.Error("decision failed", "npc", npcID, "error", err)
		return options[0], nil
	}

	choice := matchOption(resp.Content, options)

	content := fmt.Sprintf("Decided to %q when faced with: %s.", choice, strings.Join(options, ", "))
	if err := d.AddMemory(ctx, npcID, content, decisionImportance, "decision"); err != nil {
		d.log.Warn("record decision memory failed", "npc", npcID, "error", err)
	}
	return choice, nil
}

// matchOption maps a free-text LLM reply to one of the options: exact
// case-insensitive match first, then the longest option contained in the
// reply, then minimum Levenshtein distance, then the first option.
func matchOption(reply string, options []string) string {
	normalized := strings.ToLower(strings.TrimSpace(reply))

	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), normalized) {
			return opt
		}
	}

	best := ""
	for _, opt := range options {
		if strings.Contains(normalized, strings.ToLower(opt)) && len(opt) > len(best) {
			best = opt
		}
	}
	if best != "" {
		return best
	}

	bestDist := -1
	for _, opt := range options {
		dist := matchr.Levenshtein(normalized, strings.ToLower(opt))
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			best = opt
		}
	}
	if best != "" {
		return best
	}
	return options[0]
}
