// Package app wires all Ludens subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run drives the world loop and the network server, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithMCPHost, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veilgate/ludens/internal/ai"
	"github.com/veilgate/ludens/internal/ai/behavior"
	"github.com/veilgate/ludens/internal/bridge/discord"
	"github.com/veilgate/ludens/internal/config"
	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/game/procgen"
	"github.com/veilgate/ludens/internal/health"
	"github.com/veilgate/ludens/internal/mcp"
	"github.com/veilgate/ludens/internal/mcp/mcphost"
	"github.com/veilgate/ludens/internal/mcp/tools/gametools"
	"github.com/veilgate/ludens/internal/persist/snapshot"
	"github.com/veilgate/ludens/internal/server"
	"github.com/veilgate/ludens/pkg/memory"
	"github.com/veilgate/ludens/pkg/memory/memstore"
	"github.com/veilgate/ludens/pkg/memory/postgres"
	"github.com/veilgate/ludens/pkg/memory/sqlite"
	"github.com/veilgate/ludens/pkg/provider/embeddings"
	"github.com/veilgate/ludens/pkg/provider/llm"
)

// defaultScene is used when engine.scene is not configured.
const defaultScene = "main"

// defaultEmbeddingDims matches OpenAI text-embedding-3-small.
const defaultEmbeddingDims = 1536

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry,
// usually wrapped in resilience chains.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and orchestrates the Ludens world server.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	eng      *game.Engine
	director *ai.Director
	srv      *server.Server
	mcpHost  mcp.Host
	store    memory.Store
	index    memory.SemanticIndex
	bridge   *discord.Bridge

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a memory store instead of creating one from config.
func WithStore(s memory.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSemanticIndex injects a semantic index instead of connecting to
// PostgreSQL.
func WithSemanticIndex(ix memory.SemanticIndex) Option {
	return func(a *App) { a.index = ix }
}

// WithMCPHost injects an MCP host instead of creating one from config.
func WithMCPHost(h mcp.Host) Option {
	return func(a *App) { a.mcpHost = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: engine and scene setup,
// memory store connection, MCP server registration + calibration, NPC
// registration with behaviors, server construction, and save restoration.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Engine + scene ────────────────────────────────────────────────
	a.initEngine()

	// ── 2. Memory store + semantic index ─────────────────────────────────
	if err := a.initMemory(ctx); err != nil {
		return nil, fmt.Errorf("app: init memory: %w", err)
	}

	// ── 3. MCP host + built-in tools ─────────────────────────────────────
	if err := a.initMCP(ctx); err != nil {
		return nil, fmt.Errorf("app: init mcp: %w", err)
	}

	// ── 4. Director + NPCs ───────────────────────────────────────────────
	if err := a.initDirector(); err != nil {
		return nil, fmt.Errorf("app: init director: %w", err)
	}

	// ── 5. Saved world state ─────────────────────────────────────────────
	if err := a.restoreSave(ctx); err != nil {
		return nil, fmt.Errorf("app: restore save: %w", err)
	}

	// ── 6. Server ────────────────────────────────────────────────────────
	a.initServer()

	// ── 7. Discord bridge ────────────────────────────────────────────────
	if err := a.initBridge(); err != nil {
		return nil, fmt.Errorf("app: init discord: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initEngine builds the world engine and activates the configured scene.
func (a *App) initEngine() {
	var engOpts []game.Option
	if a.cfg.Engine.TickRate > 0 {
		engOpts = append(engOpts, game.WithTickRate(a.cfg.Engine.TickRate))
	}
	if a.cfg.Engine.Seed != 0 {
		engOpts = append(engOpts, game.WithSeed(a.cfg.Engine.Seed))
	}
	a.eng = game.NewEngine(engOpts...)

	scene := a.cfg.Engine.Scene
	if scene == "" {
		scene = defaultScene
	}
	s := a.eng.CreateScene(scene)
	if err := a.eng.SetActiveScene(scene); err != nil {
		// Cannot happen: the scene was just created.
		slog.Error("activate scene failed", "scene", scene, "err", err)
	}

	if rooms := a.cfg.Engine.Rooms; rooms > 0 {
		gen := procgen.NewGenerator(a.cfg.Engine.Seed)
		gen.Populate(gen.Generate(rooms), s, a.eng.Physics)
	}
}

// initMemory sets up the memory store and, when configured, the pgvector
// semantic index.
func (a *App) initMemory(ctx context.Context) error {
	if a.store == nil {
		switch a.cfg.Memory.Backend {
		case config.StoreSQLite:
			var opts []sqlite.Option
			if a.cfg.Memory.Capacity > 0 {
				opts = append(opts, sqlite.WithCapacity(a.cfg.Memory.Capacity))
			}
			st, err := sqlite.Open(ctx, a.cfg.Memory.SQLitePath, opts...)
			if err != nil {
				return err
			}
			a.store = st
			a.closers = append(a.closers, st.Close)

		default: // config.StoreMemory or empty
			var opts []memstore.Option
			if a.cfg.Memory.Capacity > 0 {
				opts = append(opts, memstore.WithCapacity(a.cfg.Memory.Capacity))
			}
			a.store = memstore.New(opts...)
		}
	}

	if a.index == nil && a.cfg.Memory.PostgresDSN != "" && a.providers.Embeddings != nil {
		dims := a.cfg.Memory.EmbeddingDimensions
		if dims == 0 {
			dims = defaultEmbeddingDims
		}
		ix, err := postgres.NewIndex(ctx, a.cfg.Memory.PostgresDSN, dims)
		if err != nil {
			return err
		}
		a.index = ix
		a.closers = append(a.closers, ix.Close)
	}

	return nil
}

// initMCP sets up the MCP host, registers built-in game tools and external
// servers, and calibrates.
func (a *App) initMCP(ctx context.Context) error {
	if a.mcpHost == nil {
		host := mcphost.New()
		a.mcpHost = host
		a.closers = append(a.closers, host.Close)

		for _, t := range gametools.Tools(a.eng, a.store) {
			builtin := mcphost.BuiltinTool{
				Definition:  t.Definition,
				Handler:     t.Handler,
				DeclaredP50: t.DeclaredP50,
				DeclaredMax: t.DeclaredMax,
			}
			if err := host.RegisterBuiltin(builtin); err != nil {
				return fmt.Errorf("register builtin tool %q: %w", t.Definition.Name, err)
			}
		}
	}

	for _, srv := range a.cfg.MCP.Servers {
		serverCfg := mcp.ServerConfig{
			Name:      srv.Name,
			Transport: srv.Transport,
			Command:   srv.Command,
			URL:       srv.URL,
			Env:       srv.Env,
		}
		if err := a.mcpHost.RegisterServer(ctx, serverCfg); err != nil {
			return fmt.Errorf("register mcp server %q: %w", srv.Name, err)
		}
		slog.Info("registered MCP server", "name", srv.Name)
	}

	if err := a.mcpHost.Calibrate(ctx); err != nil {
		slog.Warn("MCP calibration failed, using declared latencies", "err", err)
	}

	return nil
}

// initDirector creates the AI director, registers all configured NPCs with
// their behaviors and starting emotions, and hooks emotion decay into the
// world loop.
func (a *App) initDirector() error {
	dirOpts := []ai.Option{
		ai.WithStore(a.store),
	}
	if a.providers.LLM != nil {
		dirOpts = append(dirOpts, ai.WithLLM(a.providers.LLM))
	}
	if a.providers.Embeddings != nil {
		dirOpts = append(dirOpts, ai.WithEmbeddings(a.providers.Embeddings))
	}
	if a.index != nil {
		dirOpts = append(dirOpts, ai.WithSemanticIndex(a.index))
	}
	if a.mcpHost != nil {
		dirOpts = append(dirOpts, ai.WithMCP(a.mcpHost, broadestTier(a.cfg.NPCs)))
	}
	a.director = ai.NewDirector(dirOpts...)

	if len(a.cfg.NPCs) == 0 {
		slog.Warn("no NPCs configured")
	}

	scene := a.eng.ActiveScene()
	for i, npc := range a.cfg.NPCs {
		a.director.RegisterNPC(npc.ID, npc.Name, npc.Personality)

		for emo, value := range npc.Emotions {
			if err := a.director.UpdateEmotion(npc.ID, emo, value); err != nil {
				return fmt.Errorf("set emotion for NPC %q: %w", npc.ID, err)
			}
		}

		obj := game.NewObject(npc.Name, "npc")
		obj.SetTag("npc")
		obj.SetProperty("npc_id", npc.ID)

		b, err := a.buildBehavior(npc, int64(i))
		if err != nil {
			return fmt.Errorf("build behavior for NPC %q: %w", npc.ID, err)
		}
		if b != nil {
			if err := a.director.SetBehavior(npc.ID, b); err != nil {
				return fmt.Errorf("assign behavior for NPC %q: %w", npc.ID, err)
			}
			obj.AddComponent("behavior", b)
		}

		scene.Add(obj)
		slog.Info("registered NPC", "id", npc.ID, "name", npc.Name,
			"behavior", npc.Behavior.Kind, "tier", npc.BudgetTier.Tier())
	}

	// Emotion decay runs on the world loop, once per tick.
	delta := 1.0 / float64(a.eng.TickRate())
	a.eng.OnTick(func(game.Snapshot) {
		a.director.Update(delta)
	})

	return nil
}

// buildBehavior constructs the configured ambient behavior for an NPC.
// Returns nil when no behavior is configured.
func (a *App) buildBehavior(npc config.NPCConfig, ordinal int64) (behavior.Behavior, error) {
	scene := a.eng.ActiveScene()
	b := npc.Behavior

	switch b.Kind {
	case "":
		return nil, nil

	case config.BehaviorWander:
		speed := b.Speed
		if speed == 0 {
			speed = 1
		}
		rng := rand.New(rand.NewSource(a.cfg.Engine.Seed + ordinal))
		return behavior.NewWander(rng, b.Radius, speed), nil

	case config.BehaviorFollow:
		speed := b.Speed
		if speed == 0 {
			speed = 1
		}
		lookup := func(id string) *game.GameObject {
			if obj := scene.ByID(id); obj != nil {
				return obj
			}
			return scene.ByName(id)
		}
		return behavior.NewFollow(b.Target, b.MinDistance, speed, lookup), nil

	case config.BehaviorLua:
		script, err := os.ReadFile(b.Script)
		if err != nil {
			return nil, fmt.Errorf("read lua script %q: %w", b.Script, err)
		}
		return behavior.NewLua(npc.ID, string(script))

	default:
		return nil, fmt.Errorf("unknown behavior kind %q", b.Kind)
	}
}

// restoreSave loads the save file when one exists at the configured path.
// A missing file is a fresh world, not an error.
func (a *App) restoreSave(ctx context.Context) error {
	path := a.cfg.Persistence.SavePath
	if path == "" {
		return nil
	}

	save, err := snapshot.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := snapshot.Restore(ctx, a.director, save); err != nil {
		return err
	}
	slog.Info("restored save", "path", path, "saved_at", save.SavedAt, "npcs", len(save.NPCs))
	return nil
}

// initServer builds the HTTP/websocket server and its readiness checks.
func (a *App) initServer() {
	var srvOpts []server.Option
	if a.cfg.Server.ListenAddr != "" {
		srvOpts = append(srvOpts, server.WithAddr(a.cfg.Server.ListenAddr))
	}
	if a.cfg.Server.StateInterval > 0 {
		srvOpts = append(srvOpts, server.WithStateInterval(a.cfg.Server.StateInterval))
	}

	srvOpts = append(srvOpts, server.WithHealthCheckers(health.Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := a.store.Query(ctx, "__readyz__", memory.WithLimit(1))
			return err
		},
	}))

	a.srv = server.New(a.eng, a.director, srvOpts...)
}

// initBridge connects the optional Discord bridge.
func (a *App) initBridge() error {
	if a.cfg.Discord.Token == "" {
		return nil
	}
	br, err := discord.New(discord.Config{
		Token:     a.cfg.Discord.Token,
		ChannelID: a.cfg.Discord.ChannelID,
	}, a.director)
	if err != nil {
		return err
	}
	a.bridge = br
	a.closers = append(a.closers, br.Close)
	br.WatchWorld(a.eng.Events)
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Engine returns the world engine.
func (a *App) Engine() *game.Engine { return a.eng }

// Director returns the AI director.
func (a *App) Director() *ai.Director { return a.director }

// Server returns the network server.
func (a *App) Server() *server.Server { return a.srv }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the world loop, the network server, and the autosave ticker,
// blocking until ctx is cancelled or a subsystem fails. On cancellation a
// final save is written, while the loop still runs, before the subsystems
// are stopped.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	g, runCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		// The loop can also stop on its own (escape key); take the rest
		// of the app down with it.
		defer cancel()
		if err := a.eng.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("world loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.srv.Run(runCtx)
	})

	if a.cfg.Persistence.AutosaveSeconds > 0 {
		g.Go(func() error {
			a.autosaveLoop(runCtx)
			return nil
		})
	}

	// Final save on external cancellation. Capture needs a live world loop,
	// so the save runs before runCtx is cancelled.
	g.Go(func() error {
		select {
		case <-ctx.Done():
			if a.cfg.Persistence.SavePath != "" {
				saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer saveCancel()
				if err := a.save(saveCtx); err != nil {
					slog.Warn("final save failed", "err", err)
				}
			}
			cancel()
		case <-runCtx.Done():
		}
		return nil
	})

	if a.bridge != nil {
		a.bridge.Announce("The world is waking up.")
	}

	slog.Info("app running",
		"addr", a.srv.Addr(),
		"tick_rate", a.eng.TickRate(),
		"npcs", len(a.cfg.NPCs),
	)

	return g.Wait()
}

// autosaveLoop writes a save file every configured interval until ctx ends.
func (a *App) autosaveLoop(ctx context.Context) {
	interval := time.Duration(a.cfg.Persistence.AutosaveSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.save(ctx); err != nil {
				slog.Warn("autosave failed", "err", err)
			}
		}
	}
}

// save captures the world and writes it to the configured path.
func (a *App) save(ctx context.Context) error {
	save, err := snapshot.Capture(ctx, a.eng, a.director)
	if err != nil {
		return err
	}
	if err := snapshot.Write(a.cfg.Persistence.SavePath, save); err != nil {
		return err
	}
	slog.Info("world saved", "path", a.cfg.Persistence.SavePath, "tick", save.World.Tick)
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// broadestTier returns the most permissive budget tier configured across
// NPCs, so the host-wide tool catalogue covers every NPC's allowance.
func broadestTier(npcs []config.NPCConfig) mcp.BudgetTier {
	tier := mcp.BudgetFast
	for _, npc := range npcs {
		if t := npc.BudgetTier.Tier(); t > tier {
			tier = t
		}
	}
	return tier
}
