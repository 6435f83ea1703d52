// Command ludens is the main entry point for the Ludens world server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/veilgate/ludens/internal/app"
	"github.com/veilgate/ludens/internal/config"
	"github.com/veilgate/ludens/internal/observe"
	"github.com/veilgate/ludens/internal/resilience"
	"github.com/veilgate/ludens/pkg/memory"
	"github.com/veilgate/ludens/pkg/memory/memstore"
	"github.com/veilgate/ludens/pkg/memory/sqlite"
	"github.com/veilgate/ludens/pkg/provider/embeddings"
	oaembed "github.com/veilgate/ludens/pkg/provider/embeddings/openai"
	"github.com/veilgate/ludens/pkg/provider/llm"
	"github.com/veilgate/ludens/pkg/provider/llm/anyllm"
)

// logLevel is shared with the config watcher for hot log level reloads.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ludens: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ludens: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("ludens starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "ludens"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Memory store ──────────────────────────────────────────────────────────
	store, err := reg.CreateStore(cfg.Memory)
	if err != nil {
		slog.Error("failed to create memory store", "err", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("memory store close error", "err", err)
		}
	}()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithStore(store))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
		applyReload(application, config.Diff(old, next), next)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Memory stores ─────────────────────────────────────────────────────────

	reg.RegisterStore(config.StoreMemory, func(mc config.MemoryConfig) (memory.Store, error) {
		var opts []memstore.Option
		if mc.Capacity > 0 {
			opts = append(opts, memstore.WithCapacity(mc.Capacity))
		}
		return memstore.New(opts...), nil
	})
	reg.RegisterStore(config.StoreSQLite, func(mc config.MemoryConfig) (memory.Store, error) {
		var opts []sqlite.Option
		if mc.Capacity > 0 {
			opts = append(opts, sqlite.WithCapacity(mc.Capacity))
		}
		return sqlite.Open(context.Background(), mc.SQLitePath, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry.
// When fallbacks are configured, the primary is wrapped in a resilience
// chain with per-entry circuit breakers.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		primary, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)

		if len(cfg.Providers.LLMFallbacks) == 0 {
			ps.LLM = primary
		} else {
			chain := resilience.NewLLMChain(name, primary, resilience.BreakerConfig{})
			for _, entry := range cfg.Providers.LLMFallbacks {
				p, err := reg.CreateLLM(entry)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
				}
				chain.Add(entry.Name, p)
				slog.Info("provider created", "kind", "llm", "name", entry.Name, "role", "fallback")
			}
			ps.LLM = chain
		}
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		primary, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		slog.Info("provider created", "kind", "embeddings", "name", name, "model", cfg.Providers.Embeddings.Model)

		if len(cfg.Providers.EmbeddingsFallbacks) == 0 {
			ps.Embeddings = primary
		} else {
			chain := resilience.NewEmbeddingsChain(name, primary, resilience.BreakerConfig{})
			for _, entry := range cfg.Providers.EmbeddingsFallbacks {
				p, err := reg.CreateEmbeddings(entry)
				if err != nil {
					return nil, fmt.Errorf("create embeddings fallback %q: %w", entry.Name, err)
				}
				chain.Add(entry.Name, p)
				slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "role", "fallback")
			}
			ps.Embeddings = chain
		}
	}

	return ps, nil
}

// ── Hot reload ────────────────────────────────────────────────────────────────

// applyReload applies the hot-reloadable parts of a config change: log
// level and NPC personalities. Everything else needs a restart.
func applyReload(application *app.App, diff config.ConfigDiff, cfg *config.Config) {
	if diff.LogLevelChanged {
		logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}

	if !diff.NPCsChanged {
		return
	}

	byID := make(map[string]config.NPCConfig, len(cfg.NPCs))
	for _, npc := range cfg.NPCs {
		byID[npc.ID] = npc
	}

	for _, nd := range diff.NPCChanges {
		switch {
		case nd.Added, nd.Removed:
			slog.Warn("NPC roster changes need a restart", "npc", nd.ID)
		case nd.BehaviorChanged:
			slog.Warn("behavior changes need a restart", "npc", nd.ID)
		case nd.PersonalityChanged:
			npc := byID[nd.ID]
			application.Director().RegisterNPC(npc.ID, npc.Name, npc.Personality)
			slog.Info("NPC personality reloaded", "npc", nd.ID)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Ludens — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	backend := cfg.Memory.Backend
	if backend == "" {
		backend = config.StoreMemory
	}
	fmt.Printf("║  Memory store    : %-19s ║\n", backend)
	if cfg.Discord.Token != "" {
		fmt.Printf("║  Discord         : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Discord         : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  NPCs configured : %-19d ║\n", len(cfg.NPCs))
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
