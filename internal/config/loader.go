package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/veilgate/ludens/internal/mcp"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai"},
}

// envOverrides maps environment variables onto config fields that carry
// secrets or deployment-specific addresses. Values set in the environment
// win over the YAML file.
type envOverrides struct {
	ListenAddr       string `env:"LUDENS_LISTEN_ADDR"`
	LogLevel         string `env:"LUDENS_LOG_LEVEL"`
	LLMAPIKey        string `env:"LUDENS_LLM_API_KEY"`
	EmbeddingsAPIKey string `env:"LUDENS_EMBEDDINGS_API_KEY"`
	PostgresDSN      string `env:"LUDENS_POSTGRES_DSN"`
	DiscordToken     string `env:"LUDENS_DISCORD_TOKEN"`
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with environment overrides applied. It is a convenience wrapper
// around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays LUDENS_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	if ov.ListenAddr != "" {
		cfg.Server.ListenAddr = ov.ListenAddr
	}
	if ov.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(ov.LogLevel)
	}
	if ov.LLMAPIKey != "" {
		cfg.Providers.LLM.APIKey = ov.LLMAPIKey
	}
	if ov.EmbeddingsAPIKey != "" {
		cfg.Providers.Embeddings.APIKey = ov.EmbeddingsAPIKey
	}
	if ov.PostgresDSN != "" {
		cfg.Memory.PostgresDSN = ov.PostgresDSN
	}
	if ov.DiscordToken != "" {
		cfg.Discord.Token = ov.DiscordToken
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.StateInterval < 0 {
		errs = append(errs, fmt.Errorf("server.state_interval %d must not be negative", cfg.Server.StateInterval))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Engine
	if cfg.Engine.TickRate < 0 || cfg.Engine.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("engine.tick_rate %d is out of range [0, 1000]", cfg.Engine.TickRate))
	}
	if cfg.Engine.Rooms < 0 {
		errs = append(errs, fmt.Errorf("engine.rooms %d must not be negative", cfg.Engine.Rooms))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, e := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", e.Name)
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	for _, e := range cfg.Providers.EmbeddingsFallbacks {
		validateProviderName("embeddings", e.Name)
	}

	// Fallbacks behind an empty primary can never be reached.
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallbacks) > 0 {
		errs = append(errs, errors.New("providers.llm_fallbacks set but providers.llm is not configured"))
	}
	if cfg.Providers.Embeddings.Name == "" && len(cfg.Providers.EmbeddingsFallbacks) > 0 {
		errs = append(errs, errors.New("providers.embeddings_fallbacks set but providers.embeddings is not configured"))
	}

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" && len(cfg.NPCs) > 0 {
		slog.Warn("no LLM provider configured; NPC dialog and decisions will run degraded")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.PostgresDSN == "" {
		slog.Warn("providers.embeddings is configured but memory.postgres_dsn is empty; semantic recall will not be available")
	}

	// Memory
	if cfg.Memory.Backend != "" && !cfg.Memory.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("memory.backend %q is invalid; valid values: memory, sqlite", cfg.Memory.Backend))
	}
	if cfg.Memory.Backend == StoreSQLite && cfg.Memory.SQLitePath == "" {
		errs = append(errs, errors.New("memory.sqlite_path is required when memory.backend is sqlite"))
	}
	if cfg.Memory.Capacity < 0 {
		errs = append(errs, fmt.Errorf("memory.capacity %d must not be negative", cfg.Memory.Capacity))
	}

	// NPC duplicate ID detection
	npcIDsSeen := make(map[string]int, len(cfg.NPCs))

	// NPCs
	for i, npc := range cfg.NPCs {
		prefix := fmt.Sprintf("npcs[%d]", i)
		if npc.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := npcIDsSeen[npc.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of npcs[%d]", prefix, npc.ID, prev))
			}
			npcIDsSeen[npc.ID] = i
		}
		if npc.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if npc.BudgetTier != "" && !npc.BudgetTier.IsValid() {
			errs = append(errs, fmt.Errorf("%s.budget_tier %q is invalid; valid values: fast, standard, deep", prefix, npc.BudgetTier))
		}
		for emotion, value := range npc.Emotions {
			if value < 0 || value > 1 {
				errs = append(errs, fmt.Errorf("%s.emotions.%s %.2f is out of range [0, 1]", prefix, emotion, value))
			}
		}

		// Behavior parameter cross-validation
		b := npc.Behavior
		if b.Kind != "" && !b.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("%s.behavior.kind %q is invalid; valid values: wander, follow, lua", prefix, b.Kind))
		}
		switch b.Kind {
		case BehaviorWander:
			if b.Radius <= 0 {
				errs = append(errs, fmt.Errorf("%s.behavior.radius must be positive for wander", prefix))
			}
		case BehaviorFollow:
			if b.Target == "" {
				errs = append(errs, fmt.Errorf("%s.behavior.target is required for follow", prefix))
			}
		case BehaviorLua:
			if b.Script == "" {
				errs = append(errs, fmt.Errorf("%s.behavior.script is required for lua", prefix))
			}
		}
		if b.Speed < 0 {
			errs = append(errs, fmt.Errorf("%s.behavior.speed %.2f must not be negative", prefix, b.Speed))
		}
		if b.MinDistance < 0 {
			errs = append(errs, fmt.Errorf("%s.behavior.min_distance %.2f must not be negative", prefix, b.MinDistance))
		}
	}

	// MCP servers
	for i, srv := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	}

	// Discord bridge needs both halves.
	if (cfg.Discord.Token == "") != (cfg.Discord.ChannelID == "") {
		errs = append(errs, errors.New("discord requires both token and channel_id (or neither)"))
	}

	// Persistence
	if cfg.Persistence.AutosaveSeconds < 0 {
		errs = append(errs, fmt.Errorf("persistence.autosave_seconds %d must not be negative", cfg.Persistence.AutosaveSeconds))
	}
	if cfg.Persistence.AutosaveSeconds > 0 && cfg.Persistence.SavePath == "" {
		errs = append(errs, errors.New("persistence.save_path is required when autosave_seconds is set"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
