package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/veilgate/ludens/internal/app"
	"github.com/veilgate/ludens/internal/config"
	mcpmock "github.com/veilgate/ludens/internal/mcp/mock"
)

// testConfig builds a minimal degraded-mode config: no providers, fast
// tick, in-process memory store.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		Engine: config.EngineConfig{TickRate: 120, Seed: 7, Scene: "village"},
		NPCs: []config.NPCConfig{
			{
				ID:          "npc-blacksmith",
				Name:        "Maro",
				Personality: "a grumpy blacksmith",
				Emotions:    map[string]float64{"anger": 0.4},
				Behavior:    config.BehaviorConfig{Kind: config.BehaviorWander, Radius: 5, Speed: 1},
			},
			{
				ID:   "npc-guard",
				Name: "Tessa",
			},
		},
	}
}

func TestNewWiresNPCs(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), &app.Providers{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	director := a.Director()
	if got := director.NPCName("npc-blacksmith"); got != "Maro" {
		t.Errorf("NPCName = %q", got)
	}
	if director.BehaviorOf("npc-blacksmith") == nil {
		t.Error("blacksmith should have a wander behavior")
	}
	if director.BehaviorOf("npc-guard") != nil {
		t.Error("guard has no configured behavior")
	}
	if got := director.Emotions("npc-blacksmith")["anger"]; got != 0.4 {
		t.Errorf("anger = %v, want 0.4", got)
	}

	scene := a.Engine().ActiveScene()
	if scene.Name() != "village" {
		t.Errorf("active scene = %q", scene.Name())
	}
	if got := len(scene.ByTag("npc")); got != 2 {
		t.Errorf("npc objects in scene = %d, want 2", got)
	}
}

func TestNewGeneratedLevel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Engine.Rooms = 4

	a, err := app.New(context.Background(), cfg, &app.Providers{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	rooms := 0
	for _, obj := range a.Engine().ActiveScene().Objects() {
		if obj.Property("room_type", nil) != nil {
			rooms++
		}
	}
	if rooms == 0 {
		t.Error("generated level placed no rooms in the scene")
	}
}

func TestNewWithInjectedMCPHost(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MCP.Servers = []config.MCPServerConfig{
		{Name: "lore", Transport: "stdio", Command: "lore-server"},
	}

	host := &mcpmock.Host{}
	a, err := app.New(context.Background(), cfg, &app.Providers{}, app.WithMCPHost(host))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if host.CallCount("RegisterServer") != 1 {
		t.Errorf("RegisterServer calls = %d, want 1", host.CallCount("RegisterServer"))
	}
	if host.CallCount("Calibrate") != 1 {
		t.Errorf("Calibrate calls = %d, want 1", host.CallCount("Calibrate"))
	}
}

func TestNewLuaBehavior(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := filepath.Join(dir, "patrol.lua")
	src := "function update(dt)\nend\n"
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := testConfig()
	cfg.NPCs = []config.NPCConfig{
		{
			ID:       "npc-patrol",
			Name:     "Vex",
			Behavior: config.BehaviorConfig{Kind: config.BehaviorLua, Script: script},
		},
	}

	a, err := app.New(context.Background(), cfg, &app.Providers{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if a.Director().BehaviorOf("npc-patrol") == nil {
		t.Error("lua behavior was not assigned")
	}
}

func TestNewLuaBehaviorMissingScript(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.NPCs = []config.NPCConfig{
		{
			ID:       "npc-patrol",
			Name:     "Vex",
			Behavior: config.BehaviorConfig{Kind: config.BehaviorLua, Script: "/nonexistent.lua"},
		},
	}

	if _, err := app.New(context.Background(), cfg, &app.Providers{}); err == nil {
		t.Fatal("expected error for missing lua script, got nil")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), &app.Providers{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the loop a moment to start, then cancel.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSavePersistsAcrossRuns(t *testing.T) {
	t.Parallel()

	savePath := filepath.Join(t.TempDir(), "world.sav")

	cfg := testConfig()
	cfg.Persistence.SavePath = savePath

	first, err := app.New(context.Background(), cfg, &app.Providers{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if err := first.Director().AddMemory(context.Background(), "npc-blacksmith",
		"The guard bought a sword.", 0.9, "trade"); err != nil {
		t.Fatalf("AddMemory: %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	if err := first.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if _, err := os.Stat(savePath); err != nil {
		t.Fatalf("save file missing: %v", err)
	}

	// A second app over the same config restores the memory.
	second, err := app.New(context.Background(), cfg, &app.Providers{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer second.Shutdown(context.Background())

	recs, err := second.Director().Memories(context.Background(), "npc-blacksmith")
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	found := false
	for _, r := range recs {
		if r.Content == "The guard bought a sword." {
			found = true
		}
	}
	if !found {
		t.Errorf("restored memories missing the trade record: %+v", recs)
	}
}

func TestSQLiteBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Memory.Backend = config.StoreSQLite
	cfg.Memory.SQLitePath = filepath.Join(t.TempDir(), "memories.db")

	a, err := app.New(context.Background(), cfg, &app.Providers{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if err := a.Director().AddMemory(context.Background(), "npc-guard",
		"Saw a storm roll in.", 0.5, "weather"); err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	recs, err := a.Director().Memories(context.Background(), "npc-guard")
	if err != nil {
		t.Fatalf("Memories: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("records = %d, want 1", len(recs))
	}
}
