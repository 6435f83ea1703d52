package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veilgate/ludens/internal/game/physics"
	"github.com/veilgate/ludens/internal/game/weather"
)

func newTestEngine() *Engine {
	e := NewEngine(WithTickRate(60), WithSeed(1))
	e.Weather.SetAutoChange(false)
	return e
}

func TestEngineScenes(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	town := e.CreateScene("town")
	if e.CreateScene("town") != town {
		t.Error("creating an existing scene should return it")
	}
	e.CreateScene("dungeon")

	if err := e.SetActiveScene("nowhere"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("err = %v, want ErrUnknownScene", err)
	}

	if err := e.SetActiveScene("town"); err != nil {
		t.Fatal(err)
	}
	if e.ActiveScene() != town || !town.Active() {
		t.Error("town not active")
	}

	if err := e.SetActiveScene("dungeon"); err != nil {
		t.Fatal(err)
	}
	if town.Active() {
		t.Error("previous scene still active after switch")
	}
	if e.ActiveScene().Name() != "dungeon" {
		t.Errorf("active = %q", e.ActiveScene().Name())
	}
}

func TestEngineStepAdvancesTime(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	delta := 1.0 / 60

	e.step(delta)
	e.step(delta)

	if e.Tick() != 2 {
		t.Errorf("tick = %d, want 2", e.Tick())
	}
	if got := e.GameTime(); got < 2*delta-1e-9 || got > 2*delta+1e-9 {
		t.Errorf("game time = %v, want %v", got, 2*delta)
	}
}

func TestEnginePauseSkipsSimulationNotInput(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	e.TogglePause()

	e.PushInput(KeyEvent{Key: "w", Down: true})
	e.step(1.0 / 60)

	if e.GameTime() != 0 {
		t.Error("paused tick advanced game time")
	}
	if e.Tick() != 1 {
		t.Error("paused tick did not count")
	}
	if !e.Input.IsPressed("w") {
		t.Error("input ignored while paused")
	}
}

func TestEngineDefaultPauseBinding(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	e.PushInput(KeyEvent{Key: "p", Down: true})
	e.step(1.0 / 60)

	if !e.Paused() {
		t.Error("p key did not toggle pause")
	}
}

func TestEngineDoRunsQueuedWork(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	ran := false
	if !e.Do(func() { ran = true }) {
		t.Fatal("work rejected")
	}
	e.step(1.0 / 60)
	if !ran {
		t.Error("queued work did not run")
	}
}

func TestEngineCollisionDispatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	scene := e.CreateScene("arena")
	if err := e.SetActiveScene("arena"); err != nil {
		t.Fatal(err)
	}

	a := NewObject("a", "prop")
	b := NewObject("b", "prop")
	b.SetPosition(physics.Vec3(1, 0, 0))
	scene.Add(a)
	scene.Add(b)

	recA := &recordingComponent{}
	a.AddComponent("rec", recA)

	e.Physics.AddCollider(physics.NewSphere(a, 1))
	e.Physics.AddCollider(physics.NewSphere(b, 1))

	collisionEvents := 0
	e.Events.Subscribe(EventCollision, func(Event) { collisionEvents++ })

	e.step(1.0 / 60)

	if len(recA.collisions) != 1 || recA.collisions[0] != "b" {
		t.Errorf("component collisions = %v", recA.collisions)
	}
	if collisionEvents != 1 {
		t.Errorf("collision events = %d, want 1", collisionEvents)
	}
}

func TestEngineSnapshot(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	scene := e.CreateScene("town")
	if err := e.SetActiveScene("town"); err != nil {
		t.Fatal(err)
	}

	npc := NewObject("blacksmith", "npc_merchant")
	npc.SetPosition(physics.Vec3(3, 0, 4))
	npc.SetTag("merchant")
	scene.Add(npc)

	hidden := NewObject("ghost", "npc")
	scene.Add(hidden)
	hidden.setActive(false)

	e.step(1.0 / 60)
	snap := e.Snapshot()

	if snap.Tick != 1 || snap.Scene != "town" {
		t.Errorf("tick/scene = %d/%q", snap.Tick, snap.Scene)
	}
	if snap.Weather.Condition != "clear" {
		t.Errorf("weather = %q", snap.Weather.Condition)
	}
	if len(snap.Objects) != 1 {
		t.Fatalf("objects = %d, want 1 (inactive excluded)", len(snap.Objects))
	}
	obj := snap.Objects[0]
	if obj.Name != "blacksmith" || obj.Tag != "merchant" || obj.Position != physics.Vec3(3, 0, 4) {
		t.Errorf("object state = %+v", obj)
	}
}

func TestEngineOnTick(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	var ticks []uint64
	e.OnTick(func(s Snapshot) { ticks = append(ticks, s.Tick) })

	e.step(1.0 / 60)
	e.step(1.0 / 60)

	if len(ticks) != 2 || ticks[1] != 2 {
		t.Errorf("observed ticks = %v", ticks)
	}
}

func TestEngineWeatherChangePlaysCue(t *testing.T) {
	t.Parallel()

	e := newTestEngine()

	var played []Event
	e.Events.Subscribe(EventSoundPlay, func(ev Event) { played = append(played, ev) })

	e.Weather.SetWeather(weather.Rain, 0.1)
	e.step(0.2)

	if len(played) != 1 {
		t.Fatalf("sound events = %d, want 1", len(played))
	}
	if cue := played[0].Payload["cue"]; cue != "rain" {
		t.Errorf("cue = %v, want rain", cue)
	}
	if asset, _ := played[0].Payload["asset"].(string); asset == "" {
		t.Error("rain cue has no asset path")
	}
}

func TestEngineRunStopsOnEscape(t *testing.T) {
	t.Parallel()

	e := NewEngine(WithTickRate(120), WithSeed(1))
	e.Weather.SetAutoChange(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.PushInput(KeyEvent{Key: "escape", Down: true})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil on Stop", err)
		}
	case <-ctx.Done():
		t.Fatal("engine did not stop on escape")
	}
}

func TestEngineRunHonorsContext(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop on cancel")
	}
}
