package behavior

import (
	"math/rand"
	"testing"

	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/game/physics"
)

// stub is a minimal behavior recording how often it updated.
type stub struct {
	name  string
	calls int
}

func (s *stub) Name() string                     { return s.name }
func (s *stub) Update(*game.GameObject, float64) { s.calls++ }

func TestCompositeRunsChildrenInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	first := &recording{name: "first", order: &order}
	second := &recording{name: "second", order: &order}

	c := NewComposite("both", first, second)
	c.Update(game.NewObject("npc", "npc"), 0.1)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

type recording struct {
	name  string
	order *[]string
}

func (r *recording) Name() string                     { return r.name }
func (r *recording) Update(*game.GameObject, float64) { *r.order = append(*r.order, r.name) }

func TestStateMachineGuardedTransition(t *testing.T) {
	t.Parallel()

	obj := game.NewObject("guard", "npc")
	idle := &stub{name: "idle"}
	alert := &stub{name: "alert"}

	alarmed := false
	m := NewStateMachine("guard-brain", "idle").
		AddState("idle", idle).
		AddState("alert", alert).
		AddTransition(Transition{From: "idle", To: "alert", Guard: func(*game.GameObject) bool { return alarmed }})

	m.Update(obj, 0.1)
	if m.Current() != "idle" || idle.calls != 1 {
		t.Fatalf("current = %q, idle calls = %d", m.Current(), idle.calls)
	}

	alarmed = true
	m.Update(obj, 0.1)
	if m.Current() != "alert" {
		t.Fatalf("current = %q, want alert", m.Current())
	}
	// Transition fires before the state update, so the new state ran this tick.
	if alert.calls != 1 {
		t.Errorf("alert calls = %d, want 1", alert.calls)
	}
	if idle.calls != 1 {
		t.Errorf("idle calls = %d, want 1", idle.calls)
	}
}

func TestStateMachineFirstMatchingTransitionWins(t *testing.T) {
	t.Parallel()

	m := NewStateMachine("m", "a").
		AddState("a", &stub{name: "a"}).
		AddTransition(Transition{From: "a", To: "b", Guard: func(*game.GameObject) bool { return true }}).
		AddTransition(Transition{From: "a", To: "c", Guard: func(*game.GameObject) bool { return true }})

	m.Update(game.NewObject("npc", "npc"), 0.1)
	if m.Current() != "b" {
		t.Errorf("current = %q, want b", m.Current())
	}
}

func TestWanderStaysWithinRadius(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	w := NewWander(rng, 5, 2)
	obj := game.NewObject("npc", "npc")
	obj.SetPosition(physics.Vec3(10, 0, 10))
	origin := obj.Position()

	for range 600 {
		w.Update(obj, 1.0/60)
	}

	// Allow slack for overshoot within one step.
	if d := obj.Position().DistanceTo(origin); d > 5.5 {
		t.Errorf("wandered %v from origin, radius is 5", d)
	}
	if obj.Position() == origin {
		t.Error("object never moved")
	}
}

func TestFollowApproachesAndStops(t *testing.T) {
	t.Parallel()

	scene := game.NewScene("main")
	target := game.NewObject("player", "player")
	target.SetPosition(physics.Vec3(10, 0, 0))
	scene.Add(target)

	follower := game.NewObject("dog", "npc")
	scene.Add(follower)

	f := NewFollow(target.ID(), 2, 4, scene.ByID)
	for range 300 {
		f.Update(follower, 1.0/60)
	}

	d := follower.Position().DistanceTo(target.Position())
	if d < 1.9 || d > 2.1 {
		t.Errorf("distance = %v, want ~2 (min distance)", d)
	}
}

func TestFollowMissingTargetIsIdle(t *testing.T) {
	t.Parallel()

	scene := game.NewScene("main")
	follower := game.NewObject("dog", "npc")
	start := follower.Position()

	f := NewFollow("missing", 1, 4, scene.ByID)
	f.Update(follower, 0.1)

	if follower.Position() != start {
		t.Error("follower moved without a target")
	}
}

func TestLuaBehavior(t *testing.T) {
	t.Parallel()

	const script = `
function update(dt)
    local x, y, z = get_position()
    set_position(x + dt, y, z)
    set_property("ticks", (get_property("ticks") or 0) + 1)
end
`
	l, err := NewLua("drift", script)
	if err != nil {
		t.Fatal(err)
	}

	obj := game.NewObject("npc", "npc")
	l.Update(obj, 0.5)
	l.Update(obj, 0.5)

	if pos := obj.Position(); pos.X != 1 {
		t.Errorf("x = %v, want 1", pos.X)
	}
	if ticks := obj.Property("ticks", 0.0); ticks != 2.0 {
		t.Errorf("ticks = %v, want 2", ticks)
	}
}

func TestLuaRequiresUpdateFunction(t *testing.T) {
	t.Parallel()

	if _, err := NewLua("bad", `x = 1`); err == nil {
		t.Error("expected error for script without update(dt)")
	}
}

func TestLuaRuntimeErrorDisablesBehavior(t *testing.T) {
	t.Parallel()

	l, err := NewLua("crash", `function update(dt) error("boom") end`)
	if err != nil {
		t.Fatal(err)
	}

	obj := game.NewObject("npc", "npc")
	l.Update(obj, 0.1)
	if !l.broken {
		t.Error("behavior not marked broken after script error")
	}
	// Further updates are no-ops, not panics.
	l.Update(obj, 0.1)
}
