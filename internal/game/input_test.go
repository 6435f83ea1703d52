package game

import "testing"

func TestInputPressEdges(t *testing.T) {
	t.Parallel()

	in := NewInputState()

	in.BeginTick()
	in.Apply(KeyEvent{Key: "w", Down: true})
	if !in.IsPressed("w") || !in.JustPressed("w") {
		t.Error("press not registered")
	}

	// Held across the next tick: pressed, not just-pressed.
	in.BeginTick()
	if !in.IsPressed("w") {
		t.Error("held key lost")
	}
	if in.JustPressed("w") {
		t.Error("just-pressed should clear each tick")
	}

	in.Apply(KeyEvent{Key: "w", Down: false})
	if in.IsPressed("w") || !in.JustReleased("w") {
		t.Error("release not registered")
	}

	in.BeginTick()
	if in.JustReleased("w") {
		t.Error("just-released should clear each tick")
	}
}

func TestInputRepeatDownIsNotEdge(t *testing.T) {
	t.Parallel()

	in := NewInputState()
	in.BeginTick()
	in.Apply(KeyEvent{Key: "a", Down: true})

	in.BeginTick()
	in.Apply(KeyEvent{Key: "a", Down: true}) // key repeat
	if in.JustPressed("a") {
		t.Error("repeat should not count as a new press edge")
	}
}

func TestInputActions(t *testing.T) {
	t.Parallel()

	in := NewInputState()
	in.BindKey("space", "jump")

	fired := 0
	in.OnAction("jump", func() { fired++ })

	in.BeginTick()
	in.Apply(KeyEvent{Key: "space", Down: true})
	in.Apply(KeyEvent{Key: "space", Down: false})
	in.Apply(KeyEvent{Key: "x", Down: true}) // unbound

	if fired != 1 {
		t.Errorf("jump fired %d times, want 1", fired)
	}
}

func TestIsActionPressed(t *testing.T) {
	t.Parallel()

	in := NewInputState()
	in.BindKey("w", "forward")
	in.BindKey("up", "forward")

	in.BeginTick()
	if in.IsActionPressed("forward") {
		t.Error("action pressed with no keys down")
	}
	in.Apply(KeyEvent{Key: "up", Down: true})
	if !in.IsActionPressed("forward") {
		t.Error("action not pressed while a bound key is held")
	}
	in.Apply(KeyEvent{Key: "up", Down: false})
	if in.IsActionPressed("forward") {
		t.Error("action still pressed after release")
	}
}

func TestRebindReplacesBinding(t *testing.T) {
	t.Parallel()

	in := NewInputState()
	in.BindKey("e", "use")
	in.BindKey("e", "interact")

	used, interacted := 0, 0
	in.OnAction("use", func() { used++ })
	in.OnAction("interact", func() { interacted++ })

	in.BeginTick()
	in.Apply(KeyEvent{Key: "e", Down: true})

	if used != 0 || interacted != 1 {
		t.Errorf("used=%d interacted=%d, want 0/1", used, interacted)
	}
}
