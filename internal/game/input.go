package game

import "log/slog"

// KeyEvent is a single key state change reported by a connected client.
type KeyEvent struct {
	// Key is the lowercase key name (e.g. "w", "escape", "f1").
	Key string

	// Down is true for a press and false for a release.
	Down bool
}

// ActionFunc handles a named input action being triggered. Handlers run on
// the world loop goroutine.
type ActionFunc func()

// InputState tracks keyboard state across ticks and maps keys to named
// actions. Clients feed [KeyEvent] values through the engine inbox; the
// engine applies them at the start of each tick.
//
// Press-edge action handlers fire once per key-down of a bound key.
type InputState struct {
	bindings map[string]string // key name → action name
	handlers map[string][]ActionFunc

	pressed      map[string]bool
	justPressed  map[string]bool
	justReleased map[string]bool

	log *slog.Logger
}

// NewInputState returns an empty input state with no bindings.
func NewInputState() *InputState {
	return &InputState{
		bindings:     make(map[string]string),
		handlers:     make(map[string][]ActionFunc),
		pressed:      make(map[string]bool),
		justPressed:  make(map[string]bool),
		justReleased: make(map[string]bool),
	}
}

func (in *InputState) logger() *slog.Logger {
	if in.log == nil {
		in.log = slog.With("system", "input")
	}
	return in.log
}

// BindKey maps a key name to an action name, replacing any previous binding
// for that key.
func (in *InputState) BindKey(key, action string) {
	in.bindings[key] = action
	in.logger().Debug("key bound", "key", key, "action", action)
}

// OnAction registers handler to run whenever a key bound to action is
// pressed.
func (in *InputState) OnAction(action string, handler ActionFunc) {
	in.handlers[action] = append(in.handlers[action], handler)
}

// BeginTick clears the per-tick just-pressed/just-released sets. The engine
// calls this before applying the tick's key events.
func (in *InputState) BeginTick() {
	clear(in.justPressed)
	clear(in.justReleased)
}

// Apply processes one key event, updating state and firing action handlers
// on press edges.
func (in *InputState) Apply(ev KeyEvent) {
	if ev.Down {
		if !in.pressed[ev.Key] {
			in.justPressed[ev.Key] = true
		}
		in.pressed[ev.Key] = true

		if action, ok := in.bindings[ev.Key]; ok {
			for _, handler := range in.handlers[action] {
				handler()
			}
		}
		return
	}

	if in.pressed[ev.Key] {
		delete(in.pressed, ev.Key)
		in.justReleased[ev.Key] = true
	}
}

// IsPressed reports whether the key is currently held.
func (in *InputState) IsPressed(key string) bool { return in.pressed[key] }

// JustPressed reports whether the key went down this tick.
func (in *InputState) JustPressed(key string) bool { return in.justPressed[key] }

// JustReleased reports whether the key went up this tick.
func (in *InputState) JustReleased(key string) bool { return in.justReleased[key] }

// IsActionPressed reports whether any key bound to action is currently held.
func (in *InputState) IsActionPressed(action string) bool {
	for key, bound := range in.bindings {
		if bound == action && in.pressed[key] {
			return true
		}
	}
	return false
}
