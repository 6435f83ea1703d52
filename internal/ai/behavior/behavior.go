// Package behavior implements tick-driven NPC movement and activity
// patterns.
//
// A [Behavior] is attached to a [game.GameObject] and advanced once per
// simulation tick. Behaviors compose: [Composite] runs several in order and
// [StateMachine] switches between named behaviors through guarded
// transitions. [Lua] delegates the update to an embedded script for
// behaviors authored outside the binary.
//
// Every Behavior satisfies [game.Component], so objects can carry their
// behavior directly:
//
//	obj.AddComponent("behavior", behavior.NewWander(rng, 5, 1.5))
package behavior

import (
	"log/slog"

	"github.com/veilgate/ludens/internal/game"
)

// Behavior is a named unit of NPC activity advanced every tick.
type Behavior interface {
	// Name identifies the behavior in logs and state machine configs.
	Name() string

	// Update advances the behavior by delta seconds, mutating obj.
	Update(obj *game.GameObject, delta float64)
}

// Composite runs several behaviors in registration order each tick.
type Composite struct {
	name     string
	children []Behavior
}

// Compile-time checks that all behaviors satisfy game.Component.
var (
	_ game.Component = (*Composite)(nil)
	_ game.Component = (*StateMachine)(nil)
	_ game.Component = (*Wander)(nil)
	_ game.Component = (*Follow)(nil)
	_ game.Component = (*Lua)(nil)
)

// NewComposite creates a composite that updates children in the given order.
func NewComposite(name string, children ...Behavior) *Composite {
	return &Composite{name: name, children: children}
}

// Name implements [Behavior].
func (c *Composite) Name() string { return c.name }

// Update implements [Behavior].
func (c *Composite) Update(obj *game.GameObject, delta float64) {
	for _, child := range c.children {
		child.Update(obj, delta)
	}
}

// Transition moves a [StateMachine] from one state to another when its
// guard reports true.
type Transition struct {
	// From is the state this transition leaves. Empty means any state.
	From string

	// To is the state entered when the guard fires.
	To string

	// Guard is evaluated each tick before the current state updates.
	Guard func(obj *game.GameObject) bool
}

// StateMachine switches between named behaviors. Transitions are checked
// before the current state's update; the first matching transition wins.
type StateMachine struct {
	name        string
	states      map[string]Behavior
	transitions []Transition
	current     string
	log         *slog.Logger
}

// NewStateMachine creates a state machine starting in the initial state.
// States without a registered behavior are valid but idle.
func NewStateMachine(name, initial string) *StateMachine {
	return &StateMachine{
		name:    name,
		states:  make(map[string]Behavior),
		current: initial,
		log:     slog.With("system", "behavior", "machine", name),
	}
}

// AddState registers the behavior driving the named state.
func (m *StateMachine) AddState(state string, b Behavior) *StateMachine {
	m.states[state] = b
	return m
}

// AddTransition appends a transition. Order matters: earlier transitions
// take precedence.
func (m *StateMachine) AddTransition(t Transition) *StateMachine {
	m.transitions = append(m.transitions, t)
	return m
}

// Current returns the active state name.
func (m *StateMachine) Current() string { return m.current }

// Name implements [Behavior].
func (m *StateMachine) Name() string { return m.name }

// Update implements [Behavior].
func (m *StateMachine) Update(obj *game.GameObject, delta float64) {
	for _, t := range m.transitions {
		if t.From != "" && t.From != m.current {
			continue
		}
		if t.To == m.current {
			continue
		}
		if t.Guard != nil && t.Guard(obj) {
			m.log.Debug("state transition", "object", obj.Name(), "from", m.current, "to", t.To)
			m.current = t.To
			break
		}
	}

	if b, ok := m.states[m.current]; ok {
		b.Update(obj, delta)
	}
}
