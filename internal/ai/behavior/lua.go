package behavior

import (
	"fmt"
	"log/slog"

	lua "github.com/Shopify/go-lua"

	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/game/physics"
)

// Lua runs a behavior authored as a Lua script. The script must define a
// global function update(dt); it is called once per tick with the delta in
// seconds.
//
// The VM exposes accessors bound to the object being updated:
//
//	get_position()        -> x, y, z
//	set_position(x, y, z)
//	get_tag()             -> tag
//	get_property(key)     -> value or nil (numbers, strings, booleans)
//	set_property(key, v)
//
// A Lua value is not safe for concurrent use; each object needs its own.
type Lua struct {
	name  string
	state *lua.State
	log   *slog.Logger

	// obj is the object of the in-flight Update call, read by the bound
	// accessor functions.
	obj *game.GameObject

	broken bool
}

// NewLua compiles the script and binds the object accessors. The returned
// behavior is ready to attach to an object.
func NewLua(name, script string) (*Lua, error) {
	l := &Lua{
		name:  name,
		state: lua.NewState(),
		log:   slog.With("system", "behavior", "script", name),
	}
	lua.OpenLibraries(l.state)
	l.bind()

	if err := lua.DoString(l.state, script); err != nil {
		return nil, fmt.Errorf("lua behavior %q: load script: %w", name, err)
	}

	l.state.Global("update")
	defined := l.state.IsFunction(-1)
	l.state.Pop(1)
	if !defined {
		return nil, fmt.Errorf("lua behavior %q: script must define update(dt)", name)
	}

	return l, nil
}

// Name implements [Behavior].
func (l *Lua) Name() string { return l.name }

// Update implements [Behavior]. A script runtime error disables the
// behavior and is logged once; the simulation keeps running.
func (l *Lua) Update(obj *game.GameObject, delta float64) {
	if l.broken {
		return
	}

	l.obj = obj
	defer func() { l.obj = nil }()

	l.state.Global("update")
	l.state.PushNumber(delta)
	if err := l.state.ProtectedCall(1, 0, 0); err != nil {
		l.broken = true
		l.log.Error("script error, behavior disabled", "object", obj.Name(), "error", err)
	}
}

// bind registers the object accessor functions in the VM.
func (l *Lua) bind() {
	l.state.Register("get_position", func(s *lua.State) int {
		if l.obj == nil {
			return 0
		}
		pos := l.obj.Position()
		s.PushNumber(pos.X)
		s.PushNumber(pos.Y)
		s.PushNumber(pos.Z)
		return 3
	})

	l.state.Register("set_position", func(s *lua.State) int {
		if l.obj == nil {
			return 0
		}
		x, _ := s.ToNumber(1)
		y, _ := s.ToNumber(2)
		z, _ := s.ToNumber(3)
		l.obj.SetPosition(physics.Vec3(x, y, z))
		return 0
	})

	l.state.Register("get_tag", func(s *lua.State) int {
		if l.obj == nil {
			return 0
		}
		s.PushString(l.obj.Tag())
		return 1
	})

	l.state.Register("get_property", func(s *lua.State) int {
		if l.obj == nil {
			return 0
		}
		key, _ := s.ToString(1)
		switch v := l.obj.Property(key, nil).(type) {
		case float64:
			s.PushNumber(v)
		case int:
			s.PushNumber(float64(v))
		case string:
			s.PushString(v)
		case bool:
			s.PushBoolean(v)
		default:
			s.PushNil()
		}
		return 1
	})

	l.state.Register("set_property", func(s *lua.State) int {
		if l.obj == nil {
			return 0
		}
		key, _ := s.ToString(1)
		switch {
		case s.IsNumber(2):
			n, _ := s.ToNumber(2)
			l.obj.SetProperty(key, n)
		case s.IsBoolean(2):
			l.obj.SetProperty(key, s.ToBoolean(2))
		default:
			str, _ := s.ToString(2)
			l.obj.SetProperty(key, str)
		}
		return 0
	})
}
