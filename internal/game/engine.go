package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/veilgate/ludens/internal/game/physics"
	"github.com/veilgate/ludens/internal/game/weather"
)

// Engine event names.
const (
	EventWeatherChanged = "weather.changed"
	EventLightning      = "weather.lightning"
	eventThunder        = "weather.thunder"
	EventCollision      = "collision"
)

// Default input actions bound by the engine.
const (
	ActionQuit        = "quit"
	ActionTogglePause = "toggle_pause"
)

// ErrUnknownScene is returned when activating a scene that was never created.
var ErrUnknownScene = errors.New("game: unknown scene")

const defaultTickRate = 60

// defaultCues maps the built-in weather cue names to client-side asset
// paths. Clients resolve these against their own asset bundle; the server
// only forwards them in sound events.
var defaultCues = map[string]string{
	"rain":       "sounds/weather/rain.ogg",
	"heavy_rain": "sounds/weather/heavy_rain.ogg",
	"storm":      "sounds/weather/storm.ogg",
	"snow":       "sounds/weather/snow.ogg",
	"blizzard":   "sounds/weather/blizzard.ogg",
	"wind":       "sounds/weather/wind.ogg",
	"lightning":  "sounds/weather/lightning.ogg",
	"thunder":    "sounds/weather/thunder.ogg",
}

// inbox sizes; producers drop rather than block when the loop falls behind.
const (
	inputBuffer = 256
	workBuffer  = 128
)

// ObjectState is one object's transform in a [Snapshot].
type ObjectState struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Tag      string          `json:"tag,omitempty"`
	Position physics.Vector3 `json:"position"`
	Rotation physics.Vector3 `json:"rotation"`
	Scale    physics.Vector3 `json:"scale"`
}

// WeatherState is the weather portion of a [Snapshot].
type WeatherState struct {
	Condition     string          `json:"condition"`
	Description   string          `json:"description"`
	ParticleCount int             `json:"particle_count"`
	ParticleColor weather.RGB     `json:"particle_color"`
	WindDirection physics.Vector3 `json:"wind_direction"`
	WindStrength  float64         `json:"wind_strength"`
	FogDensity    float64         `json:"fog_density"`
	AmbientLight  float64         `json:"ambient_light"`
	Visibility    float64         `json:"visibility"`
}

// Snapshot is a full copy of the observable world state at the end of a
// tick. It is safe to hand to other goroutines.
type Snapshot struct {
	Tick     uint64        `json:"tick"`
	GameTime float64       `json:"game_time"`
	FPS      float64       `json:"fps"`
	Paused   bool          `json:"paused"`
	Scene    string        `json:"scene"`
	Weather  WeatherState  `json:"weather"`
	Objects  []ObjectState `json:"objects"`
}

// TickFunc observes the snapshot produced at the end of each tick. It runs
// on the world loop goroutine and must not block.
type TickFunc func(Snapshot)

// Engine owns the world: physics, weather, events, input, sound and scenes.
// All simulation state is mutated by a single goroutine inside [Engine.Run];
// other goroutines communicate through [Engine.PushInput] and [Engine.Do].
type Engine struct {
	Physics *physics.System
	Weather *weather.System
	Events  *EventBus
	Input   *InputState
	Sound   *SoundSystem

	tickRate int
	rng      *rand.Rand

	scenes map[string]*Scene
	active *Scene

	inputCh chan KeyEvent
	workCh  chan func()

	stopOnce sync.Once
	stopCh   chan struct{}

	paused    bool
	tick      uint64
	gameTime  float64
	fps       float64
	fpsFrames int
	fpsSince  time.Time

	onTick []TickFunc

	log *slog.Logger
}

// Option configures an [Engine].
type Option func(*Engine)

// WithTickRate overrides the simulation rate in ticks per second.
func WithTickRate(hz int) Option {
	return func(e *Engine) {
		if hz > 0 {
			e.tickRate = hz
		}
	}
}

// WithSeed seeds the engine's randomised systems (weather timing, thunder
// delay) for reproducible runs.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed))
		e.Weather = weather.NewSystem(seed)
	}
}

// NewEngine assembles an engine with default bindings (escape quits,
// p toggles pause) and weather wired to the event bus and sound system.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		Physics:  physics.NewSystem(),
		Weather:  weather.NewSystem(time.Now().UnixNano()),
		Events:   NewEventBus(),
		Input:    NewInputState(),
		tickRate: defaultTickRate,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		scenes:   make(map[string]*Scene),
		inputCh:  make(chan KeyEvent, inputBuffer),
		workCh:   make(chan func(), workBuffer),
		stopCh:   make(chan struct{}),
		log:      slog.With("system", "engine"),
	}
	e.Sound = NewSoundSystem(e.Events)
	for name, asset := range defaultCues {
		e.Sound.RegisterCue(name, asset)
	}

	for _, opt := range opts {
		opt(e)
	}

	e.Input.BindKey("escape", ActionQuit)
	e.Input.BindKey("p", ActionTogglePause)
	e.Input.OnAction(ActionQuit, e.Stop)
	e.Input.OnAction(ActionTogglePause, e.TogglePause)

	e.Weather.OnChange(func(from, to weather.Condition, params weather.Params) {
		e.log.Info("weather changed", "from", from, "to", to)
		e.Events.Trigger(Event{Name: EventWeatherChanged, Payload: map[string]any{
			"from": string(from),
			"to":   string(to),
		}})
		if params.SoundCue != "" {
			e.Sound.Play(params.SoundCue, 1.0, -1)
		}
	})
	e.Weather.OnLightning(func(intensity float64) {
		e.Events.Trigger(Event{Name: EventLightning, Payload: map[string]any{
			"intensity": intensity,
		}})
		e.Sound.Play("lightning", 1.0, 0)
		delay := time.Duration((e.rng.Float64()*2.5 + 0.5) * float64(time.Second))
		e.Events.Schedule(delay, Event{Name: eventThunder})
	})
	e.Events.Subscribe(eventThunder, func(Event) {
		e.Sound.Play("thunder", 1.0, 0)
	})

	return e
}

// ── Scenes ────────────────────────────────────────────────────────────────

// CreateScene creates and registers an empty scene. Creating an existing
// name returns the existing scene.
func (e *Engine) CreateScene(name string) *Scene {
	if s, ok := e.scenes[name]; ok {
		return s
	}
	s := NewScene(name)
	e.scenes[name] = s
	return s
}

// SetActiveScene deactivates the current scene and activates the named one.
func (e *Engine) SetActiveScene(name string) error {
	next, ok := e.scenes[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	if e.active == next {
		return nil
	}
	if e.active != nil {
		e.active.deactivate()
	}
	e.active = next
	next.activate()
	return nil
}

// ActiveScene returns the active scene, or nil before the first activation.
func (e *Engine) ActiveScene() *Scene { return e.active }

// ── Cross-goroutine inboxes ───────────────────────────────────────────────

// PushInput queues a client key event for the next tick. Events are dropped
// with a warning when the inbox is full.
func (e *Engine) PushInput(ev KeyEvent) {
	select {
	case e.inputCh <- ev:
	default:
		e.log.Warn("input inbox full, dropping event", "key", ev.Key)
	}
}

// Do queues fn to run on the world loop goroutine at the start of the next
// tick. It reports whether the work was accepted. AI results and server
// commands re-enter the simulation this way.
func (e *Engine) Do(fn func()) bool {
	select {
	case e.workCh <- fn:
		return true
	default:
		e.log.Warn("work inbox full, dropping task")
		return false
	}
}

// ── Loop ──────────────────────────────────────────────────────────────────

// OnTick registers an observer for end-of-tick snapshots.
func (e *Engine) OnTick(fn TickFunc) { e.onTick = append(e.onTick, fn) }

// Stop requests a graceful loop exit. Safe to call multiple times and from
// any goroutine.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// TogglePause flips the pause flag. While paused the simulation does not
// advance but input and queued work are still processed.
func (e *Engine) TogglePause() {
	e.paused = !e.paused
	e.log.Info("pause toggled", "paused", e.paused)
}

// Paused reports whether the simulation is paused.
func (e *Engine) Paused() bool { return e.paused }

// Tick returns the number of completed ticks.
func (e *Engine) Tick() uint64 { return e.tick }

// GameTime returns the accumulated simulated time in seconds. Paused ticks
// do not advance it.
func (e *Engine) GameTime() float64 { return e.gameTime }

// FPS returns the measured tick rate over the last second.
func (e *Engine) FPS() float64 { return e.fps }

// TickRate returns the configured tick rate in Hz.
func (e *Engine) TickRate() int { return e.tickRate }

// Run drives the simulation until ctx is cancelled or [Engine.Stop] is
// called. It must be called exactly once; the calling goroutine becomes the
// world loop.
func (e *Engine) Run(ctx context.Context) error {
	delta := 1.0 / float64(e.tickRate)
	ticker := time.NewTicker(time.Second / time.Duration(e.tickRate))
	defer ticker.Stop()

	e.fpsSince = time.Now()
	e.fps = float64(e.tickRate)
	e.log.Info("world loop started", "tick_rate", e.tickRate)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("world loop stopping", "reason", "context", "tick", e.tick)
			return ctx.Err()
		case <-e.stopCh:
			e.log.Info("world loop stopping", "reason", "stop", "tick", e.tick)
			return nil
		case <-ticker.C:
			e.step(delta)
		}
	}
}

// step runs one full tick.
func (e *Engine) step(delta float64) {
	e.drainInboxes()

	if !e.paused {
		e.gameTime += delta
		e.Events.Step()
		e.Weather.Step(delta)
		e.stepPhysics(delta)
		if e.active != nil {
			e.active.Update(delta)
			e.Weather.ApplyWind(e.sceneBodies(), delta)
		}
	}

	e.tick++
	e.measureFPS()

	if len(e.onTick) > 0 {
		snap := e.Snapshot()
		for _, fn := range e.onTick {
			fn(snap)
		}
	}
}

// drainInboxes applies all pending work and input without blocking.
func (e *Engine) drainInboxes() {
work:
	for {
		select {
		case fn := <-e.workCh:
			fn()
		default:
			break work
		}
	}

	e.Input.BeginTick()
	for {
		select {
		case ev := <-e.inputCh:
			e.Input.Apply(ev)
		default:
			return
		}
	}
}

// stepPhysics advances the physics system and forwards contacts to the
// involved objects and the event bus.
func (e *Engine) stepPhysics(delta float64) {
	for _, pair := range e.Physics.Step(delta) {
		a, aOK := pair.A.Body().(*GameObject)
		b, bOK := pair.B.Body().(*GameObject)
		if aOK && bOK {
			a.NotifyCollision(b)
			b.NotifyCollision(a)
		}
		e.Events.Trigger(Event{Name: EventCollision, Payload: map[string]any{
			"a": pair.A.Body().ID(),
			"b": pair.B.Body().ID(),
		}})
	}
}

// sceneBodies returns the active objects of the active scene as physics
// bodies.
func (e *Engine) sceneBodies() []physics.Body {
	objs := e.active.Objects()
	bodies := make([]physics.Body, 0, len(objs))
	for _, obj := range objs {
		if obj.Active() {
			bodies = append(bodies, obj)
		}
	}
	return bodies
}

func (e *Engine) measureFPS() {
	e.fpsFrames++
	if elapsed := time.Since(e.fpsSince); elapsed >= time.Second {
		e.fps = float64(e.fpsFrames) / elapsed.Seconds()
		e.fpsFrames = 0
		e.fpsSince = time.Now()
	}
}

// Snapshot copies the observable world state. Must be called from the world
// loop goroutine (or before [Engine.Run] starts).
func (e *Engine) Snapshot() Snapshot {
	params := e.Weather.Params()
	snap := Snapshot{
		Tick:     e.tick,
		GameTime: e.gameTime,
		FPS:      e.fps,
		Paused:   e.paused,
		Weather: WeatherState{
			Condition:     string(e.Weather.Current()),
			Description:   e.Weather.Description(),
			ParticleCount: params.ParticleCount,
			ParticleColor: params.ParticleColor,
			WindDirection: params.WindDirection,
			WindStrength:  params.WindStrength,
			FogDensity:    params.FogDensity,
			AmbientLight:  e.Weather.AmbientLight(),
			Visibility:    params.Visibility,
		},
	}
	if e.active == nil {
		return snap
	}
	snap.Scene = e.active.Name()
	for _, obj := range e.active.Objects() {
		if !obj.Active() {
			continue
		}
		snap.Objects = append(snap.Objects, ObjectState{
			ID:       obj.ID(),
			Name:     obj.Name(),
			Type:     obj.Type(),
			Tag:      obj.Tag(),
			Position: obj.Position(),
			Rotation: obj.Rotation(),
			Scale:    obj.Scale(),
		})
	}
	return snap
}
