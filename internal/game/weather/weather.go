// Package weather simulates dynamic environmental conditions: timed
// transitions between conditions, lightning during storms, and wind forces
// applied to world bodies.
//
// The package is driven by the engine's world loop and reports changes
// through callbacks so it stays independent of the event bus.
package weather

import (
	"math/rand"

	"github.com/veilgate/ludens/internal/game/physics"
)

// Condition is a named weather state.
type Condition string

const (
	Clear     Condition = "clear"
	Cloudy    Condition = "cloudy"
	Rain      Condition = "rain"
	HeavyRain Condition = "heavy_rain"
	Storm     Condition = "storm"
	Snow      Condition = "snow"
	Blizzard  Condition = "blizzard"
	Fog       Condition = "fog"
	Windy     Condition = "windy"
)

// All lists every condition, in a stable order.
var All = []Condition{Clear, Cloudy, Rain, HeavyRain, Storm, Snow, Blizzard, Fog, Windy}

// IsValid reports whether c is a known condition.
func (c Condition) IsValid() bool {
	for _, known := range All {
		if c == known {
			return true
		}
	}
	return false
}

// RGB is an 8-bit color triple carried in snapshots for client rendering.
type RGB [3]uint8

// Params describes how a condition looks and behaves. Particle and fog
// fields are rendering hints forwarded to clients; wind, lightning and
// visibility affect the simulation.
type Params struct {
	ParticleCount int
	ParticleSize  float64
	ParticleSpeed float64
	ParticleColor RGB
	ParticleAlpha uint8

	WindDirection physics.Vector3
	WindStrength  float64

	FogDensity float64
	FogColor   RGB

	LightningChance float64
	SoundCue        string

	AmbientLight float64
	Visibility   float64
}

// ParamsFor returns the parameter table entry for a condition.
func ParamsFor(c Condition) Params {
	p := Params{
		ParticleSize:  1.0,
		ParticleSpeed: 1.0,
		ParticleColor: RGB{255, 255, 255},
		ParticleAlpha: 255,
		FogColor:      RGB{200, 200, 200},
		AmbientLight:  1.0,
		Visibility:    100.0,
	}
	switch c {
	case Clear:
		p.WindStrength = 0.1
	case Cloudy:
		p.WindStrength = 0.3
		p.FogDensity = 0.1
		p.AmbientLight = 0.8
		p.Visibility = 80
	case Rain:
		p.ParticleCount = 100
		p.ParticleSize = 0.8
		p.ParticleSpeed = 8
		p.ParticleColor = RGB{100, 150, 255}
		p.ParticleAlpha = 180
		p.WindDirection = physics.Vec3(0.2, -1, 0)
		p.WindStrength = 0.5
		p.FogDensity = 0.2
		p.SoundCue = "rain"
		p.AmbientLight = 0.7
		p.Visibility = 60
	case HeavyRain:
		p.ParticleCount = 300
		p.ParticleSpeed = 12
		p.ParticleColor = RGB{80, 120, 255}
		p.ParticleAlpha = 200
		p.WindDirection = physics.Vec3(0.4, -1, 0)
		p.WindStrength = 0.8
		p.FogDensity = 0.4
		p.SoundCue = "heavy_rain"
		p.AmbientLight = 0.5
		p.Visibility = 40
	case Storm:
		p.ParticleCount = 250
		p.ParticleSize = 1.2
		p.ParticleSpeed = 15
		p.ParticleColor = RGB{70, 100, 200}
		p.ParticleAlpha = 220
		p.WindDirection = physics.Vec3(0.8, -1, 0.2)
		p.WindStrength = 1.2
		p.FogDensity = 0.5
		p.LightningChance = 0.02
		p.SoundCue = "storm"
		p.AmbientLight = 0.4
		p.Visibility = 30
	case Snow:
		p.ParticleCount = 80
		p.ParticleSize = 0.6
		p.ParticleSpeed = 2
		p.ParticleColor = RGB{240, 240, 255}
		p.ParticleAlpha = 200
		p.WindDirection = physics.Vec3(0.1, -0.5, 0)
		p.WindStrength = 0.3
		p.FogDensity = 0.3
		p.SoundCue = "snow"
		p.AmbientLight = 0.8
		p.Visibility = 50
	case Blizzard:
		p.ParticleCount = 250
		p.ParticleSize = 0.7
		p.ParticleSpeed = 6
		p.ParticleColor = RGB{230, 230, 255}
		p.ParticleAlpha = 220
		p.WindDirection = physics.Vec3(0.7, -0.7, 0.2)
		p.WindStrength = 1.5
		p.FogDensity = 0.7
		p.SoundCue = "blizzard"
		p.AmbientLight = 0.6
		p.Visibility = 20
	case Fog:
		p.FogDensity = 0.8
		p.FogColor = RGB{180, 180, 180}
		p.WindStrength = 0.1
		p.AmbientLight = 0.7
		p.Visibility = 15
	case Windy:
		p.ParticleCount = 20
		p.ParticleSize = 0.5
		p.ParticleSpeed = 3
		p.ParticleColor = RGB{200, 200, 150}
		p.ParticleAlpha = 150
		p.WindDirection = physics.Vec3(1, -0.1, 0.2)
		p.WindStrength = 1.8
		p.SoundCue = "wind"
		p.AmbientLight = 0.9
		p.Visibility = 70
	}
	return p
}

// ChangeFunc is notified when a transition to a new condition completes.
type ChangeFunc func(from, to Condition, params Params)

// LightningFunc is notified when a lightning strike fires, with the flash
// intensity in [0.8, 1.0].
type LightningFunc func(intensity float64)

const (
	flashDuration = 0.1

	// Wind only displaces objects above this strength.
	windThreshold = 0.5
)

// System runs the weather simulation. It is owned by the engine and stepped
// from the world loop goroutine.
type System struct {
	current Condition
	target  Condition
	params  Params

	// transitionProgress runs 0..1; 1 means no transition in flight.
	transitionProgress float64
	transitionDuration float64

	autoChange      bool
	timeUntilChange float64

	timeUntilStrike float64
	flashTimer      float64
	flashIntensity  float64

	rng *rand.Rand

	onChange    ChangeFunc
	onLightning LightningFunc
}

// NewSystem returns a weather system starting clear, with auto-change
// enabled and the first change due in five minutes. The seed drives all
// randomised timing.
func NewSystem(seed int64) *System {
	s := &System{
		current:            Clear,
		target:             Clear,
		params:             ParamsFor(Clear),
		transitionProgress: 1.0,
		transitionDuration: 10.0,
		autoChange:         true,
		timeUntilChange:    300.0,
		rng:                rand.New(rand.NewSource(seed)),
	}
	s.timeUntilStrike = s.rng.Float64()*10 + 5
	return s
}

// OnChange sets the transition-complete callback.
func (s *System) OnChange(fn ChangeFunc) { s.onChange = fn }

// OnLightning sets the lightning strike callback.
func (s *System) OnLightning(fn LightningFunc) { s.onLightning = fn }

// SetAutoChange enables or disables randomised weather changes.
func (s *System) SetAutoChange(enabled bool) { s.autoChange = enabled }

// Current returns the settled condition (the transition source while one is
// in flight).
func (s *System) Current() Condition { return s.current }

// Target returns the condition being transitioned to.
func (s *System) Target() Condition { return s.target }

// Transitioning reports whether a transition is in flight.
func (s *System) Transitioning() bool { return s.transitionProgress < 1.0 }

// Params returns the effective parameters, interpolated mid-transition.
func (s *System) Params() Params { return s.params }

// AmbientLight returns the effective ambient light, raised to the flash
// intensity while a lightning flash is active.
func (s *System) AmbientLight() float64 {
	if s.flashTimer > 0 {
		return s.flashIntensity
	}
	return s.params.AmbientLight
}

// Description returns a player-facing description of the current weather.
func (s *System) Description() string {
	if s.Transitioning() {
		return "changing from " + string(s.current) + " to " + string(s.target)
	}
	return string(s.current)
}

// SetWeather starts a transition to the given condition over
// transitionSeconds (minimum 0.1). Setting the settled condition again is a
// no-op.
func (s *System) SetWeather(c Condition, transitionSeconds float64) {
	if c == s.current && !s.Transitioning() {
		return
	}
	s.target = c
	s.transitionDuration = max(0.1, transitionSeconds)
	s.transitionProgress = 0
}

// Step advances transitions, auto-change timing, and lightning by delta
// seconds.
func (s *System) Step(delta float64) {
	if s.Transitioning() {
		s.stepTransition(delta)
	} else if s.autoChange {
		s.timeUntilChange -= delta
		if s.timeUntilChange <= 0 {
			next := All[s.rng.Intn(len(All))]
			for next == s.current {
				next = All[s.rng.Intn(len(All))]
			}
			s.SetWeather(next, s.rng.Float64()*20+10)
			s.timeUntilChange = s.rng.Float64()*420 + 180
		}
	}

	s.stepLightning(delta)
}

func (s *System) stepTransition(delta float64) {
	s.transitionProgress += delta / s.transitionDuration
	if s.transitionProgress >= 1.0 {
		s.transitionProgress = 1.0
		from := s.current
		s.current = s.target
		s.params = ParamsFor(s.current)
		if s.onChange != nil {
			s.onChange(from, s.current, s.params)
		}
		return
	}

	// Interpolate the numeric parameters; colors, wind direction and the
	// sound cue switch only when the transition completes.
	from := ParamsFor(s.current)
	to := ParamsFor(s.target)
	t := s.transitionProgress
	s.params.ParticleCount = int(lerp(float64(from.ParticleCount), float64(to.ParticleCount), t))
	s.params.ParticleSize = lerp(from.ParticleSize, to.ParticleSize, t)
	s.params.ParticleSpeed = lerp(from.ParticleSpeed, to.ParticleSpeed, t)
	s.params.WindStrength = lerp(from.WindStrength, to.WindStrength, t)
	s.params.FogDensity = lerp(from.FogDensity, to.FogDensity, t)
	s.params.AmbientLight = lerp(from.AmbientLight, to.AmbientLight, t)
	s.params.Visibility = lerp(from.Visibility, to.Visibility, t)
}

func (s *System) stepLightning(delta float64) {
	if s.flashTimer > 0 {
		s.flashTimer -= delta
		return
	}
	if s.params.LightningChance <= 0 {
		return
	}
	s.timeUntilStrike -= delta
	if s.timeUntilStrike > 0 {
		return
	}
	s.flashTimer = flashDuration
	s.flashIntensity = s.rng.Float64()*0.2 + 0.8
	s.timeUntilStrike = s.rng.Float64()*10 + 5
	if s.onLightning != nil {
		s.onLightning(s.flashIntensity)
	}
}

// ApplyWind displaces bodies by the current wind. Only winds above the
// strength threshold move anything.
func (s *System) ApplyWind(bodies []physics.Body, delta float64) {
	if s.params.WindStrength <= windThreshold {
		return
	}
	push := s.params.WindDirection.Normalize().Scale(s.params.WindStrength * 0.01 * delta)
	for _, b := range bodies {
		b.SetPosition(b.Position().Add(push))
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
