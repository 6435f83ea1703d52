package weather

import (
	"math"
	"testing"

	"github.com/veilgate/ludens/internal/game/physics"
)

func TestParamsTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		condition Condition
		check     func(t *testing.T, p Params)
	}{
		{Clear, func(t *testing.T, p Params) {
			if p.ParticleCount != 0 || p.WindStrength != 0.1 || p.Visibility != 100 {
				t.Errorf("unexpected clear params: %+v", p)
			}
		}},
		{Storm, func(t *testing.T, p Params) {
			if p.LightningChance != 0.02 {
				t.Errorf("storm lightning chance = %v, want 0.02", p.LightningChance)
			}
			if p.SoundCue != "storm" {
				t.Errorf("storm cue = %q", p.SoundCue)
			}
		}},
		{Fog, func(t *testing.T, p Params) {
			if p.FogDensity != 0.8 || p.Visibility != 15 {
				t.Errorf("unexpected fog params: %+v", p)
			}
		}},
		{Windy, func(t *testing.T, p Params) {
			if p.WindStrength != 1.8 {
				t.Errorf("windy strength = %v, want 1.8", p.WindStrength)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.condition), func(t *testing.T) {
			t.Parallel()
			tt.check(t, ParamsFor(tt.condition))
		})
	}
}

func TestConditionIsValid(t *testing.T) {
	t.Parallel()

	for _, c := range All {
		if !c.IsValid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if Condition("tornado").IsValid() {
		t.Error("unknown condition reported valid")
	}
}

func TestTransitionInterpolates(t *testing.T) {
	t.Parallel()

	s := NewSystem(1)
	s.SetAutoChange(false)
	s.SetWeather(HeavyRain, 10)

	s.Step(5) // halfway
	if !s.Transitioning() {
		t.Fatal("expected transition in flight")
	}
	wantWind := (ParamsFor(Clear).WindStrength + ParamsFor(HeavyRain).WindStrength) / 2
	if got := s.Params().WindStrength; math.Abs(got-wantWind) > 1e-9 {
		t.Errorf("mid-transition wind = %v, want %v", got, wantWind)
	}
	// Cue switches only on completion.
	if s.Params().SoundCue != "" {
		t.Errorf("cue before completion = %q, want empty", s.Params().SoundCue)
	}

	s.Step(5.01)
	if s.Transitioning() {
		t.Fatal("transition should be complete")
	}
	if s.Current() != HeavyRain {
		t.Errorf("current = %v, want heavy_rain", s.Current())
	}
	if s.Params().SoundCue != "heavy_rain" {
		t.Errorf("cue = %q, want heavy_rain", s.Params().SoundCue)
	}
}

func TestSetWeatherSameConditionNoop(t *testing.T) {
	t.Parallel()

	s := NewSystem(1)
	s.SetAutoChange(false)
	s.SetWeather(Clear, 10)
	if s.Transitioning() {
		t.Error("setting the settled condition should not start a transition")
	}
}

func TestChangeCallbackFires(t *testing.T) {
	t.Parallel()

	s := NewSystem(1)
	s.SetAutoChange(false)

	var gotFrom, gotTo Condition
	s.OnChange(func(from, to Condition, _ Params) {
		gotFrom, gotTo = from, to
	})

	s.SetWeather(Snow, 1)
	s.Step(2)

	if gotFrom != Clear || gotTo != Snow {
		t.Errorf("change callback got %v→%v, want clear→snow", gotFrom, gotTo)
	}
}

func TestLightningFiresDuringStorm(t *testing.T) {
	t.Parallel()

	s := NewSystem(42)
	s.SetAutoChange(false)
	s.SetWeather(Storm, 0.1)
	s.Step(0.2)

	strikes := 0
	s.OnLightning(func(intensity float64) {
		strikes++
		if intensity < 0.8 || intensity > 1.0 {
			t.Errorf("flash intensity %v out of range", intensity)
		}
	})

	// Strikes are due at most every 15 seconds during a storm.
	for i := 0; i < 200; i++ {
		s.Step(0.5)
	}
	if strikes == 0 {
		t.Error("no lightning over 100 storm seconds")
	}
}

func TestNoLightningWhenClear(t *testing.T) {
	t.Parallel()

	s := NewSystem(7)
	s.SetAutoChange(false)
	s.OnLightning(func(float64) { t.Error("lightning fired in clear weather") })
	for i := 0; i < 100; i++ {
		s.Step(1)
	}
}

func TestAutoChangeEventuallyTransitions(t *testing.T) {
	t.Parallel()

	s := NewSystem(3)
	for i := 0; i < 4000 && s.Current() == Clear && !s.Transitioning(); i++ {
		s.Step(1)
	}
	if s.Current() == Clear && !s.Transitioning() {
		t.Error("auto-change never started a transition")
	}
}

type windBody struct {
	id  string
	pos physics.Vector3
}

func (b *windBody) ID() string                    { return b.id }
func (b *windBody) Position() physics.Vector3     { return b.pos }
func (b *windBody) SetPosition(p physics.Vector3) { b.pos = p }

func TestApplyWind(t *testing.T) {
	t.Parallel()

	s := NewSystem(1)
	s.SetAutoChange(false)

	b := &windBody{id: "crate"}

	// Clear wind is below the threshold.
	s.ApplyWind([]physics.Body{b}, 1)
	if b.pos != physics.Vec3(0, 0, 0) {
		t.Errorf("weak wind moved body to %v", b.pos)
	}

	s.SetWeather(Windy, 0.1)
	s.Step(0.2)
	s.ApplyWind([]physics.Body{b}, 1)
	if b.pos.X <= 0 {
		t.Errorf("windy weather should push +X, got %v", b.pos)
	}
}
