package emotion

import (
	"math"
	"testing"
)

func TestNewStateBaselines(t *testing.T) {
	t.Parallel()

	s := NewState()
	if s.Get(Happiness) != 0.5 || s.Get(Trust) != 0.5 {
		t.Errorf("happiness/trust = %v/%v, want 0.5", s.Get(Happiness), s.Get(Trust))
	}
	for _, e := range []string{Sadness, Anger, Fear, Surprise, Disgust} {
		if s.Get(e) != 0 {
			t.Errorf("%s = %v, want 0", e, s.Get(e))
		}
	}
	for _, tr := range Traits {
		if s.Trait(tr) != 0.5 {
			t.Errorf("trait %s = %v, want 0.5", tr, s.Trait(tr))
		}
	}
}

func TestSetClamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"in range", 0.7, 0.7},
		{"above one", 1.5, 1.0},
		{"below zero", -0.2, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewState()
			s.Set(Anger, tt.value)
			if got := s.Get(Anger); got != tt.want {
				t.Errorf("anger = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetUnknownEmotionIgnored(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Set("melancholy", 0.9)
	s.Adjust("melancholy", 0.1)
	if s.Get("melancholy") != 0 {
		t.Error("unknown emotion was stored")
	}
}

func TestAdjust(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Adjust(Fear, 0.4)
	s.Adjust(Fear, 0.4)
	s.Adjust(Fear, 0.4) // clamps at 1
	if got := s.Get(Fear); got != 1.0 {
		t.Errorf("fear = %v, want clamp to 1", got)
	}
	s.Adjust(Fear, -2)
	if got := s.Get(Fear); got != 0 {
		t.Errorf("fear = %v, want clamp to 0", got)
	}
}

func TestUpdateDecaysTowardBaseline(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Set(Anger, 0.8)
	s.Set(Happiness, 0.1)

	s.Update(10) // 0.1 of decay

	if got := s.Get(Anger); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("anger = %v, want 0.7", got)
	}
	if got := s.Get(Happiness); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("happiness = %v, want 0.2 (rising toward 0.5)", got)
	}

	// Decay never overshoots the baseline.
	s.Update(1e6)
	if got := s.Get(Anger); got != 0 {
		t.Errorf("anger = %v, want baseline 0", got)
	}
	if got := s.Get(Happiness); got != 0.5 {
		t.Errorf("happiness = %v, want baseline 0.5", got)
	}
}

func TestDominant(t *testing.T) {
	t.Parallel()

	s := NewState()
	s.Set(Anger, 0.9)
	name, value := s.Dominant()
	if name != Anger || value != 0.9 {
		t.Errorf("dominant = %s/%v, want anger/0.9", name, value)
	}
}

func TestMood(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		emotion string
		value   float64
		want    string
	}{
		{"slight", Fear, 0.29, "slightly fear"},
		{"moderate", Fear, 0.59, "moderately fear"},
		{"strong", Fear, 0.95, "very fear"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewState()
			// Zero the defaults so the tested emotion dominates.
			s.Set(Happiness, 0)
			s.Set(Trust, 0)
			s.Set(tt.emotion, tt.value)
			if got := s.Mood(); got != tt.want {
				t.Errorf("mood = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	s := NewState()
	snap := s.Snapshot()
	snap[Anger] = 1.0
	if s.Get(Anger) != 0 {
		t.Error("snapshot mutation leaked into state")
	}
}
