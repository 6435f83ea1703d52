// Package emotion models an NPC's emotional state: a small set of emotions
// that decay toward their baselines over time, plus fixed personality
// traits. Mood descriptions feed the dialog prompts.
package emotion

// Emotion names.
const (
	Happiness = "happiness"
	Sadness   = "sadness"
	Anger     = "anger"
	Fear      = "fear"
	Surprise  = "surprise"
	Disgust   = "disgust"
	Trust     = "trust"
)

// Personality trait names.
const (
	Openness          = "openness"
	Conscientiousness = "conscientiousness"
	Extraversion      = "extraversion"
	Agreeableness     = "agreeableness"
	Neuroticism       = "neuroticism"
)

// Emotions lists all emotion names in a stable order.
var Emotions = []string{Happiness, Sadness, Anger, Fear, Surprise, Disgust, Trust}

// Traits lists all personality trait names in a stable order.
var Traits = []string{Openness, Conscientiousness, Extraversion, Agreeableness, Neuroticism}

// decayRate is how fast emotions return to baseline, in value units per
// second.
const decayRate = 0.01

// baseline returns the resting value an emotion decays toward.
func baseline(emotion string) float64 {
	if emotion == Happiness || emotion == Trust {
		return 0.5
	}
	return 0
}

// State is one NPC's emotional state. All values live in [0, 1]. State is
// not safe for concurrent use; the AI director serializes access.
type State struct {
	emotions map[string]float64
	traits   map[string]float64
}

// NewState returns a state at baseline: happiness and trust at 0.5, every
// other emotion at 0, all personality traits at 0.5.
func NewState() *State {
	s := &State{
		emotions: make(map[string]float64, len(Emotions)),
		traits:   make(map[string]float64, len(Traits)),
	}
	for _, e := range Emotions {
		s.emotions[e] = baseline(e)
	}
	for _, t := range Traits {
		s.traits[t] = 0.5
	}
	return s
}

// Set sets an emotion to value, clamped to [0, 1]. Unknown emotions are
// ignored.
func (s *State) Set(emotion string, value float64) {
	if _, ok := s.emotions[emotion]; !ok {
		return
	}
	s.emotions[emotion] = clamp01(value)
}

// Adjust shifts an emotion by delta, clamping the result to [0, 1].
func (s *State) Adjust(emotion string, delta float64) {
	if current, ok := s.emotions[emotion]; ok {
		s.Set(emotion, current+delta)
	}
}

// Get returns the value of an emotion, or 0 for unknown names.
func (s *State) Get(emotion string) float64 { return s.emotions[emotion] }

// SetTrait sets a personality trait, clamped to [0, 1]. Unknown traits are
// ignored.
func (s *State) SetTrait(trait string, value float64) {
	if _, ok := s.traits[trait]; !ok {
		return
	}
	s.traits[trait] = clamp01(value)
}

// Trait returns the value of a personality trait, or 0 for unknown names.
func (s *State) Trait(trait string) float64 { return s.traits[trait] }

// Snapshot returns a copy of all emotion values.
func (s *State) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.emotions))
	for k, v := range s.emotions {
		out[k] = v
	}
	return out
}

// Dominant returns the strongest emotion and its value. Ties resolve to the
// first name in [Emotions] order.
func (s *State) Dominant() (string, float64) {
	best := Emotions[0]
	bestVal := s.emotions[best]
	for _, e := range Emotions[1:] {
		if s.emotions[e] > bestVal {
			best, bestVal = e, s.emotions[e]
		}
	}
	return best, bestVal
}

// Update decays every emotion toward its baseline by the decay rate over
// delta seconds.
func (s *State) Update(delta float64) {
	step := decayRate * delta
	for _, e := range Emotions {
		b := baseline(e)
		current := s.emotions[e]
		switch {
		case current > b:
			s.emotions[e] = max(b, current-step)
		case current < b:
			s.emotions[e] = min(b, current+step)
		}
	}
}

// Mood describes the dominant emotion as "slightly", "moderately" or "very"
// depending on its strength.
func (s *State) Mood() string {
	dominant, value := s.Dominant()
	intensity := "very"
	switch {
	case value < 0.3:
		intensity = "slightly"
	case value < 0.6:
		intensity = "moderately"
	}
	return intensity + " " + dominant
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
