package game

import "testing"

func collectEvents(bus *EventBus, names ...string) *[]Event {
	var got []Event
	for _, name := range names {
		bus.Subscribe(name, func(ev Event) { got = append(got, ev) })
	}
	return &got
}

func TestSoundPlayEmitsEvent(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	got := collectEvents(bus, EventSoundPlay)

	s := NewSoundSystem(bus)
	s.RegisterCue("thunder", "audio/thunder.ogg")
	s.Play("thunder", 0.5, 0)

	if len(*got) != 1 {
		t.Fatalf("events = %d, want 1", len(*got))
	}
	payload := (*got)[0].Payload
	if payload["cue"] != "thunder" || payload["asset"] != "audio/thunder.ogg" {
		t.Errorf("payload = %v", payload)
	}
	if payload["volume"] != 0.5 {
		t.Errorf("volume = %v, want 0.5", payload["volume"])
	}
}

func TestSoundUnknownCueEmitsNothing(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	got := collectEvents(bus, EventSoundPlay)

	s := NewSoundSystem(bus)
	s.Play("missing", 1, 0)

	if len(*got) != 0 {
		t.Errorf("unknown cue emitted %d events", len(*got))
	}
}

func TestSoundVolumeScalingAndClamping(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	got := collectEvents(bus, EventSoundPlay)

	s := NewSoundSystem(bus)
	s.RegisterCue("step", "audio/step.ogg")

	s.SetSoundVolume(2.0) // clamps to 1
	if s.SoundVolume() != 1.0 {
		t.Errorf("volume = %v, want clamp to 1", s.SoundVolume())
	}
	s.SetSoundVolume(0.5)
	s.Play("step", 0.5, 0)

	if v := (*got)[0].Payload["volume"]; v != 0.25 {
		t.Errorf("effective volume = %v, want 0.25", v)
	}
}

func TestMusicLifecycle(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	got := collectEvents(bus, EventMusicPlay, EventMusicPause, EventMusicStop)

	s := NewSoundSystem(bus)
	s.RegisterMusic("tavern", "audio/tavern.ogg")

	s.PlayMusic("tavern", -1, 500)
	if s.CurrentTrack() != "tavern" {
		t.Errorf("current track = %q", s.CurrentTrack())
	}

	s.PauseMusic(true)
	s.StopMusic(200)
	if s.CurrentTrack() != "" {
		t.Error("track not cleared after stop")
	}

	// Stop with nothing playing is a no-op.
	s.StopMusic(0)
	s.PauseMusic(false)

	if len(*got) != 3 {
		t.Fatalf("events = %d, want play+pause+stop", len(*got))
	}
	if (*got)[2].Name != EventMusicStop {
		t.Errorf("last event = %q", (*got)[2].Name)
	}
}
