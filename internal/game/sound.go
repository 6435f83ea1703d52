package game

import "log/slog"

// Sound event names emitted on the engine bus. Clients subscribe to these
// over the wire protocol and perform the actual playback.
const (
	EventSoundPlay  = "sound.play"
	EventMusicPlay  = "music.play"
	EventMusicStop  = "music.stop"
	EventMusicPause = "music.pause"
)

// SoundSystem is the server-side half of audio: a registry of named sound
// cues and music tracks. Playing a cue publishes an event on the bus; no
// audio is produced on the server.
type SoundSystem struct {
	bus *EventBus

	cues  map[string]string // cue name → asset path
	music map[string]string // track name → asset path

	currentTrack string
	soundVolume  float64
	musicVolume  float64

	log *slog.Logger
}

// NewSoundSystem returns a sound system publishing on bus, with both volumes
// at 1.0.
func NewSoundSystem(bus *EventBus) *SoundSystem {
	return &SoundSystem{
		bus:         bus,
		cues:        make(map[string]string),
		music:       make(map[string]string),
		soundVolume: 1.0,
		musicVolume: 1.0,
		log:         slog.With("system", "sound"),
	}
}

// RegisterCue registers a sound effect under name with its client-side asset
// path.
func (s *SoundSystem) RegisterCue(name, assetPath string) {
	s.cues[name] = assetPath
	s.log.Debug("cue registered", "cue", name, "asset", assetPath)
}

// RegisterMusic registers a music track under name.
func (s *SoundSystem) RegisterMusic(name, assetPath string) {
	s.music[name] = assetPath
	s.log.Debug("music registered", "track", name, "asset", assetPath)
}

// Play emits a playback event for the named cue. volume scales the cue
// relative to the global sound volume; loops is the extra repeat count.
// Playing an unregistered cue logs a warning and emits nothing.
func (s *SoundSystem) Play(name string, volume float64, loops int) {
	asset, ok := s.cues[name]
	if !ok {
		s.log.Warn("unknown sound cue", "cue", name)
		return
	}
	s.bus.Trigger(Event{Name: EventSoundPlay, Payload: map[string]any{
		"cue":    name,
		"asset":  asset,
		"volume": clamp01(volume) * s.soundVolume,
		"loops":  loops,
	}})
}

// PlayMusic emits a play event for the named track and records it as the
// current track. loops of -1 means loop forever.
func (s *SoundSystem) PlayMusic(name string, loops int, fadeMillis int) {
	asset, ok := s.music[name]
	if !ok {
		s.log.Warn("unknown music track", "track", name)
		return
	}
	s.currentTrack = name
	s.bus.Trigger(Event{Name: EventMusicPlay, Payload: map[string]any{
		"track":   name,
		"asset":   asset,
		"volume":  s.musicVolume,
		"loops":   loops,
		"fade_ms": fadeMillis,
	}})
}

// StopMusic emits a stop event for the current track.
func (s *SoundSystem) StopMusic(fadeMillis int) {
	if s.currentTrack == "" {
		return
	}
	s.bus.Trigger(Event{Name: EventMusicStop, Payload: map[string]any{
		"track":   s.currentTrack,
		"fade_ms": fadeMillis,
	}})
	s.currentTrack = ""
}

// PauseMusic emits a pause (or resume) event for the current track.
func (s *SoundSystem) PauseMusic(paused bool) {
	if s.currentTrack == "" {
		return
	}
	s.bus.Trigger(Event{Name: EventMusicPause, Payload: map[string]any{
		"track":  s.currentTrack,
		"paused": paused,
	}})
}

// CurrentTrack returns the name of the playing track, or "".
func (s *SoundSystem) CurrentTrack() string { return s.currentTrack }

// SetSoundVolume sets the global sound effect volume, clamped to [0, 1].
func (s *SoundSystem) SetSoundVolume(v float64) { s.soundVolume = clamp01(v) }

// SetMusicVolume sets the global music volume, clamped to [0, 1].
func (s *SoundSystem) SetMusicVolume(v float64) { s.musicVolume = clamp01(v) }

// SoundVolume returns the global sound effect volume.
func (s *SoundSystem) SoundVolume() float64 { return s.soundVolume }

// MusicVolume returns the global music volume.
func (s *SoundSystem) MusicVolume() float64 { return s.musicVolume }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
