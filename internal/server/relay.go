package server

import (
	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/protocol"
)

// worldEvents are the engine events relayed to clients as-is.
var worldEvents = []string{
	game.EventWeatherChanged,
	game.EventLightning,
	game.EventCollision,
}

// soundEvents are the engine events translated to [protocol.Sound] frames.
var soundEvents = []string{
	game.EventSoundPlay,
	game.EventMusicPlay,
	game.EventMusicStop,
	game.EventMusicPause,
}

// attach registers the server's tick and event observers on the engine.
// The observers run on the world loop goroutine; everything they do is
// non-blocking.
func (s *Server) attach() {
	var sinceState int
	s.eng.OnTick(func(snap game.Snapshot) {
		s.latest.Store(&snap)
		sinceState++
		if sinceState < s.stateInterval {
			return
		}
		sinceState = 0

		frame, err := protocol.Encode(protocol.TypeState, protocol.State{Snapshot: snap})
		if err != nil {
			s.log.Error("encode state", "error", err)
			return
		}
		metricStateBroadcasts.Inc()
		s.broadcast(frame)
	})

	for _, name := range worldEvents {
		s.eng.Events.Subscribe(name, func(ev game.Event) {
			frame, err := protocol.Encode(protocol.TypeEvent, protocol.Event{
				Name:    ev.Name,
				Payload: ev.Payload,
			})
			if err != nil {
				s.log.Error("encode event", "event", ev.Name, "error", err)
				return
			}
			s.broadcast(frame)
		})
	}

	for _, name := range soundEvents {
		s.eng.Events.Subscribe(name, func(ev game.Event) {
			frame, err := protocol.Encode(protocol.TypeSound, soundFrame(ev))
			if err != nil {
				s.log.Error("encode sound", "event", ev.Name, "error", err)
				return
			}
			s.broadcast(frame)
		})
	}
}

// soundFrame flattens an engine sound event payload into the wire shape.
func soundFrame(ev game.Event) protocol.Sound {
	return protocol.Sound{
		Kind:   ev.Name,
		Cue:    payloadString(ev.Payload, "cue"),
		Track:  payloadString(ev.Payload, "track"),
		Asset:  payloadString(ev.Payload, "asset"),
		Volume: payloadFloat(ev.Payload, "volume"),
		Loops:  payloadInt(ev.Payload, "loops"),
		FadeMs: payloadInt(ev.Payload, "fade_ms"),
		Paused: payloadBool(ev.Payload, "paused"),
	}
}

func payloadString(p map[string]any, key string) string {
	v, _ := p[key].(string)
	return v
}

func payloadFloat(p map[string]any, key string) float64 {
	v, _ := p[key].(float64)
	return v
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func payloadBool(p map[string]any, key string) bool {
	v, _ := p[key].(bool)
	return v
}
