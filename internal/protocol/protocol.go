// Package protocol defines the JSON wire format between the simulation
// server and its clients.
//
// Every frame on the wire is an [Envelope]: a type tag plus the
// type-specific payload. Clients send input, dialog, and decision messages;
// the server sends welcome, state, event, dialog, sound, and error
// messages. The server renders nothing; clients consume state updates and
// sound cues and do their own presentation.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/veilgate/ludens/internal/game"
)

// Version is the protocol version announced in the welcome message.
// Incremented on breaking changes.
const Version = 1

// MaxMessageSize caps a single wire frame in bytes, in both directions.
// Larger frames are rejected before decoding.
const MaxMessageSize = 64 * 1024

// Type tags the payload carried by an [Envelope].
type Type string

const (
	// TypeWelcome is sent once by the server after a client connects.
	TypeWelcome Type = "welcome"

	// TypeInput is a client key press or release.
	TypeInput Type = "input"

	// TypeState is a periodic world snapshot from the server.
	TypeState Type = "state"

	// TypeEvent is a world event (collision, weather change, lightning).
	TypeEvent Type = "event"

	// TypeDialogRequest is a client asking an NPC to speak.
	TypeDialogRequest Type = "dialog_request"

	// TypeDialog is an NPC's spoken line from the server.
	TypeDialog Type = "dialog"

	// TypeSound instructs the client to play a sound cue or music track.
	TypeSound Type = "sound"

	// TypeError reports a request the server rejected.
	TypeError Type = "error"
)

// Envelope is the outer wire frame.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Welcome is the server's first message on a new connection.
type Welcome struct {
	ProtocolVersion int    `json:"protocol_version"`
	TickRate        int    `json:"tick_rate"`
	Scene           string `json:"scene"`
}

// Input is a client key transition, forwarded into the engine's input
// inbox.
type Input struct {
	// Key is the lowercase key name (e.g. "w", "escape", "f1").
	Key string `json:"key"`

	// Down is true for a press and false for a release.
	Down bool `json:"down"`
}

// State carries the end-of-tick world snapshot.
type State struct {
	Snapshot game.Snapshot `json:"snapshot"`
}

// Event relays a named world event and its payload.
type Event struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// DialogRequest asks the named NPC to respond to the player's text.
type DialogRequest struct {
	NPCID string `json:"npc_id"`
	Text  string `json:"text"`
}

// Dialog is an NPC's spoken line.
type Dialog struct {
	NPCID   string `json:"npc_id"`
	NPCName string `json:"npc_name"`
	Text    string `json:"text"`
}

// Sound instructs the client to start, stop, or pause audio. Exactly the
// engine's sound event payloads, flattened.
type Sound struct {
	// Kind is the engine sound event name ("sound.play", "music.play",
	// "music.stop", "music.pause").
	Kind   string  `json:"kind"`
	Cue    string  `json:"cue,omitempty"`
	Track  string  `json:"track,omitempty"`
	Asset  string  `json:"asset,omitempty"`
	Volume float64 `json:"volume,omitempty"`
	Loops  int     `json:"loops,omitempty"`
	FadeMs int     `json:"fade_ms,omitempty"`
	Paused bool    `json:"paused,omitempty"`
}

// Error reports a rejected request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes sent in [Error] messages.
const (
	CodeBadMessage  = "bad_message"
	CodeUnknownNPC  = "unknown_npc"
	CodeInternal    = "internal"
	CodeRateLimited = "rate_limited"
)

// Encode wraps payload in an [Envelope] and marshals it.
func Encode(t Type, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", t, err)
	}
	frame, err := json.Marshal(Envelope{Type: t, Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal envelope: %w", err)
	}
	if len(frame) > MaxMessageSize {
		return nil, fmt.Errorf("protocol: %s frame is %d bytes, cap is %d", t, len(frame), MaxMessageSize)
	}
	return frame, nil
}

// Decode parses a wire frame into its envelope, enforcing the size cap.
// The payload stays raw; use [DecodePayload] with the struct matching the
// envelope type.
func Decode(frame []byte) (Envelope, error) {
	if len(frame) > MaxMessageSize {
		return Envelope{}, fmt.Errorf("protocol: frame is %d bytes, cap is %d", len(frame), MaxMessageSize)
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("protocol: envelope missing type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into v.
func DecodePayload[T any](env Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("protocol: unmarshal %s payload: %w", env.Type, err)
	}
	return v, nil
}
