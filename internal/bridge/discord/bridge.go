// Package discord bridges the world to a Discord text channel. NPC lines
// and world announcements are posted to the channel, and channel messages
// addressed to an NPC by name ("maro: any news?") are answered through the
// AI director.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/veilgate/ludens/internal/ai"
	"github.com/veilgate/ludens/internal/game"
)

// dialogTimeout bounds one LLM round trip triggered from Discord.
const dialogTimeout = 30 * time.Second

// Config holds Discord bridge configuration.
type Config struct {
	// Token is the Discord bot token (e.g., "Bot MTIz...").
	Token string `yaml:"token"`

	// ChannelID is the text channel the bridge reads from and posts to.
	ChannelID string `yaml:"channel_id"`
}

// Messenger is the slice of the Discord session the bridge sends through.
// Satisfied by *discordgo.Session.
type Messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bridge owns the gateway connection and relays messages both ways.
type Bridge struct {
	session  *discordgo.Session
	out      Messenger
	director *ai.Director

	channelID string
	botUserID string

	closeOnce sync.Once
	log       *slog.Logger
}

// New connects to Discord and starts listening on the configured channel.
func New(cfg Config, director *ai.Director) (*Bridge, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord bridge: token must not be empty")
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord bridge: channel_id must not be empty")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord bridge: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	b := &Bridge{
		session:   session,
		out:       session,
		director:  director,
		channelID: cfg.ChannelID,
		log:       slog.With("system", "discord"),
	}
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(m)
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord bridge: open session: %w", err)
	}
	if session.State != nil && session.State.User != nil {
		b.botUserID = session.State.User.ID
	}
	b.log.Info("bridge connected", "channel", cfg.ChannelID)
	return b, nil
}

// Announce posts a world announcement (weather, lightning, ...) to the
// channel. Failures are logged, not returned; announcements are fire and
// forget.
func (b *Bridge) Announce(text string) {
	if _, err := b.out.ChannelMessageSend(b.channelID, text); err != nil {
		b.log.Warn("announce failed", "error", err)
	}
}

// WatchWorld subscribes the bridge to world events on bus: weather shifts
// and lightning strikes are announced to the channel. Event handlers run on
// the world loop goroutine, so the sends happen on their own goroutines.
// Must be called before the world loop starts.
func (b *Bridge) WatchWorld(bus *game.EventBus) {
	bus.Subscribe(game.EventWeatherChanged, func(ev game.Event) {
		to, _ := ev.Payload["to"].(string)
		if to == "" {
			return
		}
		text := fmt.Sprintf("The weather turns to %s.", strings.ReplaceAll(to, "_", " "))
		go b.Announce(text)
	})
	bus.Subscribe(game.EventLightning, func(game.Event) {
		go b.Announce("Lightning splits the sky!")
	})
}

// Say posts one NPC line to the channel, attributed by display name.
func (b *Bridge) Say(npcID, text string) {
	msg := fmt.Sprintf("**%s**: %s", b.director.NPCName(npcID), text)
	if _, err := b.out.ChannelMessageSend(b.channelID, msg); err != nil {
		b.log.Warn("say failed", "npc", npcID, "error", err)
	}
}

// Close disconnects from Discord.
func (b *Bridge) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord bridge: close session: %w", err)
		}
		b.log.Info("bridge closed")
	})
	return closeErr
}

// handleMessage filters gateway messages down to NPC-addressed lines in
// the configured channel and answers them asynchronously.
func (b *Bridge) handleMessage(m *discordgo.MessageCreate) {
	if m.ChannelID != b.channelID {
		return
	}
	if m.Author == nil || m.Author.Bot || m.Author.ID == b.botUserID {
		return
	}

	npcID, text, ok := b.parseAddressed(m.Content)
	if !ok {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dialogTimeout)
		defer cancel()

		reply, err := b.director.GenerateDialog(ctx, npcID, text, "speaking over a long-range channel")
		if err != nil {
			b.log.Warn("dialog failed", "npc", npcID, "error", err)
			return
		}
		b.Say(npcID, reply)
	}()
}

// parseAddressed matches "name: message" against registered NPC display
// names, case-insensitively. It returns the NPC ID and the message body.
func (b *Bridge) parseAddressed(content string) (npcID, text string, ok bool) {
	name, rest, found := strings.Cut(content, ":")
	if !found {
		return "", "", false
	}
	text = strings.TrimSpace(rest)
	if text == "" {
		return "", "", false
	}

	name = strings.TrimSpace(name)
	for _, id := range b.director.NPCIDs() {
		if strings.EqualFold(b.director.NPCName(id), name) {
			return id, text, true
		}
	}
	return "", "", false
}
