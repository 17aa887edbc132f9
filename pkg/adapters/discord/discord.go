// Package discord provides the Discord message adapter over a gateway
// session. Guild and direct messages become text messages; member joins
// become enter messages.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/logger"
)

// Adapter implements adapter.Message on a Discord bot session.
type Adapter struct {
	token    string
	receiver adapter.Receiver
	session  *discordgo.Session
	ctx      context.Context
}

// New creates a discord adapter for a bot token.
func New(token string, receiver adapter.Receiver) *Adapter {
	return &Adapter{token: token, receiver: receiver}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "discord" }

// Start opens the gateway session and subscribes to message events.
func (a *Adapter) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	a.ctx = ctx
	session.AddHandler(a.onMessage)
	session.AddHandler(a.onMemberAdd)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	a.session = session
	logger.InfoC("discord", "gateway connected")
	return nil
}

func (a *Adapter) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	room := &chat.Room{ID: m.ChannelID}
	user := chat.NewUser(m.Author.ID, m.Author.Username).InRoom(room)
	msg := chat.NewTextMessage(user, m.Content)
	msg.SetID(m.ID)
	if err := a.receiver(a.ctx, msg); err != nil {
		logger.ErrorCF("discord", "receive failed", map[string]interface{}{"error": err.Error()})
	}
}

func (a *Adapter) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil {
		return
	}
	room := &chat.Room{ID: m.GuildID}
	user := chat.NewUser(m.User.ID, m.User.Username).InRoom(room)
	if err := a.receiver(a.ctx, chat.NewEnterMessage(user)); err != nil {
		logger.ErrorCF("discord", "receive failed", map[string]interface{}{"error": err.Error()})
	}
}

// Shutdown closes the gateway session.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	return a.session.Close()
}

// Dispatch sends the envelope through the session per its method.
func (a *Adapter) Dispatch(ctx context.Context, envelope *chat.Envelope) error {
	if err := envelope.Validate(); err != nil {
		return err
	}
	switch envelope.Method {
	case chat.MethodSend, chat.MethodEmote:
		return a.sendAll(envelope.ResolveRoom().ID, envelope.Strings)

	case chat.MethodReply:
		return a.sendAll(envelope.ResolveRoom().ID, adapter.ReplyStrings(envelope))

	case chat.MethodDM:
		channel, err := a.session.UserChannelCreate(envelope.User.ID)
		if err != nil {
			return fmt.Errorf("discord dm channel: %w", err)
		}
		return a.sendAll(channel.ID, envelope.Strings)

	case chat.MethodReact:
		room := envelope.ResolveRoom()
		for _, emoji := range envelope.Strings {
			if err := a.session.MessageReactionAdd(room.ID, envelope.MessageID, emoji); err != nil {
				return fmt.Errorf("discord react: %w", err)
			}
		}
		return nil

	default:
		return fmt.Errorf("%s: %w", envelope.Method, adapter.ErrMethodUnsupported)
	}
}

func (a *Adapter) sendAll(channelID string, lines []string) error {
	for _, line := range lines {
		if _, err := a.session.ChannelMessageSend(channelID, line); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

// Compile-time verification
var _ adapter.Message = (*Adapter)(nil)
