// Package telegram provides the Telegram message adapter over long
// polling. Chat ids and message ids are numeric on the platform and
// carried as decimal strings inside mull.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/logger"
)

// Adapter implements adapter.Message on the Telegram bot API.
type Adapter struct {
	token    string
	receiver adapter.Receiver
	bot      *telego.Bot
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a telegram adapter for a bot token.
func New(token string, receiver adapter.Receiver) *Adapter {
	return &Adapter{token: token, receiver: receiver}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "telegram" }

// Start connects the bot and begins consuming updates.
func (a *Adapter) Start(ctx context.Context) error {
	bot, err := telego.NewBot(a.token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	a.bot = bot

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	updates, err := bot.UpdatesViaLongPolling(runCtx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram polling: %w", err)
	}

	a.wg.Add(1)
	go a.consume(runCtx, updates)
	logger.InfoC("telegram", "long polling started")
	return nil
}

func (a *Adapter) consume(ctx context.Context, updates <-chan telego.Update) {
	defer a.wg.Done()
	for update := range updates {
		if update.Message == nil || update.Message.From == nil {
			continue
		}
		m := update.Message
		room := &chat.Room{
			ID:   strconv.FormatInt(m.Chat.ID, 10),
			Name: m.Chat.Title,
		}
		user := chat.NewUser(strconv.FormatInt(m.From.ID, 10), displayName(m.From)).InRoom(room)

		var msg chat.Message
		switch {
		case len(m.NewChatMembers) > 0:
			msg = chat.NewEnterMessage(user)
		case m.LeftChatMember != nil:
			msg = chat.NewLeaveMessage(user)
		default:
			text := chat.NewTextMessage(user, m.Text)
			text.SetID(strconv.Itoa(m.MessageID))
			msg = text
		}
		if err := a.receiver(ctx, msg); err != nil {
			logger.ErrorCF("telegram", "receive failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Shutdown stops polling and waits for the consumer.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Dispatch sends the envelope through the bot API per its method.
func (a *Adapter) Dispatch(ctx context.Context, envelope *chat.Envelope) error {
	if err := envelope.Validate(); err != nil {
		return err
	}
	switch envelope.Method {
	case chat.MethodSend, chat.MethodEmote:
		room := envelope.ResolveRoom()
		chatID, err := chatID(room.ID)
		if err != nil {
			return err
		}
		return a.sendAll(ctx, chatID, envelope.Strings)

	case chat.MethodReply:
		room := envelope.ResolveRoom()
		chatID, err := chatID(room.ID)
		if err != nil {
			return err
		}
		return a.sendAll(ctx, chatID, adapter.ReplyStrings(envelope))

	case chat.MethodDM:
		chatID, err := chatID(envelope.User.ID)
		if err != nil {
			return err
		}
		return a.sendAll(ctx, chatID, envelope.Strings)

	case chat.MethodReact:
		room := envelope.ResolveRoom()
		chatID, err := chatID(room.ID)
		if err != nil {
			return err
		}
		messageID, err := strconv.Atoi(envelope.MessageID)
		if err != nil {
			return fmt.Errorf("telegram react target %q: %w", envelope.MessageID, err)
		}
		reactions := make([]telego.ReactionType, 0, len(envelope.Strings))
		for _, emoji := range envelope.Strings {
			reactions = append(reactions, &telego.ReactionTypeEmoji{
				Type:  "emoji",
				Emoji: emoji,
			})
		}
		return a.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
			ChatID:    tu.ID(chatID),
			MessageID: messageID,
			Reaction:  reactions,
		})

	default:
		return fmt.Errorf("%s: %w", envelope.Method, adapter.ErrMethodUnsupported)
	}
}

func (a *Adapter) sendAll(ctx context.Context, chatID int64, lines []string) error {
	for _, line := range lines {
		if _, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), line)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

func chatID(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram chat id %q: %w", s, err)
	}
	return n, nil
}

func displayName(u *telego.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// Compile-time verification
var _ adapter.Message = (*Adapter)(nil)
