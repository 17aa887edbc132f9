// Package slack provides the Slack message adapter over Socket Mode.
// Events API messages become text messages; channel joins become enter
// messages.
package slack

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/logger"
)

// Adapter implements adapter.Message on a Socket Mode connection.
type Adapter struct {
	botToken string
	appToken string
	receiver adapter.Receiver

	api    *slack.Client
	client *socketmode.Client
	botID  string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a slack adapter. Socket Mode needs both a bot token and an
// app-level token.
func New(botToken, appToken string, receiver adapter.Receiver) *Adapter {
	return &Adapter{botToken: botToken, appToken: appToken, receiver: receiver}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "slack" }

// Start authenticates, opens the socket, and begins the event loop.
func (a *Adapter) Start(ctx context.Context) error {
	a.api = slack.New(a.botToken, slack.OptionAppLevelToken(a.appToken))

	auth, err := a.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	a.botID = auth.UserID

	a.client = socketmode.New(a.api)
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.client.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("slack", "socket loop ended", map[string]interface{}{"error": err.Error()})
		}
	}()
	go a.consume(runCtx)
	logger.InfoCF("slack", "socket mode connected", map[string]interface{}{"bot": auth.User})
	return nil
}

func (a *Adapter) consume(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.client.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if evt.Request != nil {
				a.client.Ack(*evt.Request)
			}
			a.handle(ctx, apiEvent)
		}
	}
}

func (a *Adapter) handle(ctx context.Context, apiEvent slackevents.EventsAPIEvent) {
	switch inner := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if inner.User == "" || inner.User == a.botID || inner.BotID != "" {
			return
		}
		room := &chat.Room{ID: inner.Channel}
		user := chat.NewUser(inner.User, "").InRoom(room)
		msg := chat.NewTextMessage(user, inner.Text)
		msg.SetID(inner.TimeStamp)
		a.receive(ctx, msg)

	case *slackevents.MemberJoinedChannelEvent:
		room := &chat.Room{ID: inner.Channel}
		user := chat.NewUser(inner.User, "").InRoom(room)
		a.receive(ctx, chat.NewEnterMessage(user))

	case *slackevents.MemberLeftChannelEvent:
		room := &chat.Room{ID: inner.Channel}
		user := chat.NewUser(inner.User, "").InRoom(room)
		a.receive(ctx, chat.NewLeaveMessage(user))
	}
}

func (a *Adapter) receive(ctx context.Context, msg chat.Message) {
	if err := a.receiver(ctx, msg); err != nil {
		logger.ErrorCF("slack", "receive failed", map[string]interface{}{"error": err.Error()})
	}
}

// Shutdown stops the socket loop.
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

// Dispatch sends the envelope through the Web API per its method.
func (a *Adapter) Dispatch(ctx context.Context, envelope *chat.Envelope) error {
	if err := envelope.Validate(); err != nil {
		return err
	}
	switch envelope.Method {
	case chat.MethodSend, chat.MethodEmote:
		return a.postAll(ctx, envelope.ResolveRoom().ID, envelope.Strings)

	case chat.MethodReply:
		return a.postAll(ctx, envelope.ResolveRoom().ID, adapter.ReplyStrings(envelope))

	case chat.MethodDM:
		channel, _, _, err := a.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
			Users: []string{envelope.User.ID},
		})
		if err != nil {
			return fmt.Errorf("slack dm channel: %w", err)
		}
		return a.postAll(ctx, channel.ID, envelope.Strings)

	case chat.MethodReact:
		room := envelope.ResolveRoom()
		ref := slack.NewRefToMessage(room.ID, envelope.MessageID)
		for _, emoji := range envelope.Strings {
			if err := a.api.AddReactionContext(ctx, emoji, ref); err != nil {
				return fmt.Errorf("slack react: %w", err)
			}
		}
		return nil

	default:
		return fmt.Errorf("%s: %w", envelope.Method, adapter.ErrMethodUnsupported)
	}
}

func (a *Adapter) postAll(ctx context.Context, channelID string, lines []string) error {
	for _, line := range lines {
		_, _, err := a.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(line, false))
		if err != nil {
			return fmt.Errorf("slack post: %w", err)
		}
	}
	return nil
}

// Compile-time verification
var _ adapter.Message = (*Adapter)(nil)
