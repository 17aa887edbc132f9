// Package shell provides the terminal message adapter used for local
// development. A readline loop feeds typed lines into the bot as text
// messages from a single local user; dispatched envelopes print to the
// same terminal.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/logger"
)

// Adapter implements adapter.Message on a local terminal.
type Adapter struct {
	botName  string
	receiver adapter.Receiver
	out      io.Writer

	rl     *readline.Instance
	user   *chat.User
	room   *chat.Room
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a shell adapter. The receiver is called for every line the
// operator types.
func New(botName string, receiver adapter.Receiver) *Adapter {
	room := &chat.Room{ID: "shell", Name: "shell"}
	user := chat.NewUser("local", userName()).InRoom(room)
	return &Adapter{
		botName:  botName,
		receiver: receiver,
		out:      os.Stdout,
		user:     user,
		room:     room,
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "shell" }

// Start opens the readline prompt and begins the input loop.
func (a *Adapter) Start(ctx context.Context) error {
	rl, err := readline.New(a.botName + "> ")
	if err != nil {
		return fmt.Errorf("open readline: %w", err)
	}
	a.rl = rl

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go a.loop(runCtx)
	logger.InfoC("shell", "terminal ready, type to talk")
	return nil
}

func (a *Adapter) loop(ctx context.Context) {
	defer a.wg.Done()
	for {
		line, err := a.rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return
			}
			continue
		}
		if err != nil {
			// io.EOF on ctrl-d or closed instance
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		msg := chat.NewTextMessage(a.user, line)
		if err := a.receiver(ctx, msg); err != nil {
			logger.ErrorCF("shell", "receive failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Shutdown closes the prompt and waits for the input loop.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.rl != nil {
		a.rl.Close()
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

// Dispatch prints the envelope to the terminal per its method.
func (a *Adapter) Dispatch(ctx context.Context, envelope *chat.Envelope) error {
	if err := envelope.Validate(); err != nil {
		return err
	}
	switch envelope.Method {
	case chat.MethodSend, chat.MethodDM:
		for _, line := range envelope.Strings {
			fmt.Fprintf(a.out, "%s: %s\n", a.botName, line)
		}
	case chat.MethodReply:
		for _, line := range adapter.ReplyStrings(envelope) {
			fmt.Fprintf(a.out, "%s: %s\n", a.botName, line)
		}
	case chat.MethodReact:
		for _, emoji := range envelope.Strings {
			fmt.Fprintf(a.out, "%s reacted %s\n", a.botName, emoji)
		}
	case chat.MethodEmote:
		for _, line := range envelope.Strings {
			fmt.Fprintf(a.out, "* %s %s\n", a.botName, line)
		}
	default:
		return fmt.Errorf("%s: %w", envelope.Method, adapter.ErrMethodUnsupported)
	}
	return nil
}

// SetOutput redirects dispatch output (tests).
func (a *Adapter) SetOutput(w io.Writer) { a.out = w }

func userName() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "local"
}

// Compile-time verification
var _ adapter.Message = (*Adapter)(nil)
