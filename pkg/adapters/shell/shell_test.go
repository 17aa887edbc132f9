package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/chat"
)

func testAdapter() (*Adapter, *bytes.Buffer) {
	a := New("mull", func(ctx context.Context, msg chat.Message) error { return nil })
	var out bytes.Buffer
	a.SetOutput(&out)
	return a, &out
}

func TestDispatchSend(t *testing.T) {
	a, out := testAdapter()
	e := chat.NewEnvelope().ToRoom(&chat.Room{ID: "shell"}).Write("hello", "world")

	if err := a.Dispatch(context.Background(), e); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "mull: hello") || !strings.Contains(got, "mull: world") {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDispatchReplyPrefixesUser(t *testing.T) {
	a, out := testAdapter()
	room := &chat.Room{ID: "shell"}
	user := chat.NewUser("local-user", "sam").InRoom(room)
	e := chat.NewEnvelope().ToUser(user).Via(chat.MethodReply).Write("pong")

	if err := a.Dispatch(context.Background(), e); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "@sam pong") {
		t.Errorf("reply should mention the user: %q", out.String())
	}
}

func TestDispatchEmote(t *testing.T) {
	a, out := testAdapter()
	e := chat.NewEnvelope().ToRoom(&chat.Room{ID: "shell"}).Via(chat.MethodEmote).Write("waves")

	if err := a.Dispatch(context.Background(), e); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(out.String(), "* mull waves") {
		t.Errorf("unexpected emote output: %q", out.String())
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	a, _ := testAdapter()
	e := chat.NewEnvelope().ToRoom(&chat.Room{ID: "shell"}).Via("teleport").Write("x")

	err := a.Dispatch(context.Background(), e)
	if !errors.Is(err, adapter.ErrMethodUnsupported) {
		t.Errorf("expected ErrMethodUnsupported, got %v", err)
	}
}

func TestDispatchValidates(t *testing.T) {
	a, _ := testAdapter()
	err := a.Dispatch(context.Background(), chat.NewEnvelope().Write("nowhere"))
	if !errors.Is(err, chat.ErrNoRoom) {
		t.Errorf("expected ErrNoRoom, got %v", err)
	}
}
