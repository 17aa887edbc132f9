package bot

import (
	"context"
	"testing"

	"github.com/mullbot/mull/pkg/adapters/storage/memory"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/config"
	"github.com/mullbot/mull/pkg/events"
	"github.com/mullbot/mull/pkg/thought"
)

type recordingMessages struct {
	dispatched []*chat.Envelope
}

func (r *recordingMessages) Name() string                       { return "recording" }
func (r *recordingMessages) Start(ctx context.Context) error    { return nil }
func (r *recordingMessages) Shutdown(ctx context.Context) error { return nil }
func (r *recordingMessages) Dispatch(ctx context.Context, e *chat.Envelope) error {
	r.dispatched = append(r.dispatched, e)
	return nil
}

func silentConfig() config.Config {
	cfg := config.Default()
	cfg.LogLevel = "silent"
	cfg.AutoSave = false
	return cfg
}

func inbound(text string) chat.Message {
	user := chat.NewUser("u1", "sam").InRoom(&chat.Room{ID: "general"})
	return chat.NewTextMessage(user, text)
}

func TestBrainSetGetUnset(t *testing.T) {
	b := New(silentConfig())
	b.Set("answer", 42)
	if v, ok := b.Get("answer"); !ok || v != 42 {
		t.Errorf("expected 42, got %v", v)
	}
	b.Unset("answer")
	if _, ok := b.Get("answer"); ok {
		t.Error("unset key still present")
	}
}

func TestReceiveEndToEnd(t *testing.T) {
	b := New(silentConfig())
	messages := &recordingMessages{}
	b.UseMessages(messages)
	b.UseStorage(memory.New())

	if _, err := b.Text(`\bping\b`, func(s *thought.State) error {
		return s.Reply("pong")
	}, thought.BranchID("ping")); err != nil {
		t.Fatalf("branch: %v", err)
	}

	state, err := b.Receive(context.Background(), inbound("ping"))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !state.Matched {
		t.Error("state should be matched")
	}
	if len(messages.dispatched) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(messages.dispatched))
	}
	if messages.dispatched[0].Method != chat.MethodReply {
		t.Errorf("expected reply method, got %s", messages.dispatched[0].Method)
	}
	if messages.dispatched[0].BranchID != "ping" {
		t.Errorf("expected branch id on envelope, got %q", messages.dispatched[0].BranchID)
	}
}

func TestDispatchUnprompted(t *testing.T) {
	b := New(silentConfig())
	messages := &recordingMessages{}
	b.UseMessages(messages)

	envelope := chat.NewEnvelope().ToRoom(&chat.Room{ID: "general"}).Write("scheduled notice")
	if _, err := b.Dispatch(context.Background(), envelope); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(messages.dispatched) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(messages.dispatched))
	}
}

func TestMemoryRoundTripAcrossBots(t *testing.T) {
	store := memory.New()

	first := New(silentConfig())
	first.UseStorage(store)
	first.Set("mood", "curious")
	first.Directory.UserByID("u1", &chat.User{ID: "u1", Name: "sam"})
	if err := first.SaveMemory(); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := New(silentConfig())
	second.UseStorage(store)
	if err := second.LoadMemory(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, ok := second.Get("mood"); !ok || v != "curious" {
		t.Errorf("brain did not survive the round trip: %v", v)
	}
	restored := second.Directory.UserByID("u1", nil)
	if restored.Name != "sam" {
		t.Errorf("user did not survive the round trip: %+v", restored)
	}
}

func TestRuntimeEventsReachBusTaps(t *testing.T) {
	b := New(silentConfig())
	tap := b.Bus.TapEvents("counter")

	b.Emitter.Emit(events.New(events.BotStarted, "test", nil))

	select {
	case item := <-tap:
		ev, ok := item.(events.Event)
		if !ok {
			t.Fatalf("tap carried %#v, want an event", item)
		}
		if ev.Type != events.BotStarted {
			t.Errorf("expected %s on the tap, got %s", events.BotStarted, ev.Type)
		}
	default:
		t.Fatal("emitted event never reached the bus event tap")
	}
}

func TestDialogueOpenedEmitsOncePerAudience(t *testing.T) {
	b := New(silentConfig())
	var opened int
	b.Emitter.On(events.DialogueOpened, func(events.Event) { opened++ })

	st := thought.NewState(inbound("let's talk"))
	first := b.Dialogue(thought.ScopeDirect, st)
	if first == nil {
		t.Fatal("expected a dialogue")
	}

	rejoin := thought.NewState(inbound("still talking"))
	if again := b.Dialogue(thought.ScopeDirect, rejoin); again != first {
		t.Error("same audience should rejoin the open dialogue")
	}
	if rejoin.Dialogue != first {
		t.Error("rejoining state should reference the dialogue")
	}
	if opened != 1 {
		t.Errorf("expected 1 opened event, got %d", opened)
	}
}

func TestStartAndShutdownLifecycle(t *testing.T) {
	b := New(silentConfig())
	b.UseMessages(&recordingMessages{})
	b.UseStorage(memory.New())

	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := b.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
