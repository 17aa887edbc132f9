package analytics

import (
	"testing"

	"github.com/mullbot/mull/pkg/bus"
	"github.com/mullbot/mull/pkg/events"
)

func TestCountAndSnapshot(t *testing.T) {
	c := New(bus.New())

	c.count(events.New(events.MessageReceived, "test", nil))
	c.count(events.New(events.MessageReceived, "test", nil))
	c.count(events.New(events.DialogueOpened, "test", nil))
	c.count("not an event")

	snap := c.Snapshot()
	if snap.Events != 4 {
		t.Errorf("expected 4 events, got %d", snap.Events)
	}
	if snap.ByEvent[events.MessageReceived] != 2 {
		t.Errorf("expected 2 received, got %d", snap.ByEvent[events.MessageReceived])
	}
	if snap.LastEvent != events.DialogueOpened {
		t.Errorf("expected last event %s, got %s", events.DialogueOpened, snap.LastEvent)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New(bus.New())
	c.count(events.New(events.BotStarted, "test", nil))

	snap := c.Snapshot()
	snap.ByEvent[events.BotStarted] = 99

	if c.Snapshot().ByEvent[events.BotStarted] != 1 {
		t.Error("mutating a snapshot should not affect the collector")
	}
}
