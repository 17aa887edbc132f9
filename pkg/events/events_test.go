package events

import "testing"

func TestEmitterTypedAndGlobalHandlers(t *testing.T) {
	e := NewEmitter()
	var typed, all int
	e.On(BotStarted, func(Event) { typed++ })
	e.OnAll(func(Event) { all++ })

	e.Emit(New(BotStarted, "test", nil))
	e.Emit(New(BotStopped, "test", nil))

	if typed != 1 {
		t.Errorf("expected 1 typed delivery, got %d", typed)
	}
	if all != 2 {
		t.Errorf("expected 2 global deliveries, got %d", all)
	}
	if e.HandlerCount() != 2 {
		t.Errorf("expected 2 handlers, got %d", e.HandlerCount())
	}
}

func TestEmitterClose(t *testing.T) {
	e := NewEmitter()
	var count int
	e.OnAll(func(Event) { count++ })
	e.Close()
	e.Emit(New(BotStarted, "test", nil))
	if count != 0 {
		t.Error("closed emitter should drop events")
	}
}

func TestStageEvent(t *testing.T) {
	if StageEvent("hear") != ThoughtHear {
		t.Errorf("expected %s, got %s", ThoughtHear, StageEvent("hear"))
	}
}
