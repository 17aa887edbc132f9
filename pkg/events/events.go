// Package events defines the typed event contracts for the mull runtime.
// Every event emitted by the thought process or the bot lifecycle uses one
// of these types. No ad-hoc map[string]interface{} events.
package events

import (
	"sync"
	"time"
)

// Event is the universal envelope for all runtime events.
type Event struct {
	// Type identifies the event (e.g. "thought.hear", "bot.started")
	Type string `json:"type"`

	// Source identifies who emitted the event
	Source string `json:"source"`

	// Timestamp is when the event was emitted
	Timestamp time.Time `json:"timestamp"`

	// Data is the typed payload
	Data interface{} `json:"data,omitempty"`
}

// New creates a timestamped event.
func New(eventType, source string, data interface{}) Event {
	return Event{
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}

const (
	// Bot lifecycle events
	BotStarted  = "bot.started"
	BotStopped  = "bot.stopped"
	BotSaved    = "bot.saved"
	BotError    = "bot.error"

	// Thought-process stage events, emitted at stage entry before validate
	ThoughtHear       = "thought.hear"
	ThoughtListen     = "thought.listen"
	ThoughtUnderstand = "thought.understand"
	ThoughtServe      = "thought.serve"
	ThoughtAct        = "thought.act"
	ThoughtRespond    = "thought.respond"
	ThoughtRemember   = "thought.remember"

	// Message flow events
	MessageReceived   = "message.received"
	EnvelopeDispatched = "envelope.dispatched"

	// Dialogue lifecycle events
	DialogueOpened = "dialogue.opened"
	DialogueClosed = "dialogue.closed"

	// Cron events
	CronTriggered = "cron.triggered"
)

// StageEvent maps a thought-process stage name to its event type.
func StageEvent(stage string) string { return "thought." + stage }

// Handler processes an event. Handlers run synchronously on the emitting
// goroutine and should be quick.
type Handler func(Event)

// Emitter dispatches events to registered handlers. It is the in-process
// seam between the core and observers (taps, webhooks, analytics).
type Emitter struct {
	handlers    map[string][]Handler
	allHandlers []Handler
	mu          sync.RWMutex
	closed      bool
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]Handler)}
}

// Emit dispatches an event to typed handlers first, then global handlers.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	for _, h := range e.handlers[ev.Type] {
		h(ev)
	}
	for _, h := range e.allHandlers {
		h(ev)
	}
}

// On registers a handler for a specific event type.
func (e *Emitter) On(eventType string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[eventType] = append(e.handlers[eventType], h)
}

// OnAll registers a handler that receives every event.
func (e *Emitter) OnAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allHandlers = append(e.allHandlers, h)
}

// Close stops dispatch. Further emits are dropped.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

// HandlerCount returns the number of registered handlers (diagnostics).
func (e *Emitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	count := len(e.allHandlers)
	for _, hs := range e.handlers {
		count += len(hs)
	}
	return count
}
