// Package bus fans message traffic out to observers. The thought process
// never blocks on an observer: taps are buffered and drop when slow.
// Webhook and analytics adapters consume taps.
package bus

import (
	"context"
	"sync"

	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/events"
)

// Subscriber is a named tap on a traffic stream. Multiple subscribers
// independently consume the same published items (fan-out).
type Subscriber struct {
	Name string
	ch   chan interface{}
}

// MessageBus carries inbound messages, outbound envelopes, and runtime
// events past any number of taps.
type MessageBus struct {
	inbound  chan chat.Message
	outbound chan *chat.Envelope

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	inboundSubs  []*Subscriber
	outboundSubs []*Subscriber
	eventSubs    []*Subscriber
}

// New creates a message bus with buffered primary channels.
func New() *MessageBus {
	return &MessageBus{
		inbound:  make(chan chat.Message, 100),
		outbound: make(chan *chat.Envelope, 100),
	}
}

// TapInbound creates a named subscriber receiving every inbound message.
// The returned channel is buffered; slow consumers drop.
func (mb *MessageBus) TapInbound(name string) <-chan interface{} {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &Subscriber{Name: name, ch: make(chan interface{}, 64)}
	mb.inboundSubs = append(mb.inboundSubs, sub)
	return sub.ch
}

// TapOutbound creates a named subscriber for dispatched envelopes.
func (mb *MessageBus) TapOutbound(name string) <-chan interface{} {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &Subscriber{Name: name, ch: make(chan interface{}, 64)}
	mb.outboundSubs = append(mb.outboundSubs, sub)
	return sub.ch
}

// TapEvents creates a named subscriber for runtime events.
func (mb *MessageBus) TapEvents(name string) <-chan interface{} {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	sub := &Subscriber{Name: name, ch: make(chan interface{}, 64)}
	mb.eventSubs = append(mb.eventSubs, sub)
	return sub.ch
}

func fanOut(subs []*Subscriber, item interface{}) {
	for _, sub := range subs {
		select {
		case sub.ch <- item:
		default: // non-blocking — drop if subscriber is slow
		}
	}
}

// PublishInbound fans an inbound message out and queues it on the primary
// channel, dropping the oldest entry under backpressure.
func (mb *MessageBus) PublishInbound(msg chat.Message) {
	mb.mu.RLock()
	if mb.closed {
		mb.mu.RUnlock()
		return
	}
	fanOut(mb.inboundSubs, msg)
	mb.mu.RUnlock()

	select {
	case mb.inbound <- msg:
	default:
		// Channel full — drop oldest and retry
		select {
		case <-mb.inbound:
		default:
		}
		select {
		case mb.inbound <- msg:
		default:
		}
	}
}

// PublishOutbound fans a dispatched envelope out to taps.
func (mb *MessageBus) PublishOutbound(envelope *chat.Envelope) {
	mb.mu.RLock()
	if mb.closed {
		mb.mu.RUnlock()
		return
	}
	fanOut(mb.outboundSubs, envelope)
	mb.mu.RUnlock()

	select {
	case mb.outbound <- envelope:
	default:
		select {
		case <-mb.outbound:
		default:
		}
		select {
		case mb.outbound <- envelope:
		default:
		}
	}
}

// PublishEvent fans a runtime event out to event taps.
func (mb *MessageBus) PublishEvent(ev events.Event) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	fanOut(mb.eventSubs, ev)
}

// ConsumeInbound blocks for the next primary inbound message.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (chat.Message, bool) {
	select {
	case msg := <-mb.inbound:
		return msg, true
	case <-ctx.Done():
		return nil, false
	}
}

// ConsumeOutbound blocks for the next primary outbound envelope.
func (mb *MessageBus) ConsumeOutbound(ctx context.Context) (*chat.Envelope, bool) {
	select {
	case envelope := <-mb.outbound:
		return envelope, true
	case <-ctx.Done():
		return nil, false
	}
}

// Close closes all subscriber channels and the primary channels.
func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		mb.mu.Lock()
		mb.closed = true
		for _, sub := range mb.inboundSubs {
			close(sub.ch)
		}
		for _, sub := range mb.outboundSubs {
			close(sub.ch)
		}
		for _, sub := range mb.eventSubs {
			close(sub.ch)
		}
		mb.mu.Unlock()
		close(mb.inbound)
		close(mb.outbound)
	})
}
