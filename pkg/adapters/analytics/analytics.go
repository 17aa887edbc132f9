// Package analytics keeps running counters of bot traffic. It consumes
// bus taps and exposes a snapshot for status surfaces and tests.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/mullbot/mull/pkg/bus"
	"github.com/mullbot/mull/pkg/events"
)

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Started   time.Time        `json:"started"`
	Inbound   int64            `json:"inbound"`
	Outbound  int64            `json:"outbound"`
	Events    int64            `json:"events"`
	ByEvent   map[string]int64 `json:"by_event"`
	LastEvent string           `json:"last_event,omitempty"`
}

// Collector tails bus taps and counts traffic.
type Collector struct {
	bus    *bus.MessageBus
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	started  time.Time
	inbound  int64
	outbound int64
	events   int64
	byEvent  map[string]int64
	last     string
}

// New creates a collector on a bus.
func New(mb *bus.MessageBus) *Collector {
	return &Collector{bus: mb, byEvent: make(map[string]int64)}
}

// Name returns the adapter name.
func (c *Collector) Name() string { return "analytics" }

// Start taps the bus and begins counting.
func (c *Collector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()

	inbound := c.bus.TapInbound("analytics")
	outbound := c.bus.TapOutbound("analytics")
	eventTap := c.bus.TapEvents("analytics")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case _, ok := <-inbound:
				if !ok {
					return
				}
				c.mu.Lock()
				c.inbound++
				c.mu.Unlock()
			case _, ok := <-outbound:
				if !ok {
					return
				}
				c.mu.Lock()
				c.outbound++
				c.mu.Unlock()
			case item, ok := <-eventTap:
				if !ok {
					return
				}
				c.count(item)
			}
		}
	}()
	return nil
}

func (c *Collector) count(item interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events++
	if ev, ok := item.(events.Event); ok {
		c.byEvent[ev.Type]++
		c.last = ev.Type
	}
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byEvent := make(map[string]int64, len(c.byEvent))
	for k, v := range c.byEvent {
		byEvent[k] = v
	}
	return Snapshot{
		Started:   c.started,
		Inbound:   c.inbound,
		Outbound:  c.outbound,
		Events:    c.events,
		ByEvent:   byEvent,
		LastEvent: c.last,
	}
}

// Shutdown stops counting. Counters survive for a final snapshot.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
