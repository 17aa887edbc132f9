// Package webhook forwards bot traffic to an external HTTP endpoint.
// It consumes bus taps, so a slow or dead endpoint never stalls the
// thought process.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mullbot/mull/pkg/bus"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/logger"
)

// Delivery is the JSON body POSTed per item.
type Delivery struct {
	Kind      string      `json:"kind"` // inbound, outbound, event
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Forwarder tails bus taps and POSTs each item to a URL.
type Forwarder struct {
	url    string
	client *http.Client
	bus    *bus.MessageBus
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a forwarder for a webhook URL.
func New(url string, mb *bus.MessageBus) *Forwarder {
	return &Forwarder{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		bus:    mb,
	}
}

// Name returns the adapter name.
func (f *Forwarder) Name() string { return "webhook" }

// Start taps the bus and begins forwarding.
func (f *Forwarder) Start(ctx context.Context) error {
	if f.url == "" {
		return fmt.Errorf("webhook url not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	inbound := f.bus.TapInbound("webhook")
	outbound := f.bus.TapOutbound("webhook")
	eventTap := f.bus.TapEvents("webhook")

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case item, ok := <-inbound:
				if !ok {
					return
				}
				f.post(runCtx, "inbound", inboundBody(item))
			case item, ok := <-outbound:
				if !ok {
					return
				}
				f.post(runCtx, "outbound", item)
			case item, ok := <-eventTap:
				if !ok {
					return
				}
				f.post(runCtx, "event", item)
			}
		}
	}()
	logger.InfoCF("webhook", "forwarding", map[string]interface{}{"url": f.url})
	return nil
}

// inboundBody flattens a message interface into a serialisable record.
func inboundBody(item interface{}) interface{} {
	msg, ok := item.(chat.Message)
	if !ok {
		return item
	}
	body := map[string]interface{}{
		"id":   msg.ID(),
		"text": msg.Text(),
	}
	if user := msg.User(); user != nil {
		body["user"] = user
	}
	return body
}

func (f *Forwarder) post(ctx context.Context, kind string, data interface{}) {
	delivery := Delivery{
		Kind:      kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	raw, err := json.Marshal(delivery)
	if err != nil {
		logger.WarnCF("webhook", "encode failed", map[string]interface{}{"error": err.Error()})
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		logger.WarnCF("webhook", "delivery failed", map[string]interface{}{"error": err.Error()})
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.WarnCF("webhook", "delivery rejected", map[string]interface{}{"status": resp.StatusCode})
	}
}

// Shutdown stops forwarding.
func (f *Forwarder) Shutdown(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
