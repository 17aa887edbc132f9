// Package websock provides a message adapter speaking JSON frames over
// WebSocket. Custom clients connect to /ws, send inbound frames, and
// receive every dispatched envelope as an outbound frame.
package websock

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mullbot/mull/pkg/adapter"
	"github.com/mullbot/mull/pkg/chat"
	"github.com/mullbot/mull/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// InboundFrame is what a client sends: a message for the bot.
type InboundFrame struct {
	Type     string                 `json:"type"` // text, enter, leave, server
	UserID   string                 `json:"user_id"`
	UserName string                 `json:"user_name,omitempty"`
	RoomID   string                 `json:"room_id,omitempty"`
	RoomName string                 `json:"room_name,omitempty"`
	Text     string                 `json:"text,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// OutboundFrame is what clients receive: a dispatched envelope.
type OutboundFrame struct {
	Method    string   `json:"method"`
	RoomID    string   `json:"room_id,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	Strings   []string `json:"strings,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	Timestamp string   `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Adapter implements adapter.Message on a WebSocket endpoint.
type Adapter struct {
	addr     string
	receiver adapter.Receiver

	server  *http.Server
	mu      sync.RWMutex
	clients map[*client]bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a websocket adapter listening on addr.
func New(addr string, receiver adapter.Receiver) *Adapter {
	return &Adapter{
		addr:     addr,
		receiver: receiver,
		clients:  make(map[*client]bool),
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "websocket" }

// Start binds the listener and serves /ws upgrades.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.ctx = runCtx
	a.cancel = cancel

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.handleUpgrade)

	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		cancel()
		return fmt.Errorf("websocket listen %s: %w", a.addr, err)
	}
	a.server = &http.Server{Handler: mux}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("websocket", "server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
	logger.InfoCF("websocket", "listening", map[string]interface{}{"addr": a.addr})
	return nil
}

func (a *Adapter) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCF("websocket", "upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64)}
	a.mu.Lock()
	a.clients[c] = true
	a.mu.Unlock()
	logger.DebugC("websocket", "client connected")

	go a.writePump(c)
	go a.readPump(c)
}

func (a *Adapter) readPump(c *client) {
	defer func() {
		a.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.WarnCF("websocket", "bad frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		if msg := frame.message(); msg != nil {
			if err := a.receiver(a.ctx, msg); err != nil {
				logger.ErrorCF("websocket", "receive failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (f InboundFrame) message() chat.Message {
	room := &chat.Room{ID: f.RoomID, Name: f.RoomName}
	user := chat.NewUser(f.UserID, f.UserName).InRoom(room)
	switch f.Type {
	case "enter":
		return chat.NewEnterMessage(user)
	case "leave":
		return chat.NewLeaveMessage(user)
	case "server":
		return chat.NewServerMessage(user, f.Data)
	case "text", "":
		return chat.NewTextMessage(user, f.Text)
	}
	return nil
}

func (a *Adapter) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *Adapter) drop(c *client) {
	a.mu.Lock()
	if _, ok := a.clients[c]; ok {
		close(c.send)
		delete(a.clients, c)
	}
	a.mu.Unlock()
}

// Shutdown stops the server and disconnects clients.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	a.mu.Lock()
	for c := range a.clients {
		close(c.send)
		c.conn.Close()
		delete(a.clients, c)
	}
	a.mu.Unlock()
	a.wg.Wait()
	return nil
}

// Dispatch broadcasts the envelope as an outbound frame. Slow clients
// are dropped rather than blocking the respond stage.
func (a *Adapter) Dispatch(ctx context.Context, envelope *chat.Envelope) error {
	if err := envelope.Validate(); err != nil {
		return err
	}
	strings := envelope.Strings
	switch envelope.Method {
	case chat.MethodSend, chat.MethodDM, chat.MethodReact, chat.MethodEmote:
	case chat.MethodReply:
		strings = adapter.ReplyStrings(envelope)
	default:
		return fmt.Errorf("%s: %w", envelope.Method, adapter.ErrMethodUnsupported)
	}

	frame := OutboundFrame{
		Method:    envelope.Method,
		Strings:   strings,
		MessageID: envelope.MessageID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if room := envelope.ResolveRoom(); room != nil {
		frame.RoomID = room.ID
	}
	if envelope.User != nil {
		frame.UserID = envelope.User.ID
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	a.mu.Lock()
	for c := range a.clients {
		select {
		case c.send <- raw:
		default:
			close(c.send)
			delete(a.clients, c)
		}
	}
	a.mu.Unlock()
	return nil
}

// Compile-time verification
var _ adapter.Message = (*Adapter)(nil)
