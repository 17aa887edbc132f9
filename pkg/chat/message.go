// Package chat defines the value objects flowing between platform adapters
// and the thought process: users, rooms, the tagged message variants, and
// the outbound envelope.
package chat

import (
	"fmt"

	"github.com/mullbot/mull/pkg/id"
	"github.com/mullbot/mull/pkg/nlu"
)

// ---------------------------------------------------------------------------
// User and Room identity records
// ---------------------------------------------------------------------------

// Room identifies where a conversation happens on a platform.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// User identifies who is talking. Users carry their current room; the
// directory deduplicates them by id.
type User struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name,omitempty"`
	Room *Room                  `json:"room,omitempty"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// NewUser creates a user with a generated id when none is given.
func NewUser(userID, name string) *User {
	if userID == "" {
		userID = id.Random()
	}
	return &User{ID: userID, Name: name}
}

// InRoom returns the user with the room set (builder style).
func (u *User) InRoom(room *Room) *User {
	u.Room = room
	return u
}

// ---------------------------------------------------------------------------
// Message variants
// ---------------------------------------------------------------------------

// Message is the tagged inbound variant consumed by the thought process.
// Every message carries a 32-char random id and a user reference.
type Message interface {
	ID() string
	User() *User
	Text() string
}

type base struct {
	id   string
	user *User
}

func newBase(user *User) base {
	return base{id: id.Random(), user: user}
}

func (b base) ID() string  { return b.id }
func (b base) User() *User { return b.user }

// SetID overrides the generated id with a platform-assigned one, so
// later reactions can target the original message on its platform.
func (b *base) SetID(messageID string) {
	if messageID != "" {
		b.id = messageID
	}
}

// TextMessage is an ordinary typed message. It is the only variant that
// mutates after construction: the understand stage attaches the NLU result.
type TextMessage struct {
	base
	text string

	// NLU is set by the understand stage when an adapter produced a result.
	NLU nlu.Result
}

// NewTextMessage creates a text message from a user.
func NewTextMessage(user *User, text string) *TextMessage {
	return &TextMessage{base: newBase(user), text: text}
}

func (m *TextMessage) Text() string { return m.text }

func (m *TextMessage) String() string {
	return fmt.Sprintf("text from %s: %q", m.user.ID, m.text)
}

// EnterMessage signals a user entering a room.
type EnterMessage struct{ base }

// NewEnterMessage creates an enter message.
func NewEnterMessage(user *User) *EnterMessage {
	return &EnterMessage{base: newBase(user)}
}

func (m *EnterMessage) Text() string { return "" }

// LeaveMessage signals a user leaving a room.
type LeaveMessage struct{ base }

// NewLeaveMessage creates a leave message.
func NewLeaveMessage(user *User) *LeaveMessage {
	return &LeaveMessage{base: newBase(user)}
}

func (m *LeaveMessage) Text() string { return "" }

// RichMessage carries platform-specific payloads (attachments, cards).
type RichMessage struct {
	base
	Payload map[string]interface{}
}

// NewRichMessage creates a rich message.
func NewRichMessage(user *User, payload map[string]interface{}) *RichMessage {
	return &RichMessage{base: newBase(user), Payload: payload}
}

func (m *RichMessage) Text() string { return "" }

// ServerMessage carries non-conversational data (webhooks, cron triggers)
// into the serve sequence. Branches match on its data keys.
type ServerMessage struct {
	base
	Data map[string]interface{}
}

// NewServerMessage creates a server message.
func NewServerMessage(user *User, data map[string]interface{}) *ServerMessage {
	return &ServerMessage{base: newBase(user), Data: data}
}

func (m *ServerMessage) Text() string { return "" }

// CatchAllMessage wraps a message that no branch matched, for the act stage.
type CatchAllMessage struct {
	Original Message
}

// NewCatchAllMessage wraps the original unmatched message.
func NewCatchAllMessage(original Message) *CatchAllMessage {
	return &CatchAllMessage{Original: original}
}

func (m *CatchAllMessage) ID() string   { return m.Original.ID() }
func (m *CatchAllMessage) User() *User  { return m.Original.User() }
func (m *CatchAllMessage) Text() string { return m.Original.Text() }
