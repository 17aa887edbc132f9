package chat

import (
	"time"

	"github.com/mullbot/mull/pkg/id"
)

// ---------------------------------------------------------------------------
// Envelope — outbound message builder
// ---------------------------------------------------------------------------

// Dispatch methods a message adapter must interpret. The set is open:
// adapters may support more, and fail with ErrMethodUnsupported otherwise.
const (
	MethodSend  = "send"
	MethodDM    = "dm"
	MethodReply = "reply"
	MethodReact = "react"
	MethodEmote = "emote"
)

// EnvelopeError is a typed error for envelope validation.
type EnvelopeError string

func (e EnvelopeError) Error() string { return string(e) }

const (
	ErrNoRoom   EnvelopeError = "envelope resolves to no room"
	ErrNoUser   EnvelopeError = "reply envelope requires a user"
	ErrNoTarget EnvelopeError = "react envelope requires a target message id"
)

// Attachment is a single rich payload element (file, card, image).
type Attachment map[string]interface{}

// Payload carries rich content alongside the envelope strings.
type Payload struct {
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Envelope is the outbound builder handed to a message adapter's Dispatch.
type Envelope struct {
	ID        string     `json:"id"`
	Method    string     `json:"method"`
	Room      *Room      `json:"room,omitempty"`
	User      *User      `json:"user,omitempty"`
	Strings   []string   `json:"strings,omitempty"`
	Payload   *Payload   `json:"payload,omitempty"`
	BranchID  string     `json:"branch_id,omitempty"`
	MessageID string     `json:"message_id,omitempty"` // react target
	Created   time.Time  `json:"created"`
	Responded time.Time  `json:"responded,omitempty"`
}

// NewEnvelope creates an empty envelope with the default send method.
func NewEnvelope() *Envelope {
	return &Envelope{
		ID:      id.Random(),
		Method:  MethodSend,
		Created: time.Now(),
	}
}

// ForMessage creates an envelope addressed back at a message's audience.
func ForMessage(m Message) *Envelope {
	e := NewEnvelope()
	if user := m.User(); user != nil {
		e.User = user
		e.Room = user.Room
	}
	e.MessageID = m.ID()
	return e
}

// Write appends strings to the ordered outbound sequence.
func (e *Envelope) Write(lines ...string) *Envelope {
	e.Strings = append(e.Strings, lines...)
	return e
}

// Attach appends an attachment to the payload.
func (e *Envelope) Attach(a Attachment) *Envelope {
	if e.Payload == nil {
		e.Payload = &Payload{}
	}
	e.Payload.Attachments = append(e.Payload.Attachments, a)
	return e
}

// Via sets the dispatch method.
func (e *Envelope) Via(method string) *Envelope {
	e.Method = method
	return e
}

// ToUser addresses the envelope at a user (dm and reply routing).
func (e *Envelope) ToUser(u *User) *Envelope {
	e.User = u
	if e.Room == nil && u != nil {
		e.Room = u.Room
	}
	return e
}

// ToRoom addresses the envelope at a room.
func (e *Envelope) ToRoom(r *Room) *Envelope {
	e.Room = r
	return e
}

// ResolveRoom returns the room the envelope dispatches to: the explicit
// room when it has an id, otherwise the user's room.
func (e *Envelope) ResolveRoom() *Room {
	if e.Room != nil && e.Room.ID != "" {
		return e.Room
	}
	if e.User != nil && e.User.Room != nil && e.User.Room.ID != "" {
		return e.User.Room
	}
	return nil
}

// Validate checks per-method required fields at dispatch entry.
func (e *Envelope) Validate() error {
	if e.ResolveRoom() == nil && e.User == nil {
		return ErrNoRoom
	}
	switch e.Method {
	case MethodReply:
		if e.User == nil {
			return ErrNoUser
		}
	case MethodReact:
		if e.MessageID == "" {
			return ErrNoTarget
		}
	}
	return nil
}
