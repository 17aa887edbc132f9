package chat

import (
	"errors"
	"testing"
)

func TestEnvelopeBuilder(t *testing.T) {
	room := &Room{ID: "general"}
	user := NewUser("u1", "sam").InRoom(room)

	e := NewEnvelope().ToUser(user).Write("one").Write("two", "three").Via(MethodDM)
	if e.Method != MethodDM {
		t.Errorf("expected dm method, got %s", e.Method)
	}
	if len(e.Strings) != 3 {
		t.Errorf("expected 3 strings, got %v", e.Strings)
	}
	if e.Room != room {
		t.Error("ToUser should adopt the user's room when none is set")
	}
	if len(e.ID) != 32 {
		t.Errorf("expected 32-char id, got %q", e.ID)
	}
}

func TestEnvelopeResolveRoom(t *testing.T) {
	userRoom := &Room{ID: "from-user"}
	explicit := &Room{ID: "explicit"}
	user := NewUser("u1", "sam").InRoom(userRoom)

	e := NewEnvelope().ToUser(user)
	e.Room = nil
	if got := e.ResolveRoom(); got == nil || got.ID != "from-user" {
		t.Errorf("expected the user's room, got %v", got)
	}

	e.ToRoom(explicit)
	if got := e.ResolveRoom(); got == nil || got.ID != "explicit" {
		t.Errorf("explicit room should win, got %v", got)
	}
}

func TestEnvelopeValidate(t *testing.T) {
	room := &Room{ID: "r"}
	user := NewUser("u1", "sam").InRoom(room)

	tests := []struct {
		name    string
		build   func() *Envelope
		wantErr error
	}{
		{
			name:    "no audience",
			build:   func() *Envelope { return NewEnvelope() },
			wantErr: ErrNoRoom,
		},
		{
			name: "reply needs a user",
			build: func() *Envelope {
				return NewEnvelope().ToRoom(room).Via(MethodReply)
			},
			wantErr: ErrNoUser,
		},
		{
			name: "react needs a target",
			build: func() *Envelope {
				return NewEnvelope().ToRoom(room).Via(MethodReact)
			},
			wantErr: ErrNoTarget,
		},
		{
			name: "valid send",
			build: func() *Envelope {
				return NewEnvelope().ToRoom(room).Write("hi")
			},
		},
		{
			name: "valid react",
			build: func() *Envelope {
				e := NewEnvelope().ToUser(user).Via(MethodReact).Write("+1")
				e.MessageID = "m1"
				return e
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestForMessageTargetsAudience(t *testing.T) {
	user := NewUser("u1", "sam").InRoom(&Room{ID: "r1"})
	msg := NewTextMessage(user, "hello")

	e := ForMessage(msg)
	if e.User != user {
		t.Error("envelope should address the message user")
	}
	if e.MessageID != msg.ID() {
		t.Error("envelope should carry the message id for reactions")
	}
}

func TestMessageSetID(t *testing.T) {
	msg := NewTextMessage(NewUser("u1", ""), "hi")
	msg.SetID("platform-42")
	if msg.ID() != "platform-42" {
		t.Errorf("expected platform id, got %s", msg.ID())
	}
	msg.SetID("")
	if msg.ID() != "platform-42" {
		t.Error("empty id should not overwrite")
	}
}
