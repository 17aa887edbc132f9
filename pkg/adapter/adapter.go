// Package adapter declares the ports the mull core consumes: message
// platforms, storage backends, and NLU providers. Implementations live in
// pkg/adapters; the core only ever sees these interfaces.
package adapter

import (
	"context"
	"strings"

	"github.com/mullbot/mull/pkg/chat"
)

// Error is a typed error for adapter failures.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrAdapterMissing marks an operation needing a collaborator that is
	// not configured. Dependent stages skip with a debug log; respond
	// without a message adapter rejects.
	ErrAdapterMissing Error = "adapter not configured"

	// ErrMethodUnsupported marks a dispatch method the adapter does not
	// interpret. Fatal for that envelope.
	ErrMethodUnsupported Error = "dispatch method unsupported"
)

// Message is the platform port. Implementations subscribe to their
// platform on Start and hand each inbound message to the receiver given
// at construction. Dispatch must honour the envelope method.
type Message interface {
	Name() string
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Dispatch(ctx context.Context, envelope *chat.Envelope) error
}

// Storage is the persistence port. "memory" is the reserved sub for the
// in-memory key/value brain; every other sub addresses an append-only
// serial store matched by shallow key equality.
type Storage interface {
	Name() string
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Keep(sub string, data interface{}) error
	Find(sub string, params map[string]interface{}) ([]map[string]interface{}, error)
	FindOne(sub string, params map[string]interface{}) (map[string]interface{}, error)
	Lose(sub string, params map[string]interface{}) error
	SaveMemory(data map[string]interface{}) error
	LoadMemory() (map[string]interface{}, error)
}

// NLU is the language-understanding port. The returned map is the raw
// per-provider shape; the core normalises it. An empty map means
// "no result".
type NLU interface {
	Name() string
	Process(ctx context.Context, message *chat.TextMessage) (map[string]interface{}, error)
}

// Receiver is the core entry a message adapter hands inbound messages to.
type Receiver func(ctx context.Context, msg chat.Message) error

// ReplyStrings applies the reply contract: when the envelope's room id
// does not embed the user id (a shared room rather than a direct thread),
// each string gets an "@username " prefix.
func ReplyStrings(envelope *chat.Envelope) []string {
	room := envelope.ResolveRoom()
	user := envelope.User
	if user == nil || room == nil || strings.Contains(room.ID, user.ID) {
		return envelope.Strings
	}
	name := user.Name
	if name == "" {
		name = user.ID
	}
	out := make([]string, len(envelope.Strings))
	for i, line := range envelope.Strings {
		out[i] = "@" + name + " " + line
	}
	return out
}

// MatchParams reports whether a stored record satisfies params by shallow
// key equality. Both storage implementations share this discipline so
// Find behaves identically regardless of backend.
func MatchParams(record, params map[string]interface{}) bool {
	for k, want := range params {
		got, ok := record[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
