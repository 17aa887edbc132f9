package thought

import (
	"sync"

	"github.com/mullbot/mull/pkg/chat"
)

// ---------------------------------------------------------------------------
// Dialogue — per-audience path scoping
// ---------------------------------------------------------------------------

// Scope determines how a dialogue's audience is keyed.
type Scope string

const (
	// ScopeDirect keys on user and room together: one conversation thread.
	ScopeDirect Scope = "direct"
	// ScopeUser follows the user across rooms.
	ScopeUser Scope = "user"
	// ScopeRoom engages everyone in the room.
	ScopeRoom Scope = "room"
)

// Dialogue swaps in a private path for one audience's conversation.
type Dialogue struct {
	audience     string
	scope        Scope
	path         *Path
	previousPath *Path
}

// Path returns the dialogue's current path. During a receive this is the
// fresh path callbacks add follow-up branches to.
func (d *Dialogue) Path() *Path { return d.path }

// Scope returns the dialogue's audience scope.
func (d *Dialogue) Scope() Scope { return d.scope }

// ProgressPath swaps the current path aside as previousPath, installs a
// fresh empty path for branches added in callbacks, and returns the
// swapped-aside path for processing.
func (d *Dialogue) ProgressPath() *Path {
	previous := d.path
	d.previousPath = previous
	d.path = NewPath()
	return previous
}

// RevertPath restores the previous path after an unmatched run, so the
// next turn retries the same branch set.
func (d *Dialogue) RevertPath() {
	if d.previousPath != nil {
		d.path = d.previousPath
		d.previousPath = nil
	}
}

// audienceKey derives the deterministic registry key for a scope and
// message audience.
func audienceKey(scope Scope, m chat.Message) string {
	var userID, roomID string
	if user := m.User(); user != nil {
		userID = user.ID
		if user.Room != nil {
			roomID = user.Room.ID
		}
	}
	switch scope {
	case ScopeUser:
		return string(scope) + "/" + userID
	case ScopeRoom:
		return string(scope) + "/" + roomID
	default:
		return string(scope) + "/" + userID + "/" + roomID
	}
}

// Dialogues is the process-wide registry of open dialogues keyed by
// audience.
type Dialogues struct {
	mu   sync.Mutex
	open map[string]*Dialogue
}

// NewDialogues creates an empty registry.
func NewDialogues() *Dialogues {
	return &Dialogues{open: make(map[string]*Dialogue)}
}

// Open engages a dialogue for the state's message audience and reports
// whether it was newly created. An already open dialogue for the same
// audience is reused; either way the state references it afterwards.
func (ds *Dialogues) Open(scope Scope, s *State) (*Dialogue, bool) {
	if s.Message == nil {
		return nil, false
	}
	key := audienceKey(scope, s.Message)

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if existing, ok := ds.open[key]; ok {
		s.Dialogue = existing
		return existing, false
	}
	d := &Dialogue{audience: key, scope: scope, path: NewPath()}
	ds.open[key] = d
	s.Dialogue = d
	return d, true
}

// Engaged locates the dialogue for the state's message audience, checking
// the narrowest scope first.
func (ds *Dialogues) Engaged(s *State) *Dialogue {
	if s.Message == nil {
		return nil
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	for _, scope := range []Scope{ScopeDirect, ScopeUser, ScopeRoom} {
		if d, ok := ds.open[audienceKey(scope, s.Message)]; ok {
			return d
		}
	}
	return nil
}

// Close removes the dialogue from the registry.
func (ds *Dialogues) Close(d *Dialogue) {
	if d == nil {
		return
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.open, d.audience)
}

// Count returns the number of open dialogues (diagnostics).
func (ds *Dialogues) Count() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return len(ds.open)
}
