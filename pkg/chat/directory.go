package chat

import "sync"

// ---------------------------------------------------------------------------
// Directory — process-wide user and room deduplication
// ---------------------------------------------------------------------------

// Directory deduplicates users and rooms by id. First seen wins for fields
// unless explicitly updated. The thought process looks identities up here
// rather than holding them on state across runs.
type Directory struct {
	users map[string]*User
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users: make(map[string]*User),
		rooms: make(map[string]*Room),
	}
}

// UserByID returns the canonical user for an id, creating it on first
// sight. Fields from the candidate fill gaps but never overwrite.
func (d *Directory) UserByID(userID string, candidate *User) *User {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.users[userID]
	if !ok {
		u := &User{ID: userID}
		if candidate != nil {
			u.Name = candidate.Name
			u.Room = candidate.Room
			u.Meta = candidate.Meta
		}
		d.users[userID] = u
		return u
	}
	if candidate != nil {
		if existing.Name == "" {
			existing.Name = candidate.Name
		}
		// Room tracks the user's latest location.
		if candidate.Room != nil {
			existing.Room = candidate.Room
		}
	}
	return existing
}

// UpdateUser explicitly overwrites the stored record for a user.
func (d *Directory) UpdateUser(u *User) {
	if u == nil || u.ID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Users returns a snapshot of all known users keyed by id.
func (d *Directory) Users() map[string]*User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*User, len(d.users))
	for k, v := range d.users {
		out[k] = v
	}
	return out
}

// RoomByID returns the canonical room for an id, creating it on first sight.
func (d *Directory) RoomByID(roomID string, candidate *Room) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.rooms[roomID]
	if !ok {
		r := &Room{ID: roomID}
		if candidate != nil {
			r.Name = candidate.Name
		}
		d.rooms[roomID] = r
		return r
	}
	if candidate != nil && existing.Name == "" {
		existing.Name = candidate.Name
	}
	return existing
}

// LoadUsers rehydrates the directory from persisted memory. Stored records
// replace in-memory ones wholesale.
func (d *Directory) LoadUsers(records map[string]*User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for userID, u := range records {
		if u == nil {
			continue
		}
		if u.ID == "" {
			u.ID = userID
		}
		d.users[userID] = u
	}
}
