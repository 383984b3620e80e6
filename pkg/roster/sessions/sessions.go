// Package sessions tracks connected client sessions and which of them
// holds primary authority over shared world state.
package sessions

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one connected client.
type Session struct {
	ID          string    `json:"id"`
	UserID      uint      `json:"user_id"`
	Gamemaster  bool      `json:"gamemaster"`
	ConnectedAt time.Time `json:"connected_at"`

	seq uint64
}

// Registry holds the connected sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	next     uint64
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Connect registers a new session for the user.
func (r *Registry) Connect(userID uint, gamemaster bool) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	s := Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Gamemaster:  gamemaster,
		ConnectedAt: r.now(),
		seq:         r.next,
	}
	r.sessions[s.ID] = s
	return s
}

// Disconnect removes a session. It reports whether the session existed.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// DisconnectUser removes every session of the user and returns how many
// were connected.
func (r *Registry) DisconnectUser(userID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Get returns a connected session.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// List returns the connected sessions in connection order.
func (r *Registry) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// SessionIDs returns the ids of the connected sessions in connection order.
func (r *Registry) SessionIDs() []string {
	list := r.List()
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}

// Primary returns the session holding primary authority: the connected
// gamemaster session with the lowest user id, earliest connection first.
func (r *Registry) Primary() (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best Session
	found := false
	for _, s := range r.sessions {
		if !s.Gamemaster {
			continue
		}
		if !found || s.UserID < best.UserID || (s.UserID == best.UserID && s.seq < best.seq) {
			best = s
			found = true
		}
	}
	return best, found
}

// IsPrimary reports whether id is the primary session.
func (r *Registry) IsPrimary(id string) bool {
	s, ok := r.Primary()
	return ok && s.ID == id
}
