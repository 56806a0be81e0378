package upload

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// registry tracks in-flight sessions. Sessions are removed once Submit
// returns, so it only ever holds pending uploads.
type registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[uuid.UUID]*Session)}
}

func (r *registry) begin(f *File) Session {
	s := &Session{
		ID:         uuid.New(),
		FileName:   f.Name,
		TotalBytes: f.Size,
		State:      StatePending,
		StartedAt:  time.Now().UTC(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return *s
}

func (r *registry) progress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[p.SessionID]; ok {
		s.BytesSent = p.BytesSent
		s.Percent = p.Percent
	}
}

// finish removes the session and returns its final snapshot.
func (r *registry) finish(id uuid.UUID, state State, fields func(*Session)) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{ID: id, State: state}
	}
	delete(r.sessions, id)
	s.State = state
	if fields != nil {
		fields(s)
	}
	return *s
}

func (r *registry) snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (r *registry) active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
