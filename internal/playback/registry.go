package playback

import (
	"sort"
	"sync"

	"vidclient/internal/media"
)

// slot is the per-element bookkeeping. attach serialises the
// release-then-attach sequence of competing Play calls on one element.
type slot struct {
	attach  sync.Mutex
	session *Session
	users   int
}

// elementRegistry maps each element to the session currently holding it.
// An element has at most one session, and so at most one attached engine.
type elementRegistry struct {
	mu    sync.Mutex
	slots map[media.Element]*slot
}

func newElementRegistry() *elementRegistry {
	return &elementRegistry{slots: make(map[media.Element]*slot)}
}

// acquire returns the slot for el, creating it if needed. Every acquire must
// be paired with a call to done.
func (r *elementRegistry) acquire(el media.Element) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[el]
	if !ok {
		sl = &slot{}
		r.slots[el] = sl
	}
	sl.users++
	return sl
}

func (r *elementRegistry) done(el media.Element, sl *slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl.users--
	r.pruneLocked(el, sl)
}

// swap installs s as the holder of el and returns the previous holder.
func (r *elementRegistry) swap(sl *slot, s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := sl.session
	sl.session = s
	return prev
}

// current returns the session holding el, if any.
func (r *elementRegistry) current(el media.Element) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sl, ok := r.slots[el]; ok {
		return sl.session
	}
	return nil
}

// remove drops s if it still holds its element.
func (r *elementRegistry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[s.element]
	if !ok || sl.session != s {
		return
	}
	sl.session = nil
	r.pruneLocked(s.element, sl)
}

func (r *elementRegistry) pruneLocked(el media.Element, sl *slot) {
	if sl.users == 0 && sl.session == nil {
		delete(r.slots, el)
	}
}

func (r *elementRegistry) sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.slots))
	for _, sl := range r.slots {
		if sl.session != nil {
			out = append(out, sl.session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
