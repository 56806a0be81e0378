package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidclient/internal/asset"
	"vidclient/internal/media"

	"github.com/google/uuid"
)

// Session is one playback attempt of one asset on one element. Its delivery,
// and with it any engine instance, belongs to the session alone.
type Session struct {
	ID          uuid.UUID
	AssetID     asset.ID
	ManifestURL string
	StartedAt   time.Time

	element media.Element
	log     *slog.Logger
	notify  StatusFunc
	cancel  context.CancelFunc

	mu       sync.Mutex
	state    State
	status   string
	err      error
	delivery delivery
	finished chan struct{}
	stopWait func() bool

	releaseOnce sync.Once
}

func newSession(id asset.ID, manifestURL string, el media.Element, log *slog.Logger, notify StatusFunc) *Session {
	sid := uuid.New()
	return &Session{
		ID:          sid,
		AssetID:     id,
		ManifestURL: manifestURL,
		StartedAt:   time.Now().UTC(),
		element:     el,
		log:         log.With(slog.String("session_id", sid.String()), slog.String("asset_id", string(id))),
		notify:      notify,
		cancel:      func() {},
		state:       StateIdle,
		status:      StatusReadyToLoad,
		finished:    make(chan struct{}),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the human-readable status.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the failure reason of a failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Mode returns the delivery mode, or ModeNone before selection.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivery == nil {
		return ModeNone
	}
	return s.delivery.mode()
}

// Info returns a snapshot for display.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:          s.ID,
		AssetID:     s.AssetID,
		ManifestURL: s.ManifestURL,
		State:       s.state,
		Status:      s.status,
		StartedAt:   s.StartedAt,
	}
	if s.delivery != nil {
		info.Mode = s.delivery.mode()
	}
	if s.err != nil {
		info.Error = s.err.Error()
	}
	return info
}

// Wait blocks until the session ends, its delivery has fed everything, or ctx
// is done. Native sessions never finish feeding on their own.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	d := s.delivery
	s.mu.Unlock()

	var fed <-chan struct{}
	if d != nil {
		fed = d.done()
	}
	select {
	case <-s.finished:
		return s.Err()
	case <-fed:
		return d.err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// setDelivery records the chosen delivery. It is called once per session.
func (s *Session) setDelivery(d delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivery = d
}

// advance moves a live session to state. It reports false if the session
// already ended.
func (s *Session) advance(state State, status string) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.status = status
	t := s.transitionLocked()
	s.mu.Unlock()

	s.publish(t)
	return true
}

// end moves the session to a terminal state, cancels its context and
// releases its delivery. Only the first call has any effect.
func (s *Session) end(state State, err error) bool {
	return s.endWith(func(State) (State, error) { return state, err })
}

// supersede ends the session because a newer Play took its element. A
// playing session stops; one that never reached playing fails.
func (s *Session) supersede() bool {
	return s.endWith(func(cur State) (State, error) {
		if cur == StatePlaying {
			return StateStopped, nil
		}
		return StateFailed, ErrSuperseded
	})
}

func (s *Session) endWith(decide func(State) (State, error)) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.state, s.err = decide(s.state)
	if s.state == StateFailed {
		s.status = statusFailedPrefix + s.err.Error()
	} else {
		s.status = StatusStopped
	}
	stopWait := s.stopWait
	t := s.transitionLocked()
	close(s.finished)
	s.mu.Unlock()

	if stopWait != nil {
		stopWait()
	}
	s.cancel()
	s.release()
	s.publish(t)
	return true
}

// release frees the delivery exactly once. Concurrent callers block until
// the first release has finished.
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		d := s.delivery
		s.mu.Unlock()
		if d != nil {
			d.release()
		}
	})
}

func (s *Session) transitionLocked() Transition {
	t := Transition{
		SessionID: s.ID,
		AssetID:   s.AssetID,
		Mode:      ModeNone,
		State:     s.state,
		Status:    s.status,
		Err:       s.err,
	}
	if s.delivery != nil {
		t.Mode = s.delivery.mode()
	}
	return t
}

func (s *Session) publish(t Transition) {
	attrs := []any{
		slog.String("state", string(t.State)),
		slog.String("status", t.Status),
		slog.String("mode", string(t.Mode)),
	}
	if t.Err != nil {
		s.log.Warn("playback transition", append(attrs, slog.String("error", t.Err.Error()))...)
	} else {
		s.log.Info("playback transition", attrs...)
	}
	if s.notify != nil {
		s.notify(t)
	}
}
