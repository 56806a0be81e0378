package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vidclient/internal/asset"
	"vidclient/internal/media"
	"vidclient/internal/platform/metrics"
)

// Options configures a Controller.
type Options struct {
	// BaseURL is the API root manifest URLs are built from,
	// e.g. http://localhost:8080/api/v1.
	BaseURL string

	// Engines builds segmented engines. Nil means no engine is available.
	Engines EngineFactory

	// OnStatus observes every transition of every session. Optional.
	OnStatus StatusFunc
}

// Controller starts playback sessions. It is safe for concurrent use.
type Controller struct {
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics
	elements *elementRegistry
}

// NewController returns a Controller. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewController(opts Options, log *slog.Logger, m *metrics.Metrics) *Controller {
	return &Controller{opts: opts, log: log, metrics: m, elements: newElementRegistry()}
}

// Play drives el to a playing state for id and returns the session. ctx
// bounds the whole session: cancelling it stops playback. A previous session
// on el is ended, and its engine released, before anything is attached.
//
// A non-nil session is returned for every request that got past input
// validation; its terminal error is also returned.
func (c *Controller) Play(ctx context.Context, id asset.ID, el media.Element) (*Session, error) {
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingAssetIdentifier, err)
	}
	if el == nil {
		return nil, errors.New("play: nil media element")
	}
	manifestURL, err := asset.ManifestURL(c.opts.BaseURL, id)
	if err != nil {
		return nil, fmt.Errorf("play: %w", err)
	}

	s := newSession(id, manifestURL, el, c.log, c.opts.OnStatus)
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	d, err := c.claim(s, el)
	if err != nil {
		c.finish(s, StateFailed, err)
		return s, s.Err()
	}

	if err := d.load(sctx, manifestURL); err != nil {
		c.finish(s, StateFailed, err)
		return s, s.Err()
	}
	if !s.advance(StateReady, StatusReadyToLoad) {
		return s, s.Err()
	}

	onFatal := func(err error) { c.finish(s, StateFailed, err) }
	if err := d.play(sctx, onFatal); err != nil {
		c.finish(s, StateFailed, err)
		return s, s.Err()
	}

	s.mu.Lock()
	s.stopWait = context.AfterFunc(sctx, func() { c.finish(s, StateStopped, nil) })
	s.mu.Unlock()

	if !s.advance(StatePlaying, d.playingStatus()) {
		return s, s.Err()
	}
	if c.metrics != nil {
		c.metrics.ObservePlayback(string(d.mode()), string(StatePlaying))
	}
	return s, nil
}

// claim makes s the holder of el, ending the previous holder first, and
// selects the delivery mode. For segmented delivery the new engine is
// attached before claim returns, so attaches on one element never overlap.
func (c *Controller) claim(s *Session, el media.Element) (delivery, error) {
	sl := c.elements.acquire(el)
	defer c.elements.done(el, sl)

	sl.attach.Lock()
	defer sl.attach.Unlock()

	if prev := c.elements.swap(sl, s); prev != nil {
		if prev.supersede() {
			c.observeEnd(prev)
		}
	}
	s.advance(StateLoading, StatusReadyToLoad)

	switch {
	case el.CanPlayType(media.HLSMimeType):
		d := &nativeDelivery{el: el}
		s.setDelivery(d)
		return d, nil

	case c.opts.Engines != nil && c.opts.Engines.Supported():
		d := &segmentedDelivery{el: el, engine: c.opts.Engines.New()}
		s.setDelivery(d)
		if err := d.engine.Attach(el); err != nil {
			return d, fmt.Errorf("%w: %w", ErrUnsupportedPlaybackEnvironment, err)
		}
		return d, nil

	default:
		return nil, ErrUnsupportedPlaybackEnvironment
	}
}

// Stop ends the session holding el, if any, and releases its engine.
func (c *Controller) Stop(el media.Element) {
	if s := c.elements.current(el); s != nil {
		c.finish(s, StateStopped, nil)
	}
}

// Current returns the session holding el, or nil.
func (c *Controller) Current(el media.Element) *Session {
	return c.elements.current(el)
}

// Sessions returns snapshots of the sessions currently holding an element.
func (c *Controller) Sessions() []Info {
	sessions := c.elements.sessions()
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	return out
}

// Active returns the number of elements held by a session.
func (c *Controller) Active() int {
	return len(c.elements.sessions())
}

func (c *Controller) finish(s *Session, state State, err error) {
	if !s.end(state, err) {
		return
	}
	c.elements.remove(s)
	c.observeEnd(s)
}

func (c *Controller) observeEnd(s *Session) {
	if c.metrics == nil {
		return
	}
	mode := s.Mode()
	if mode == ModeNone {
		mode = "none"
	}
	c.metrics.ObservePlayback(string(mode), string(s.State()))
}
