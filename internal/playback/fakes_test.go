package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"vidclient/internal/media"
)

// recorder keeps an ordered log of element and engine calls.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) index(event string) int {
	for i, e := range r.list() {
		if e == event {
			return i
		}
	}
	return -1
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.list() {
		if e == event {
			n++
		}
	}
	return n
}

type fakeElement struct {
	native  bool
	playErr error
	rec     *recorder

	mu      sync.Mutex
	sources []string
}

func (e *fakeElement) CanPlayType(mimeType string) bool {
	return e.native && mimeType == media.HLSMimeType
}

func (e *fakeElement) SetSource(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, url)
	e.rec.add("source %s", url)
	return nil
}

func (e *fakeElement) Play(ctx context.Context) error {
	e.rec.add("play")
	if e.playErr != nil {
		return e.playErr
	}
	return ctx.Err()
}

func (e *fakeElement) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sources...)
}

type fakeEngine struct {
	n           int
	rec         *recorder
	attachedNow *atomic.Int32
	maxAttached *atomic.Int32

	loadStarted chan struct{}
	loadGate    chan struct{}
	loadErr     error
	fatal       error

	mu        sync.Mutex
	attached  bool
	destroyed bool
	done      chan struct{}
	closeDone sync.Once
	err       error
}

func (e *fakeEngine) Attach(media.Element) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errors.New("attach after destroy")
	}
	e.rec.add("attach#%d", e.n)
	e.attached = true
	now := e.attachedNow.Add(1)
	for {
		peak := e.maxAttached.Load()
		if now <= peak || e.maxAttached.CompareAndSwap(peak, now) {
			break
		}
	}
	return nil
}

func (e *fakeEngine) Load(ctx context.Context, manifestURL string) error {
	e.rec.add("load#%d", e.n)
	if e.loadStarted != nil {
		close(e.loadStarted)
	}
	if e.loadGate != nil {
		select {
		case <-e.loadGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return e.loadErr
}

func (e *fakeEngine) Start(onFatal func(error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec.add("start#%d", e.n)
	e.done = make(chan struct{})
	if e.fatal != nil {
		go func(done chan struct{}) {
			e.mu.Lock()
			e.err = e.fatal
			e.mu.Unlock()
			e.closeDone.Do(func() { close(done) })
			onFatal(e.fatal)
		}(e.done)
	}
	return nil
}

func (e *fakeEngine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *fakeEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *fakeEngine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.rec.add("destroy#%d", e.n)
	if e.attached {
		e.attachedNow.Add(-1)
		e.attached = false
	}
	if e.done != nil {
		done := e.done
		e.closeDone.Do(func() { close(done) })
	}
}

func (e *fakeEngine) isDestroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

type fakeFactory struct {
	rec         *recorder
	configure   func(*fakeEngine)
	attachedNow atomic.Int32
	maxAttached atomic.Int32

	mu      sync.Mutex
	engines []*fakeEngine
}

func (f *fakeFactory) Supported() bool { return true }

func (f *fakeFactory) New() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &fakeEngine{
		n:           len(f.engines) + 1,
		rec:         f.rec,
		attachedNow: &f.attachedNow,
		maxAttached: &f.maxAttached,
	}
	if f.configure != nil {
		f.configure(e)
	}
	f.engines = append(f.engines, e)
	return e
}

func (f *fakeFactory) built() []*fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeEngine(nil), f.engines...)
}

// statusLog collects published statuses.
type statusLog struct {
	mu       sync.Mutex
	statuses []string
}

func (l *statusLog) observe(t Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, t.Status)
}

func (l *statusLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.statuses...)
}
