package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"vidclient/internal/media"
	"vidclient/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	maxManifestBytes = 4 << 20
	maxSegmentBytes  = 64 << 20
	prefetchDepth    = 2
)

var (
	// ErrAssetNotFound is returned when the manifest endpoint answers 404.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAssetNotReady is returned when the manifest endpoint answers 403,
	// which the storage service uses while an upload is still being processed.
	ErrAssetNotReady = errors.New("asset is still being processed")

	// ErrNotAttached is returned when Load or Start run before Attach.
	ErrNotAttached = errors.New("engine has no attached media element")

	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("engine destroyed")
)

// Engine is a segmented-streaming engine. It fetches and parses a manifest,
// then fetches segments in playlist order and appends them to the attached
// element's SourceBuffer. An Engine is used for exactly one manifest.
type Engine struct {
	client  *http.Client
	log     *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	el          media.Element
	buf         media.SourceBuffer
	playlist    *Manifest
	playlistURL *url.URL
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	destroyed   bool
}

// NewEngine returns an Engine that fetches over client. Metrics may be nil.
func NewEngine(client *http.Client, log *slog.Logger, m *metrics.Metrics) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{client: client, log: log, metrics: m}
}

// Attach binds the engine to el. The element must implement media.SourceBuffer.
func (e *Engine) Attach(el media.Element) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	buf, ok := el.(media.SourceBuffer)
	if !ok {
		return fmt.Errorf("attach: element %T cannot accept segments", el)
	}
	e.el = el
	e.buf = buf
	return nil
}

// Load fetches manifestURL and, for a master playlist, the highest-bandwidth
// variant. It returns once the media playlist has been parsed.
func (e *Engine) Load(ctx context.Context, manifestURL string) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	if e.buf == nil {
		e.mu.Unlock()
		return ErrNotAttached
	}
	e.mu.Unlock()

	u, err := url.Parse(manifestURL)
	if err != nil {
		return fmt.Errorf("parse manifest url: %w", err)
	}
	m, err := e.fetchManifest(ctx, u)
	if err != nil {
		return err
	}

	if m.IsMaster() {
		v, _ := m.BestVariant()
		vu, err := u.Parse(v.URI)
		if err != nil {
			return fmt.Errorf("%w: variant uri %q: %v", ErrInvalidManifest, v.URI, err)
		}
		e.log.Debug("variant selected",
			slog.String("uri", vu.String()),
			slog.Int64("bandwidth", v.Bandwidth),
			slog.String("resolution", v.Resolution))
		u = vu
		if m, err = e.fetchManifest(ctx, u); err != nil {
			return err
		}
		if m.IsMaster() {
			return fmt.Errorf("%w: variant %q is itself a master playlist", ErrInvalidManifest, v.URI)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	e.playlist = m
	e.playlistURL = u
	e.log.Debug("manifest parsed",
		slog.String("url", u.String()),
		slog.Int("segments", len(m.Segments)),
		slog.Bool("vod", m.IsVOD()))
	return nil
}

// Playlist returns the parsed media playlist, or nil before Load succeeds.
func (e *Engine) Playlist() *Manifest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playlist
}

// Start begins feeding segments in the background. onFatal is called at most
// once with the first non-cancellation error. Start must follow a successful Load.
func (e *Engine) Start(onFatal func(error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if e.playlist == nil {
		return errors.New("start: manifest not loaded")
	}
	if e.done != nil {
		return errors.New("start: already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go func(playlist *Manifest, base *url.URL, buf media.SourceBuffer, done chan struct{}) {
		err := e.feed(ctx, playlist, base, buf)
		if err != nil && ctx.Err() != nil {
			err = nil
		}
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		close(done)

		// onFatal runs after done is closed so it may call Destroy.
		if err != nil {
			e.log.Error("segment feed failed", slog.String("error", err.Error()))
			if onFatal != nil {
				onFatal(err)
			}
		}
	}(e.playlist, e.playlistURL, e.buf, e.done)
	return nil
}

// Done is closed when segment feeding stops. It is nil before Start.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Err returns the error that stopped feeding, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Destroy stops feeding, waits for the feeder to exit and detaches the element.
// It is safe to call more than once.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	e.mu.Lock()
	e.el = nil
	e.buf = nil
	e.mu.Unlock()
}

type fetchedSegment struct {
	info media.SegmentInfo
	data []byte
}

// feed runs a fetcher and an appender connected by a small buffered channel.
// Live playlists are reloaded every target duration until they end.
func (e *Engine) feed(ctx context.Context, playlist *Manifest, base *url.URL, buf media.SourceBuffer) error {
	g, ctx := errgroup.WithContext(ctx)
	segments := make(chan fetchedSegment, prefetchDepth)

	g.Go(func() error {
		defer close(segments)
		next := int64(-1)
		for {
			for _, seg := range playlist.Segments {
				if seg.Sequence <= next {
					continue
				}
				fs, err := e.fetchSegment(ctx, base, seg)
				if err != nil {
					return err
				}
				select {
				case segments <- fs:
				case <-ctx.Done():
					return ctx.Err()
				}
				next = seg.Sequence
			}
			if playlist.IsVOD() {
				return nil
			}

			wait := time.Duration(playlist.TargetDuration) * time.Second
			if wait <= 0 {
				wait = time.Second
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			reloaded, err := e.fetchManifest(ctx, base)
			if err != nil {
				return err
			}
			if reloaded.IsMaster() {
				return fmt.Errorf("%w: media playlist turned into a master playlist", ErrInvalidManifest)
			}
			playlist = reloaded
		}
	})

	g.Go(func() error {
		for fs := range segments {
			if err := buf.AppendSegment(ctx, fs.info, bytes.NewReader(fs.data)); err != nil {
				return err
			}
			if e.metrics != nil {
				e.metrics.IncSegmentsAppended()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return buf.EndOfStream()
	})

	return g.Wait()
}

func (e *Engine) fetchSegment(ctx context.Context, base *url.URL, seg Segment) (fetchedSegment, error) {
	su, err := base.Parse(seg.Path)
	if err != nil {
		return fetchedSegment{}, fmt.Errorf("%w: segment uri %q: %v", ErrInvalidManifest, seg.Path, err)
	}
	body, err := e.get(ctx, su, maxSegmentBytes)
	if err != nil {
		return fetchedSegment{}, fmt.Errorf("segment %d: %w", seg.Sequence, err)
	}
	return fetchedSegment{
		info: media.SegmentInfo{
			Sequence: seg.Sequence,
			Duration: time.Duration(seg.Duration * float64(time.Second)),
			URL:      su.String(),
		},
		data: body,
	}, nil
}

// Fetch downloads and parses the playlist at manifestURL as is. Master
// playlists are returned without following a variant.
func Fetch(ctx context.Context, client *http.Client, manifestURL string) (*Manifest, error) {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}
	return NewEngine(client, nil, nil).fetchManifest(ctx, u)
}

func (e *Engine) fetchManifest(ctx context.Context, u *url.URL) (*Manifest, error) {
	body, err := e.get(ctx, u, maxManifestBytes)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(body))
}

func (e *Engine) get(ctx context.Context, u *url.URL, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", u.Path, ErrAssetNotFound)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("GET %s: %w", u.Path, ErrAssetNotReady)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("GET %s: unexpected status %d", u.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.Path, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", u.Path, limit)
	}
	return body, nil
}
