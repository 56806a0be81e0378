package hls

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"vidclient/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVODServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/video/vid123/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		io.WriteString(w, "#EXTM3U\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=400000\nlow/index.m3u8\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=1200000\nhigh/index.m3u8\n")
	})
	mux.HandleFunc("/api/v1/video/vid123/high/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		io.WriteString(w, Encode(&Manifest{
			PlaylistType: "VOD",
			Ended:        true,
			Segments: []Segment{
				{Sequence: 0, Duration: 2, Path: "seg0.ts"},
				{Sequence: 1, Duration: 2, Path: "seg1.ts"},
				{Sequence: 2, Duration: 1.5, Path: "seg2.ts"},
			},
		}))
	})
	for _, name := range []string{"seg0", "seg1", "seg2"} {
		name := name
		mux.HandleFunc("/api/v1/video/vid123/high/"+name+".ts", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "["+name+"]")
		})
	}
	mux.HandleFunc("/api/v1/video/processing/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "File is not ready its still being processed", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEngine_Load_selects_best_variant(t *testing.T) {
	srv := newVODServer(t)
	e := NewEngine(srv.Client(), quietLogger(), nil)
	defer e.Destroy()

	require.NoError(t, e.Attach(media.NewFileSink(io.Discard)))
	require.NoError(t, e.Load(context.Background(), srv.URL+"/api/v1/video/vid123/index.m3u8"))

	pl := e.Playlist()
	require.NotNil(t, pl)
	assert.Len(t, pl.Segments, 3)
	assert.True(t, pl.IsVOD())
}

func TestEngine_Start_feeds_segments_in_order(t *testing.T) {
	srv := newVODServer(t)
	var out bytes.Buffer
	sink := media.NewFileSink(&out)

	e := NewEngine(srv.Client(), quietLogger(), nil)
	defer e.Destroy()
	require.NoError(t, e.Attach(sink))
	require.NoError(t, e.Load(context.Background(), srv.URL+"/api/v1/video/vid123/index.m3u8"))

	var fatal atomic.Value
	require.NoError(t, e.Start(func(err error) { fatal.Store(err) }))

	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not finish")
	}
	require.NoError(t, e.Err())
	assert.Nil(t, fatal.Load())
	assert.Equal(t, "[seg0][seg1][seg2]", out.String())
	assert.True(t, sink.Ended())
}

func TestEngine_Load_maps_status_codes(t *testing.T) {
	srv := newVODServer(t)

	t.Run("not_found", func(t *testing.T) {
		e := NewEngine(srv.Client(), quietLogger(), nil)
		defer e.Destroy()
		require.NoError(t, e.Attach(media.NewFileSink(io.Discard)))
		err := e.Load(context.Background(), srv.URL+"/api/v1/video/missing-id/index.m3u8")
		assert.True(t, errors.Is(err, ErrAssetNotFound), "got %v", err)
	})

	t.Run("still_processing", func(t *testing.T) {
		e := NewEngine(srv.Client(), quietLogger(), nil)
		defer e.Destroy()
		require.NoError(t, e.Attach(media.NewFileSink(io.Discard)))
		err := e.Load(context.Background(), srv.URL+"/api/v1/video/processing/index.m3u8")
		assert.True(t, errors.Is(err, ErrAssetNotReady), "got %v", err)
	})
}

func TestEngine_Start_reports_missing_segment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTM3U\n#EXTINF:1.0,\ngone.ts\n#EXT-X-ENDLIST\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewEngine(srv.Client(), quietLogger(), nil)
	defer e.Destroy()
	require.NoError(t, e.Attach(media.NewFileSink(io.Discard)))
	require.NoError(t, e.Load(context.Background(), srv.URL+"/index.m3u8"))

	fatal := make(chan error, 1)
	require.NoError(t, e.Start(func(err error) { fatal <- err }))

	select {
	case err := <-fatal:
		assert.ErrorIs(t, err, ErrAssetNotFound)
	case <-time.After(5 * time.Second):
		t.Fatal("expected fatal error")
	}
	<-e.Done()
	assert.Error(t, e.Err())
}

func TestEngine_Destroy_stops_live_feed(t *testing.T) {
	var reloads atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/live.m3u8", func(w http.ResponseWriter, r *http.Request) {
		n := reloads.Add(1)
		io.WriteString(w, Encode(&Manifest{
			TargetDuration: 1,
			MediaSequence:  int64(n),
			Segments:       []Segment{{Sequence: int64(n), Duration: 1, Path: "s.ts"}},
		}))
	})
	mux.HandleFunc("/s.ts", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "x")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := media.NewFileSink(io.Discard)
	e := NewEngine(srv.Client(), quietLogger(), nil)
	require.NoError(t, e.Attach(sink))
	require.NoError(t, e.Load(context.Background(), srv.URL+"/live.m3u8"))
	require.NoError(t, e.Start(nil))

	require.Eventually(t, func() bool {
		n, _ := sink.Stats()
		return n >= 2
	}, 5*time.Second, 20*time.Millisecond)

	e.Destroy()
	select {
	case <-e.Done():
	default:
		t.Fatal("Done should be closed after Destroy")
	}
	assert.NoError(t, e.Err())
	assert.False(t, sink.Ended())
	assert.ErrorIs(t, e.Load(context.Background(), srv.URL+"/live.m3u8"), ErrDestroyed)
}

type urlOnlyElement struct{}

func (urlOnlyElement) CanPlayType(string) bool       { return false }
func (urlOnlyElement) SetSource(string) error        { return nil }
func (urlOnlyElement) Play(ctx context.Context) error { return nil }

func TestEngine_Attach_requires_source_buffer(t *testing.T) {
	e := NewEngine(nil, quietLogger(), nil)
	defer e.Destroy()
	assert.Error(t, e.Attach(urlOnlyElement{}))
	assert.ErrorIs(t, e.Load(context.Background(), "http://127.0.0.1/index.m3u8"), ErrNotAttached)
}

func TestFetch_returns_master_as_is(t *testing.T) {
	srv := newVODServer(t)

	m, err := Fetch(context.Background(), srv.Client(), srv.URL+"/api/v1/video/vid123/index.m3u8")
	require.NoError(t, err)
	require.True(t, m.IsMaster())
	assert.Len(t, m.Variants, 2)

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/api/v1/video/processing/index.m3u8")
	assert.ErrorIs(t, err, ErrAssetNotReady)
}
