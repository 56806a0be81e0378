package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNativeUnsupported is returned by elements that cannot load a URL themselves.
var ErrNativeUnsupported = errors.New("element has no native playback support")

// FileSink is an Element without native HLS support. It renders by writing
// every appended segment, in order, to w.
type FileSink struct {
	mu       sync.Mutex
	w        io.Writer
	playing  bool
	ended    bool
	segments int
	bytes    int64
}

// NewFileSink returns a sink that writes segment payloads to w.
func NewFileSink(w io.Writer) *FileSink {
	return &FileSink{w: w}
}

// CanPlayType implements Element. A sink never plays manifests natively.
func (s *FileSink) CanPlayType(string) bool { return false }

// SetSource implements Element.
func (s *FileSink) SetSource(string) error { return ErrNativeUnsupported }

// Play implements Element.
func (s *FileSink) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

// AppendSegment implements SourceBuffer.
func (s *FileSink) AppendSegment(ctx context.Context, info SegmentInfo, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return fmt.Errorf("append segment %d: stream already ended", info.Sequence)
	}
	n, err := io.Copy(s.w, data)
	s.bytes += n
	if err != nil {
		return fmt.Errorf("append segment %d: %w", info.Sequence, err)
	}
	s.segments++
	return nil
}

// EndOfStream implements SourceBuffer.
func (s *FileSink) EndOfStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return nil
}

// Stats returns the number of segments and bytes written so far.
func (s *FileSink) Stats() (segments int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segments, s.bytes
}

// Playing reports whether Play has been called.
func (s *FileSink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Ended reports whether EndOfStream has been called.
func (s *FileSink) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
