package media

import (
	"context"
	"io"
	"time"
)

// HLSMimeType is the media type of an HLS manifest.
const HLSMimeType = "application/vnd.apple.mpegurl"

// Element is a media-rendering target. Implementations must be comparable
// (typically pointers) because controllers key their bookkeeping on them.
type Element interface {
	// CanPlayType reports whether the element can consume mimeType natively.
	CanPlayType(mimeType string) bool

	// SetSource assigns a URL for native playback.
	SetSource(url string) error

	// Play requests playback. It returns once playback has started.
	Play(ctx context.Context) error
}

// SegmentInfo describes one media segment handed to a SourceBuffer.
type SegmentInfo struct {
	Sequence int64
	Duration time.Duration
	URL      string
}

// SourceBuffer is implemented by elements that accept segment data pushed by a
// streaming engine instead of loading a URL themselves.
type SourceBuffer interface {
	AppendSegment(ctx context.Context, info SegmentInfo, data io.Reader) error
	EndOfStream() error
}
