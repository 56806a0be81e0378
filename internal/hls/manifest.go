package hls

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ContentType is the media type servers use for HLS playlists.
const ContentType = "application/vnd.apple.mpegurl"

// ErrInvalidManifest is returned when a playlist cannot be parsed.
var ErrInvalidManifest = errors.New("invalid hls manifest")

// Segment represents a single media segment of a media playlist.
type Segment struct {
	Sequence int64
	Duration float64
	Path     string
}

// Variant is one entry of a master playlist.
type Variant struct {
	Bandwidth  int64
	Resolution string
	Codecs     string
	URI        string
}

// Manifest is a parsed playlist. A master playlist has Variants and no
// Segments; a media playlist has Segments and no Variants.
type Manifest struct {
	Version        int
	TargetDuration int
	MediaSequence  int64
	PlaylistType   string
	Ended          bool
	Variants       []Variant
	Segments       []Segment
}

// IsMaster reports whether m lists variant streams.
func (m *Manifest) IsMaster() bool { return len(m.Variants) > 0 }

// IsVOD reports whether the playlist is complete and will not change.
func (m *Manifest) IsVOD() bool { return m.Ended || m.PlaylistType == "VOD" }

// BestVariant returns the variant with the highest bandwidth. Ties keep the
// first listed.
func (m *Manifest) BestVariant() (Variant, bool) {
	if len(m.Variants) == 0 {
		return Variant{}, false
	}
	best := m.Variants[0]
	for _, v := range m.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}

// Parse reads a master or media playlist.
func Parse(r io.Reader) (*Manifest, error) {
	scanner := bufio.NewScanner(r)
	m := &Manifest{}

	var (
		sawHeader     bool
		nextDuration  float64
		pendingInf    bool
		pendingStream *Variant
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !sawHeader {
			if line != "#EXTM3U" {
				return nil, fmt.Errorf("%w: missing #EXTM3U header", ErrInvalidManifest)
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-VERSION:"))
			if err != nil {
				return nil, fmt.Errorf("%w: bad version %q", ErrInvalidManifest, line)
			}
			m.Version = n
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			n, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return nil, fmt.Errorf("%w: bad target duration %q", ErrInvalidManifest, line)
			}
			m.TargetDuration = n
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			n, err := strconv.ParseInt(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad media sequence %q", ErrInvalidManifest, line)
			}
			m.MediaSequence = n
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			m.PlaylistType = strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:")
		case line == "#EXT-X-ENDLIST":
			m.Ended = true
		case strings.HasPrefix(line, "#EXTINF:"):
			// Format: #EXTINF:10.000,optional title
			durPart := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durPart, ","); idx != -1 {
				durPart = durPart[:idx]
			}
			secs, err := strconv.ParseFloat(durPart, 64)
			if err != nil || secs < 0 {
				return nil, fmt.Errorf("%w: bad EXTINF duration %q", ErrInvalidManifest, durPart)
			}
			nextDuration = secs
			pendingInf = true
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v, err := parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			if err != nil {
				return nil, err
			}
			pendingStream = &v
		case strings.HasPrefix(line, "#"):
			// Unknown tags and comments are ignored.
		default:
			// URI line
			switch {
			case pendingStream != nil:
				pendingStream.URI = line
				m.Variants = append(m.Variants, *pendingStream)
				pendingStream = nil
			case pendingInf:
				m.Segments = append(m.Segments, Segment{
					Sequence: m.MediaSequence + int64(len(m.Segments)),
					Duration: nextDuration,
					Path:     line,
				})
				nextDuration = 0
				pendingInf = false
			default:
				return nil, fmt.Errorf("%w: uri %q without EXTINF or STREAM-INF", ErrInvalidManifest, line)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, fmt.Errorf("%w: empty playlist", ErrInvalidManifest)
	}
	if len(m.Variants) > 0 && len(m.Segments) > 0 {
		return nil, fmt.Errorf("%w: playlist mixes variants and segments", ErrInvalidManifest)
	}
	return m, nil
}

func parseStreamInf(attrs string) (Variant, error) {
	var v Variant
	for key, val := range parseAttributes(attrs) {
		switch key {
		case "BANDWIDTH":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return Variant{}, fmt.Errorf("%w: bad BANDWIDTH %q", ErrInvalidManifest, val)
			}
			v.Bandwidth = n
		case "RESOLUTION":
			v.Resolution = val
		case "CODECS":
			v.Codecs = val
		}
	}
	return v, nil
}

// parseAttributes splits an attribute list such as
// BANDWIDTH=800000,CODECS="avc1.4d401f,mp4a.40.2". Quoted values may contain commas.
func parseAttributes(s string) map[string]string {
	out := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var val string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				val, s = s[1:], ""
			} else {
				val, s = s[1:end+1], s[end+2:]
			}
			s = strings.TrimPrefix(s, ",")
		} else if comma := strings.IndexByte(s, ','); comma >= 0 {
			val, s = s[:comma], s[comma+1:]
		} else {
			val, s = s, ""
		}
		out[key] = val
	}
	return out
}

// Encode writes m back out as a playlist. Media playlists get a target
// duration of ceil(max segment duration) when m.TargetDuration is unset.
func Encode(m *Manifest) string {
	var b strings.Builder

	version := m.Version
	if version == 0 {
		version = 3
	}
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", version)

	if m.IsMaster() {
		for _, v := range m.Variants {
			fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", v.Bandwidth)
			if v.Resolution != "" {
				fmt.Fprintf(&b, ",RESOLUTION=%s", v.Resolution)
			}
			if v.Codecs != "" {
				fmt.Fprintf(&b, ",CODECS=%q", v.Codecs)
			}
			b.WriteString("\n")
			b.WriteString(v.URI)
			b.WriteString("\n")
		}
		return b.String()
	}

	target := m.TargetDuration
	if target <= 0 {
		target = targetDurationFromSegments(m.Segments)
	}
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", target)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", m.MediaSequence)
	if m.PlaylistType != "" {
		fmt.Fprintf(&b, "#EXT-X-PLAYLIST-TYPE:%s\n", m.PlaylistType)
	}

	for _, seg := range m.Segments {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", seg.Duration)
		b.WriteString(seg.Path)
		b.WriteString("\n")
	}

	if m.Ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// targetDurationFromSegments returns the ceiling of the longest segment
// duration, or 1 for an empty list.
func targetDurationFromSegments(segments []Segment) int {
	max := 0.0
	for _, seg := range segments {
		if seg.Duration > max {
			max = seg.Duration
		}
	}
	if max <= 0 {
		return 1
	}
	return int(math.Ceil(max))
}
