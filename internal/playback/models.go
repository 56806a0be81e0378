package playback

import (
	"context"
	"errors"
	"time"

	"vidclient/internal/asset"
	"vidclient/internal/media"

	"github.com/google/uuid"
)

var (
	// ErrMissingAssetIdentifier is returned before any network activity when
	// Play is called with an empty identifier.
	ErrMissingAssetIdentifier = errors.New("missing asset identifier")

	// ErrUnsupportedPlaybackEnvironment means neither native playback nor a
	// segmented engine can drive the element.
	ErrUnsupportedPlaybackEnvironment = errors.New("unsupported playback environment")

	// ErrManifestLoadFailed wraps manifest fetch and parse failures.
	ErrManifestLoadFailed = errors.New("manifest load failed")

	// ErrEngineFatal wraps errors the segmented engine reports while playing.
	ErrEngineFatal = errors.New("engine fatal error")

	// ErrPlayFailed wraps a rejected play request on the element.
	ErrPlayFailed = errors.New("play request failed")

	// ErrSuperseded marks a session that was still loading when a newer Play
	// on the same element replaced it.
	ErrSuperseded = errors.New("superseded by a newer play request")
)

// State is the lifecycle state of a playback session.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StateFailed  State = "failed"
	StateStopped State = "stopped"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateFailed || s == StateStopped }

// Mode is the delivery mechanism chosen for a session.
type Mode string

const (
	ModeNone      Mode = ""
	ModeNative    Mode = "native"
	ModeSegmented Mode = "segmented"
)

// Human-readable statuses.
const (
	StatusReadyToLoad   = "Ready to load..."
	StatusPlayingNative = "Playing natively"
	StatusPlayingEngine = "Playing via HLS engine"
	StatusStopped       = "Stopped"
	statusFailedPrefix  = "Failed: "
)

// Engine is a segmented-streaming engine bound to one element for one manifest.
type Engine interface {
	// Attach binds the engine to el.
	Attach(el media.Element) error

	// Load fetches and parses the manifest. Its return is the "manifest
	// parsed" notification.
	Load(ctx context.Context, manifestURL string) error

	// Start begins feeding segments. onFatal reports errors that end playback.
	Start(onFatal func(error)) error

	// Done is closed when feeding stops; nil before Start.
	Done() <-chan struct{}

	// Err returns the error that stopped feeding.
	Err() error

	// Destroy releases the engine. It must be idempotent and must not return
	// before the engine has stopped touching the element.
	Destroy()
}

// EngineFactory reports whether a segmented engine is available and builds one.
type EngineFactory interface {
	Supported() bool
	New() Engine
}

// EngineFunc adapts a constructor to EngineFactory. A nil EngineFunc is unsupported.
type EngineFunc func() Engine

// Supported implements EngineFactory.
func (f EngineFunc) Supported() bool { return f != nil }

// New implements EngineFactory.
func (f EngineFunc) New() Engine { return f() }

// Transition is published on every state change.
type Transition struct {
	SessionID uuid.UUID
	AssetID   asset.ID
	Mode      Mode
	State     State
	Status    string
	Err       error
}

// StatusFunc observes transitions. It is for display only.
type StatusFunc func(Transition)

// Info is a point-in-time view of a session.
type Info struct {
	ID          uuid.UUID `json:"id"`
	AssetID     asset.ID  `json:"asset_id"`
	ManifestURL string    `json:"manifest_url"`
	Mode        Mode      `json:"mode"`
	State       State     `json:"state"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}
