package playback

import (
	"context"
	"fmt"

	"vidclient/internal/media"
)

// delivery is the mode-specific half of a session. It is chosen once, before
// any manifest request, and the rest of the state machine only sees this
// interface.
type delivery interface {
	mode() Mode
	// load issues the manifest request and returns once it is usable.
	load(ctx context.Context, manifestURL string) error
	// play requests playback; onFatal reports errors after playback started.
	play(ctx context.Context, onFatal func(error)) error
	playingStatus() string
	// done is closed when the delivery has nothing more to feed; nil if it
	// never finishes on its own.
	done() <-chan struct{}
	err() error
	release()
}

// nativeDelivery hands the manifest URL to an element that plays HLS itself.
type nativeDelivery struct {
	el media.Element
}

func (d *nativeDelivery) mode() Mode { return ModeNative }

func (d *nativeDelivery) load(_ context.Context, manifestURL string) error {
	if err := d.el.SetSource(manifestURL); err != nil {
		return fmt.Errorf("%w: %w", ErrManifestLoadFailed, err)
	}
	return nil
}

// The element fetches the manifest as part of its play request, so a
// rejected play is reported as a load failure.
func (d *nativeDelivery) play(ctx context.Context, _ func(error)) error {
	if err := d.el.Play(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrManifestLoadFailed, err)
	}
	return nil
}

func (d *nativeDelivery) playingStatus() string { return StatusPlayingNative }
func (d *nativeDelivery) done() <-chan struct{} { return nil }
func (d *nativeDelivery) err() error            { return nil }
func (d *nativeDelivery) release()              {}

// segmentedDelivery drives an element through an engine instance it owns.
type segmentedDelivery struct {
	el     media.Element
	engine Engine
}

func (d *segmentedDelivery) mode() Mode { return ModeSegmented }

func (d *segmentedDelivery) load(ctx context.Context, manifestURL string) error {
	if err := d.engine.Load(ctx, manifestURL); err != nil {
		return fmt.Errorf("%w: %w", ErrManifestLoadFailed, err)
	}
	return nil
}

func (d *segmentedDelivery) play(ctx context.Context, onFatal func(error)) error {
	if err := d.el.Play(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPlayFailed, err)
	}
	if err := d.engine.Start(func(err error) {
		onFatal(fmt.Errorf("%w: %w", ErrEngineFatal, err))
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrEngineFatal, err)
	}
	return nil
}

func (d *segmentedDelivery) playingStatus() string { return StatusPlayingEngine }
func (d *segmentedDelivery) done() <-chan struct{} { return d.engine.Done() }
func (d *segmentedDelivery) err() error            { return d.engine.Err() }
func (d *segmentedDelivery) release()              { d.engine.Destroy() }
