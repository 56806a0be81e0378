package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// ExternalPlayer is an Element with native HLS support provided by a player
// binary (mpv, ffplay, vlc) that is given the manifest URL.
type ExternalPlayer struct {
	mu   sync.Mutex
	bin  string
	args []string
	src  string
	cmd  *exec.Cmd
	done chan error
}

// NewExternalPlayer returns an element that runs bin with args followed by the
// source URL.
func NewExternalPlayer(bin string, args ...string) *ExternalPlayer {
	return &ExternalPlayer{bin: bin, args: args}
}

// CanPlayType implements Element. The player is only considered capable when
// its binary can be found.
func (p *ExternalPlayer) CanPlayType(mimeType string) bool {
	if mimeType != HLSMimeType {
		return false
	}
	_, err := exec.LookPath(p.bin)
	return err == nil
}

// SetSource implements Element.
func (p *ExternalPlayer) SetSource(url string) error {
	if url == "" {
		return errors.New("empty source url")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.src = url
	return nil
}

// Play implements Element. It starts the player process and returns; Wait
// blocks until the process exits.
func (p *ExternalPlayer) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.src == "" {
		return errors.New("play: no source assigned")
	}
	if p.cmd != nil {
		return errors.New("play: player already running")
	}
	args := append(append([]string{}, p.args...), p.src)
	cmd := exec.CommandContext(ctx, p.bin, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.bin, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	p.cmd = cmd
	p.done = done
	return nil
}

// Wait blocks until the player exits or ctx is done.
func (p *ExternalPlayer) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return errors.New("wait: player not started")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
