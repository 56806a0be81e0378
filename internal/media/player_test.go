package media

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExternalPlayer(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("plays_source", func(t *testing.T) {
		p := NewExternalPlayer("sh", "-c", `test "$0" = "http://media.test/v/index.m3u8"`)
		assert.True(t, p.CanPlayType(HLSMimeType))
		assert.False(t, p.CanPlayType("video/mp4"))

		require.NoError(t, p.SetSource("http://media.test/v/index.m3u8"))
		require.NoError(t, p.Play(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, p.Wait(ctx))
	})

	t.Run("requires_source", func(t *testing.T) {
		p := NewExternalPlayer("sh")
		assert.Error(t, p.Play(context.Background()))
		assert.Error(t, p.Wait(context.Background()))
	})

	t.Run("missing_binary", func(t *testing.T) {
		p := NewExternalPlayer("vidclient-no-such-player")
		assert.False(t, p.CanPlayType(HLSMimeType))
	})
}
