package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"vidclient/internal/asset"
	"vidclient/internal/hls"
	"vidclient/internal/media"
	"vidclient/internal/playback"

	"github.com/spf13/cobra"
)

type playCmdParams struct {
	out    string
	player string
}

func newPlayCmd(a *app) *cobra.Command {
	params := &playCmdParams{}
	cmd := &cobra.Command{
		Use:   "play <asset-id>",
		Short: "Play an uploaded video",
		Long: "Play an uploaded video. With --player the manifest URL is handed to an external player " +
			"that understands HLS; otherwise segments are fetched and written to --out.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlay(cmd, asset.ID(args[0]), params)
		},
	}
	cmd.Flags().StringVarP(&params.out, "out", "o", "-", "Write media segments to this file (- for stdout)")
	cmd.Flags().StringVar(&params.player, "player", "", `External player command, e.g. "mpv --no-terminal"`)
	return cmd
}

func (a *app) runPlay(cmd *cobra.Command, id asset.ID, params *playCmdParams) error {
	status := cmd.ErrOrStderr()

	var (
		el     media.Element
		sink   *media.FileSink
		player *media.ExternalPlayer
	)
	if fields := strings.Fields(params.player); len(fields) > 0 {
		player = media.NewExternalPlayer(fields[0], fields[1:]...)
		el = player
	} else {
		w, closeOut, err := openOutput(cmd, params.out)
		if err != nil {
			return err
		}
		defer closeOut()
		sink = media.NewFileSink(w)
		el = sink
	}

	ctrl := playback.NewController(playback.Options{
		BaseURL: a.cfg.APIBase,
		Engines: playback.EngineFunc(func() playback.Engine {
			return hls.NewEngine(a.http, a.log, a.metrics)
		}),
		OnStatus: func(t playback.Transition) {
			fmt.Fprintf(status, "%s\n", t.Status)
		},
	}, a.log, a.metrics)
	defer a.serveDiag(nil, ctrl)()

	ctx := cmd.Context()
	s, err := ctrl.Play(ctx, id, el)
	if err != nil {
		return fmt.Errorf("play %s: %w", id, err)
	}
	defer ctrl.Stop(el)

	if player != nil {
		err = player.Wait(ctx)
	} else {
		err = s.Wait(ctx)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if sink != nil {
		segments, bytes := sink.Stats()
		fmt.Fprintf(status, "Wrote %d segments (%d bytes)\n", segments, bytes)
	}
	return err
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
