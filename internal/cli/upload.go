package cli

import (
	"fmt"
	"strings"

	"vidclient/internal/upload"

	"github.com/spf13/cobra"
)

func newUploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video file and print its asset ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpload(cmd, args[0])
		},
	}
	cmd.Flags().IntVar(&a.cfg.UploadChunk, "chunk", a.cfg.UploadChunk, "Write size in bytes; progress is reported per chunk")
	cmd.Flags().Int64Var(&a.cfg.MaxUploadBytes, "max-bytes", a.cfg.MaxUploadBytes, "Refuse files larger than this (negative disables)")
	return cmd
}

func (a *app) runUpload(cmd *cobra.Command, path string) error {
	f, closeFile, err := upload.Open(path)
	if err != nil {
		return err
	}
	defer closeFile()

	ctrl := upload.NewController(a.http, upload.Config{
		Endpoint:  strings.TrimRight(a.cfg.APIBase, "/") + "/video/upload",
		ChunkSize: a.cfg.UploadChunk,
		MaxBytes:  a.cfg.MaxUploadBytes,
	}, a.log, a.metrics)
	defer a.serveDiag(ctrl, nil)()

	out := cmd.OutOrStdout()
	last := -1
	id, err := ctrl.Submit(cmd.Context(), f, func(p upload.Progress) {
		if p.Percent == last {
			return
		}
		last = p.Percent
		fmt.Fprintf(out, "\rUploading %s: %3d%%", f.Name, p.Percent)
	})
	if last >= 0 {
		fmt.Fprintln(out)
	}
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	fmt.Fprintf(out, "File uploaded successfully with ID: %s\n", id)
	return nil
}
