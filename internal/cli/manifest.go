package cli

import (
	"fmt"
	"log/slog"
	"net/url"

	"vidclient/internal/asset"
	"vidclient/internal/hls"

	"github.com/spf13/cobra"
)

func newManifestCmd(a *app) *cobra.Command {
	var variant bool
	cmd := &cobra.Command{
		Use:   "manifest <asset-id>",
		Short: "Fetch and print the HLS manifest of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := asset.ManifestURL(a.cfg.APIBase, asset.ID(args[0]))
			if err != nil {
				return err
			}
			m, err := hls.Fetch(cmd.Context(), a.http, u)
			if err != nil {
				return fmt.Errorf("manifest %s: %w", args[0], err)
			}
			if variant && m.IsMaster() {
				v, _ := m.BestVariant()
				a.log.Debug("following variant", slog.String("uri", v.URI), slog.Int64("bandwidth", v.Bandwidth))
				if u, err = resolve(u, v.URI); err != nil {
					return err
				}
				if m, err = hls.Fetch(cmd.Context(), a.http, u); err != nil {
					return fmt.Errorf("manifest %s: variant: %w", args[0], err)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), hls.Encode(m))
			return nil
		},
	}
	cmd.Flags().BoolVar(&variant, "variant", false, "Print the highest-bandwidth media playlist instead of the master")
	return cmd
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := b.Parse(ref)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}
