package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vidclient/internal/diag"
	"vidclient/internal/platform/config"
	"vidclient/internal/platform/logger"
	"vidclient/internal/platform/metrics"

	"github.com/spf13/cobra"
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg     config.Client
	log     *slog.Logger
	metrics *metrics.Metrics
	http    *http.Client
}

// Execute runs the vidclient command line. Interrupts cancel the running
// command's context.
func Execute() error {
	_ = config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(config.LoadClient()).ExecuteContext(ctx)
}

func newRootCmd(cfg config.Client) *cobra.Command {
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:           "vidclient",
		Short:         "Video storage client",
		Long:          "Upload videos to the storage service and play them back over HLS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfg.APIBase, "api", a.cfg.APIBase, "Video API base URL")
	flags.StringVar(&a.cfg.AuthBase, "auth", a.cfg.AuthBase, "User service base URL")
	flags.DurationVar(&a.cfg.HTTPTimeout, "timeout", a.cfg.HTTPTimeout, "Per-request HTTP timeout (0 for none)")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "Log level: debug, info, warn, error")
	flags.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "Log format: text or json")
	flags.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr,
		"Serve /healthz, /metrics and /sessions on this address while the command runs")

	rootCmd.AddCommand(newUploadCmd(a))
	rootCmd.AddCommand(newPlayCmd(a))
	rootCmd.AddCommand(newManifestCmd(a))
	rootCmd.AddCommand(newLoginCmd(a))
	rootCmd.AddCommand(newRegisterCmd(a))

	return rootCmd
}

// init builds the logger, metrics and HTTP client once flags are parsed.
func (a *app) init() {
	a.log = logger.New(a.cfg.LogLevel, a.cfg.LogFormat)
	a.metrics = metrics.New()
	a.http = &http.Client{
		Timeout:   a.cfg.HTTPTimeout,
		Transport: logger.Transport(a.log, metrics.Transport(a.metrics, nil)),
	}
}

// serveDiag starts the diagnostics server when --metrics-addr is set. The
// returned func stops it.
func (a *app) serveDiag(uploads diag.UploadSource, pb diag.PlaybackSource) func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	h := diag.NewHandler(uploads, pb, a.log, a.metrics)
	srv, err := diag.Start(a.cfg.MetricsAddr, h.Routes(), a.log)
	if err != nil {
		a.log.Warn("diagnostics server not started",
			slog.String("addr", a.cfg.MetricsAddr),
			slog.String("error", err.Error()))
		return func() {}
	}
	return func() { _ = srv.Shutdown(context.Background()) }
}
