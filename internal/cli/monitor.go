package cli

import (
	"context"
	"time"

	"github.com/rileyhilliard/gpumon/internal/api"
	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/dashboard"
	"github.com/rileyhilliard/gpumon/internal/fleet"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/internal/metrics"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// monitorOptions are the flags shared by the root and monitor commands.
type monitorOptions struct {
	User          string
	Interval      time.Duration
	Listen        string
	Headless      bool
	PasswordStdin bool
}

var monitorFlags monitorOptions

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Start the collector and the live dashboard (default command)",
	Long: `Poll every server in the fleet and show the live GPU grid.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  up/k        Select previous server
  down/j      Select next server
  s           Cycle sort order (index/util/memory)
  ?           Show help

Examples:
  gpumon monitor
  gpumon monitor --user alice --interval 5s
  gpumon monitor --headless --listen :9400 --password-stdin < secret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorCommand(cmd.Context(), cfgFile, monitorFlags, streamsFor(cmd))
	},
}

func addMonitorFlags(cmd *cobra.Command, o *monitorOptions) {
	cmd.Flags().StringVarP(&o.User, "user", "u", "", "SSH login for every server (default: config user, ~/.ssh/config, then $USER)")
	cmd.Flags().DurationVar(&o.Interval, "interval", 0, "pause between polls of one server, e.g. 2s (default: poll.interval)")
	cmd.Flags().StringVar(&o.Listen, "listen", "", "serve the JSON view and /metrics on this address, e.g. :9400")
	cmd.Flags().BoolVar(&o.Headless, "headless", false, "run without the dashboard and log to stderr")
	cmd.Flags().BoolVar(&o.PasswordStdin, "password-stdin", false, "read the SSH password from the first line of stdin")
}

// applyMonitorFlags overrides config values with explicitly set flags.
func applyMonitorFlags(cfg *config.Config, o monitorOptions) {
	if o.User != "" {
		cfg.User = o.User
	}
	if o.Interval != 0 {
		cfg.Poll.Interval = o.Interval
	}
	if o.Listen != "" {
		cfg.API.Listen = o.Listen
	}
}

// monitorCommand runs the collector until the dashboard quits or ctx is
// cancelled. The collector is always stopped before it returns.
func monitorCommand(ctx context.Context, configPath string, o monitorOptions, s streams) error {
	cfg, _, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	applyMonitorFlags(cfg, o)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	password, err := readPassword(s.In, loginName(cfg), o.PasswordStdin)
	if err != nil {
		return err
	}

	log, closeLog, err := setupLogger(cfg.Log, o.Headless, s.Err)
	if err != nil {
		return err
	}
	defer closeLog()

	return runMonitor(ctx, cfg, newDialer(cfg, password, log), o.Headless, log)
}

// runMonitor starts the collector over opener and blocks until the
// dashboard exits, or until ctx is done in headless mode.
func runMonitor(ctx context.Context, cfg *config.Config, opener sshutil.Opener, headless bool, log logger.Logger) error {
	exporter := metrics.NewExporter()
	opts, err := collectorOptions(cfg, opener, exporter, log)
	if err != nil {
		return err
	}

	collector, err := fleet.Start(opts)
	if err != nil {
		return err
	}
	defer func() {
		collector.Stop()
		log.Info("collector stopped")
	}()
	exporter.Attach(collector)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.API.Listen != "" {
		reg, err := metrics.NewRegistry(exporter)
		if err != nil {
			return err
		}
		srv := api.NewServer(collector, metrics.Handler(reg), log)
		g.Go(func() error {
			return srv.Serve(gctx, cfg.API.Listen)
		})
	}

	g.Go(func() error {
		defer cancel()
		if headless {
			log.Info("running headless, send SIGINT or SIGTERM to stop")
			<-gctx.Done()
			return nil
		}
		return dashboard.Run(gctx, collector, dashboard.Options{
			Refresh:    cfg.Dashboard.Refresh,
			StaleAfter: staleAfter(cfg),
		})
	})

	return g.Wait()
}

// staleAfter is the longest gap between two successful polls of a healthy
// server, plus one dashboard refresh.
func staleAfter(cfg *config.Config) time.Duration {
	return cfg.Poll.Interval + cfg.Poll.Timeout + cfg.Dashboard.Refresh
}

func init() {
	addMonitorFlags(monitorCmd, &monitorFlags)
	rootCmd.AddCommand(monitorCmd)
}
