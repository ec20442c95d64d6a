package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/fleet"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/internal/parsers"
	"github.com/rileyhilliard/gpumon/internal/ui"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// checkConcurrency caps simultaneous probes.
const checkConcurrency = 8

var (
	checkUser          string
	checkPasswordStdin bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll every server once and report what answered",
	Long: `Connect to every server once, run the configured command and parse its
output. Exits non-zero if any server failed.

Examples:
  gpumon check
  gpumon check --password-stdin < secret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkCommand(cmd.Context(), cfgFile, checkUser, checkPasswordStdin, streamsFor(cmd))
	},
}

func checkCommand(ctx context.Context, configPath, user string, passwordStdin bool, s streams) error {
	cfg, _, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if user != "" {
		cfg.User = user
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	password, err := readPassword(s.In, loginName(cfg), passwordStdin)
	if err != nil {
		return err
	}

	log, closeLog, err := setupLogger(cfg.Log, true, s.Err)
	if err != nil {
		return err
	}
	defer closeLog()

	return runCheck(ctx, cfg, newDialer(cfg, password, log), s.Out)
}

// runCheck probes the fleet through opener and prints one row per server.
func runCheck(ctx context.Context, cfg *config.Config, opener sshutil.Opener, w io.Writer) error {
	parser, err := parsers.New(cfg.Poll)
	if err != nil {
		return err
	}

	results := probeFleet(ctx, fleet.NewServers(cfg.Fleet), opener, parser,
		parsers.Command(cfg.Poll), cfg.Poll.Timeout)

	rows := make([]ui.CheckRow, len(results))
	failed := 0
	for i, r := range results {
		rows[i] = checkRow(r)
		if !r.OK() {
			failed++
		}
	}
	fmt.Fprint(w, ui.RenderCheckTable(rows))

	if failed > 0 {
		return errors.New(errors.ErrConnect,
			fmt.Sprintf("%d of %d servers failed the check", failed, len(results)),
			"Run with log.level=debug for details, or try: ssh <host> nvidia-smi")
	}
	return nil
}

// probeFleet probes every server concurrently. Each goroutine writes only
// its own result slot.
func probeFleet(ctx context.Context, servers []fleet.Server, opener sshutil.Opener, parser fleet.Parser, command string, timeout time.Duration) []fleet.ProbeResult {
	results := make([]fleet.ProbeResult, len(servers))

	var g errgroup.Group
	g.SetLimit(checkConcurrency)
	for i, srv := range servers {
		g.Go(func() error {
			results[i] = fleet.Probe(ctx, opener, parser, command, srv, timeout)
			logger.Default().Debug("probed %s: ok=%t", srv, results[i].OK())
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func checkRow(r fleet.ProbeResult) ui.CheckRow {
	row := ui.CheckRow{
		OK:      r.OK(),
		Server:  fmt.Sprintf("#%d", r.Server.Index),
		Address: r.Server.Hostname,
	}
	switch {
	case !r.OK():
		row.Detail = errors.Summary(r.Err)
	case r.ParseErr != nil:
		row.Detail = fmt.Sprintf("%s, %s", r.Latency.Round(time.Millisecond), errors.Summary(r.ParseErr))
	default:
		row.Detail = fmt.Sprintf("%s, %d GPUs read", r.Latency.Round(time.Millisecond), len(r.Samples))
	}
	return row
}

func init() {
	checkCmd.Flags().StringVarP(&checkUser, "user", "u", "", "SSH login for every server")
	checkCmd.Flags().BoolVar(&checkPasswordStdin, "password-stdin", false, "read the SSH password from the first line of stdin")
	rootCmd.AddCommand(checkCmd)
}
