package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/spf13/cobra"
)

// cfgFile is the --config flag shared by every command.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gpumon",
	Short: "Live GPU memory and utilization for a fixed server fleet",
	Long: `gpumon polls every server in a fixed fleet over SSH, runs nvidia-smi,
and shows memory and utilization for each GPU in a live terminal grid.

Running gpumon with no command starts the monitor.

Examples:
  gpumon
  gpumon --interval 5s --listen :9400
  gpumon --headless --password-stdin < secret
  gpumon servers`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorCommand(cmd.Context(), cfgFile, monitorFlags, streamsFor(cmd))
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so the collector can stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError renders structured errors as-is and gives plain errors the
// same leading mark.
func printError(w io.Writer, err error) {
	var gmErr *errors.Error
	if stderrors.As(err, &gmErr) {
		fmt.Fprint(w, gmErr.Error())
		return
	}
	fmt.Fprintf(w, "✗ %s\n", err)
}

// streams bundles a command's standard streams.
type streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func streamsFor(cmd *cobra.Command) streams {
	return streams{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.gpumon.yaml, then ~/.config/gpumon/config.yaml)")
	addMonitorFlags(rootCmd, &monitorFlags)
}
