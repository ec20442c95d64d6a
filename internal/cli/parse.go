package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/parsers"
	"github.com/spf13/cobra"
)

var parseGPUs int

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Run the configured parser over saved nvidia-smi output",
	Long: `Parse saved command output the way the collector would and print one
line per GPU. Reads stdin when no file is given. Useful for tuning
poll.layout against a new driver version without touching the fleet.

Examples:
  ssh gpu1 nvidia-smi > out.txt && gpumon parse out.txt
  ssh gpu1 nvidia-smi | gpumon parse --gpus 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := streamsFor(cmd)
		in := s.In
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Can't open "+args[0], "Check the path, or pipe the output on stdin.")
			}
			defer f.Close()
			in = f
		}
		return parseCommand(cfgFile, parseGPUs, in, s.Out)
	},
}

// parseCommand prints the samples parsed from in. Slots that couldn't be
// read are shown as zero and the parse error is returned afterwards.
func parseCommand(configPath string, gpus int, in io.Reader, w io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if gpus <= 0 {
		gpus = cfg.Fleet.SlotCount()
	}

	parser, err := parsers.New(cfg.Poll)
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(in)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't read the command output", "")
	}

	samples, perr := parser.Parse(string(raw), gpus, nil)
	fmt.Fprintf(w, "format: %s\n", formatName(cfg.Poll))
	for slot, s := range samples {
		fmt.Fprintf(w, "gpu %d: util %3d%%  mem %6d / %6d MiB (%.1f%%)\n",
			slot, s.UtilPercent, s.MemUsedMiB, s.MemTotalMiB, s.MemPercent())
	}
	return perr
}

func formatName(poll config.PollConfig) string {
	if poll.Format == "" {
		return config.FormatTable
	}
	return poll.Format
}

func init() {
	parseCmd.Flags().IntVar(&parseGPUs, "gpus", 0, "number of GPUs to read (default: fleet slot count)")
	rootCmd.AddCommand(parseCmd)
}
