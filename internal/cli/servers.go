package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/fleet"
	"github.com/rileyhilliard/gpumon/internal/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var serversYAML bool

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Print the resolved fleet without connecting",
	Long: `Print every server gpumon would poll: its index, hostname, accelerator
count and the snapshot cells it owns. Nothing is contacted.

Examples:
  gpumon servers
  gpumon servers --yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serversCommand(cfgFile, serversYAML, cmd.OutOrStdout())
	},
}

// serverEntry is one server in the --yaml listing.
type serverEntry struct {
	Index        int    `yaml:"index"`
	Hostname     string `yaml:"hostname"`
	Accelerators int    `yaml:"accelerators"`
	Cells        [2]int `yaml:"cells,flow"`
}

type serverListing struct {
	Slots   int           `yaml:"slots"`
	Servers []serverEntry `yaml:"servers"`
}

func listServers(cfg *config.Config) (serverListing, error) {
	servers := fleet.NewServers(cfg.Fleet)
	slots := cfg.Fleet.SlotCount()
	if slots < 1 {
		slots = 1
	}

	snap, err := fleet.NewSnapshot(len(servers), slots)
	if err != nil {
		return serverListing{}, err
	}

	listing := serverListing{Slots: slots}
	for pos, s := range servers {
		lo, hi := snap.Range(pos)
		listing.Servers = append(listing.Servers, serverEntry{
			Index:        s.Index,
			Hostname:     s.Hostname,
			Accelerators: s.Accelerators,
			Cells:        [2]int{lo, hi},
		})
	}
	return listing, nil
}

func serversCommand(configPath string, asYAML bool, w io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	listing, err := listServers(cfg)
	if err != nil {
		return err
	}

	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(listing); err != nil {
			return err
		}
		return enc.Close()
	}

	columns := []ui.TableColumn{
		{Title: "#", Width: 3},
		{Title: "Hostname", Width: 8},
		{Title: "GPUs", Width: 4},
		{Title: "Cells", Width: 5},
	}
	rows := make([][]string, 0, len(listing.Servers))
	gpus := 0
	for _, s := range listing.Servers {
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			s.Hostname,
			strconv.Itoa(s.Accelerators),
			fmt.Sprintf("%d-%d", s.Cells[0], s.Cells[1]-1),
		})
		gpus += s.Accelerators
	}

	fmt.Fprintln(w, ui.RenderSimpleTable(columns, rows))
	fmt.Fprintf(w, "%d servers, %d GPUs, %d slots per server\n", len(listing.Servers), gpus, listing.Slots)
	return nil
}

func init() {
	serversCmd.Flags().BoolVar(&serversYAML, "yaml", false, "print the listing as YAML")
	rootCmd.AddCommand(serversCmd)
}
