package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// IndexPlaceholder is replaced with a server's 1-based index in the
// fleet hostname scheme.
const IndexPlaceholder = "{index}"

// Config represents the complete .gpumon.yaml configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	User      string          `yaml:"user" mapstructure:"user"`
	Fleet     FleetConfig     `yaml:"fleet" mapstructure:"fleet"`
	Poll      PollConfig      `yaml:"poll" mapstructure:"poll"`
	SSH       SSHConfig       `yaml:"ssh" mapstructure:"ssh"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// FleetConfig describes the fixed set of monitored servers.
type FleetConfig struct {
	// Size is the number of servers, indexed 1..Size.
	Size int `yaml:"size" mapstructure:"size"`

	// Hostname is the naming scheme. IndexPlaceholder is replaced with the
	// server index, e.g. "gpu{index}.example.edu".
	Hostname string `yaml:"hostname" mapstructure:"hostname"`

	// Slots is the fixed per-server slot capacity in the snapshot.
	// Zero means "the largest accelerator count in the table".
	Slots int `yaml:"slots" mapstructure:"slots"`

	// DefaultAccelerators applies to servers not listed in Accelerators.
	DefaultAccelerators int `yaml:"default_accelerators" mapstructure:"default_accelerators"`

	// Accelerators is the per-server accelerator count, entry i is server i+1.
	Accelerators []int `yaml:"accelerators" mapstructure:"accelerators"`
}

// PollConfig controls the per-server polling loop.
type PollConfig struct {
	// Interval is the sleep between two iterations against the same server.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Timeout bounds one connect+execute round trip.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Command is executed verbatim on every server.
	Command string `yaml:"command" mapstructure:"command"`

	// Format selects the parser: "table" or "csv".
	Format string `yaml:"format" mapstructure:"format"`

	// Layout describes the table format.
	Layout LayoutConfig `yaml:"layout" mapstructure:"layout"`
}

// LayoutConfig locates the data rows in nvidia-smi's table output.
type LayoutConfig struct {
	FirstRow     int `yaml:"first_row" mapstructure:"first_row"`
	Stride       int `yaml:"stride" mapstructure:"stride"`
	MemoryColumn int `yaml:"memory_column" mapstructure:"memory_column"`
	UtilColumn   int `yaml:"util_column" mapstructure:"util_column"`
}

// SSHConfig holds connection settings shared by all servers.
type SSHConfig struct {
	Port                  int           `yaml:"port" mapstructure:"port"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
	KnownHosts            string        `yaml:"known_hosts" mapstructure:"known_hosts"`

	// DialRate caps new connections per second across the whole fleet.
	DialRate float64 `yaml:"dial_rate" mapstructure:"dial_rate"`
}

// DashboardConfig controls the terminal dashboard.
type DashboardConfig struct {
	Refresh time.Duration `yaml:"refresh" mapstructure:"refresh"`
}

// APIConfig controls the optional read-only HTTP view.
type APIConfig struct {
	// Listen is the address to serve on; empty disables the server.
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// LogConfig controls log level and destination.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns a Config describing the fleet gpumon was first
// written for: 13 servers, the first 10 with 4 GPUs and the rest with 3.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Fleet: FleetConfig{
			Size:                13,
			Hostname:            "cbric-gpu{index}.ecn.purdue.edu",
			Slots:               4,
			DefaultAccelerators: 3,
			Accelerators:        []int{4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 3, 3, 3},
		},
		Poll: PollConfig{
			Interval: 2 * time.Second,
			Timeout:  10 * time.Second,
			Command:  "nvidia-smi",
			Format:   FormatTable,
			Layout:   DefaultLayout(),
		},
		SSH: SSHConfig{
			Port:                  22,
			ConnectTimeout:        10 * time.Second,
			StrictHostKeyChecking: true,
			KnownHosts:            "~/.ssh/known_hosts",
			DialRate:              10,
		},
		Dashboard: DashboardConfig{
			Refresh: 2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Parser formats.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
)

// DefaultLayout matches the classic nvidia-smi table: the first memory/util
// row is line 8 and each GPU occupies 3 lines.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		FirstRow:     8,
		Stride:       3,
		MemoryColumn: 2,
		UtilColumn:   3,
	}
}
