package config

import (
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:        "future version",
			mutate:      func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			errContains: "from the future",
		},
		{
			name:        "empty fleet",
			mutate:      func(c *Config) { c.Fleet.Size = 0 },
			errContains: "fleet.size must be at least 1",
		},
		{
			name:        "hostname without placeholder",
			mutate:      func(c *Config) { c.Fleet.Hostname = "gpu.example.edu" },
			errContains: "no {index} placeholder",
		},
		{
			name: "single server without placeholder is fine",
			mutate: func(c *Config) {
				c.Fleet.Size = 1
				c.Fleet.Hostname = "gpu.example.edu"
				c.Fleet.Accelerators = []int{4}
			},
		},
		{
			name:        "empty hostname",
			mutate:      func(c *Config) { c.Fleet.Hostname = "  " },
			errContains: "fleet.hostname is empty",
		},
		{
			name:        "negative accelerator count",
			mutate:      func(c *Config) { c.Fleet.Accelerators[2] = -1 },
			errContains: "server 3",
		},
		{
			name:        "table longer than fleet",
			mutate:      func(c *Config) { c.Fleet.Size = 2 },
			errContains: "lists 13 servers",
		},
		{
			name:        "slots smaller than accelerators",
			mutate:      func(c *Config) { c.Fleet.Slots = 3 },
			errContains: "fleet.slots is 3",
		},
		{
			name:        "interval too short",
			mutate:      func(c *Config) { c.Poll.Interval = 100 * time.Millisecond },
			errContains: "too short",
		},
		{
			name:        "zero timeout",
			mutate:      func(c *Config) { c.Poll.Timeout = 0 },
			errContains: "poll.timeout must be positive",
		},
		{
			name:        "empty command",
			mutate:      func(c *Config) { c.Poll.Command = "" },
			errContains: "poll.command is empty",
		},
		{
			name:        "unknown format",
			mutate:      func(c *Config) { c.Poll.Format = "xml" },
			errContains: "isn't supported",
		},
		{
			name:        "bad stride",
			mutate:      func(c *Config) { c.Poll.Layout.Stride = 0 },
			errContains: "stride must be at least 1",
		},
		{
			name: "layout ignored for csv",
			mutate: func(c *Config) {
				c.Poll.Format = FormatCSV
				c.Poll.Layout = LayoutConfig{}
			},
		},
		{
			name:        "bad port",
			mutate:      func(c *Config) { c.SSH.Port = 70000 },
			errContains: "out of range",
		},
		{
			name:        "strict checking without known_hosts",
			mutate:      func(c *Config) { c.SSH.KnownHosts = "" },
			errContains: "known_hosts is required",
		},
		{
			name:        "negative refresh",
			mutate:      func(c *Config) { c.Dashboard.Refresh = -time.Second },
			errContains: "dashboard.refresh",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Log.Level = "verbose" },
			errContains: "Unknown log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, 1, strings.Count(err.Error(), tt.errContains), "message rendered once")
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
