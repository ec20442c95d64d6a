package cli

import (
	"bytes"
	"testing"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestServersCommand_Table(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, serversCommand(writeConfig(t, smallFleet), false, &out))

	text := out.String()
	assert.Contains(t, text, "Hostname")
	assert.Contains(t, text, "gpu1.lab")
	assert.Contains(t, text, "gpu3.lab")
	assert.Contains(t, text, "12-23")
	assert.Contains(t, text, "3 servers, 9 GPUs, 4 slots per server")
}

func TestServersCommand_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, serversCommand(writeConfig(t, smallFleet), true, &out))

	var listing struct {
		Slots   int `yaml:"slots"`
		Servers []struct {
			Index        int    `yaml:"index"`
			Hostname     string `yaml:"hostname"`
			Accelerators int    `yaml:"accelerators"`
			Cells        []int  `yaml:"cells"`
		} `yaml:"servers"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &listing))

	assert.Equal(t, 4, listing.Slots)
	require.Len(t, listing.Servers, 3)
	assert.Equal(t, "gpu2.lab", listing.Servers[1].Hostname)
	assert.Equal(t, 2, listing.Servers[1].Accelerators)
	assert.Equal(t, 3, listing.Servers[2].Accelerators)
	assert.Equal(t, []int{12, 24}, listing.Servers[1].Cells)
}

func TestServersCommand_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
fleet:
  size: 0
`)
	err := serversCommand(path, false, &bytes.Buffer{})
	assert.True(t, errors.IsCode(err, errors.ErrConfig), "got %v", err)
}

func TestServersCommand_MissingConfig(t *testing.T) {
	err := serversCommand("/nonexistent/.gpumon.yaml", false, &bytes.Buffer{})
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}
