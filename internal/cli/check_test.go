package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/fleet"
	"github.com/rileyhilliard/gpumon/internal/parsers"
	sshtest "github.com/rileyhilliard/gpumon/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fleet.Size = 2
	cfg.Fleet.Hostname = "gpu{index}"
	cfg.Fleet.Accelerators = []int{2, 2}
	cfg.Poll.Format = config.FormatCSV
	cfg.Poll.Timeout = time.Second
	return cfg
}

func TestRunCheck_AllReachable(t *testing.T) {
	opener := sshtest.NewMockOpener()
	opener.Script("gpu1", sshtest.Output("1, 2, 3\n4, 5, 6\n"))
	opener.Script("gpu2", sshtest.Output("1, 2, 3\n4, 5, 6\n"))

	var out bytes.Buffer
	require.NoError(t, runCheck(context.Background(), checkConfig(), opener, &out))

	assert.Contains(t, out.String(), "gpu1")
	assert.Contains(t, out.String(), "2 GPUs read")
	assert.Equal(t, []string{parsers.CSVQueryCommand}, opener.Commands("gpu1"))
	assert.Equal(t, 1, opener.Opens("gpu2"))
	assert.Zero(t, opener.LiveSessions())
}

func TestRunCheck_ReportsFailures(t *testing.T) {
	opener := sshtest.NewMockOpener()
	opener.Script("gpu1", sshtest.Output("1, 2, 3\n"))
	opener.Script("gpu2", sshtest.Response{OpenErr: errors.New(errors.ErrConnect, "Can't reach gpu2", "")})

	var out bytes.Buffer
	err := runCheck(context.Background(), checkConfig(), opener, &out)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnect))
	assert.Contains(t, errors.Summary(err), "1 of 2 servers failed the check")
	assert.Contains(t, out.String(), "Can't reach gpu2")
	assert.Contains(t, out.String(), "1 of 2 slots unreadable", "a partial parse still passes")
}

func TestProbeFleet_KeepsServerOrder(t *testing.T) {
	opener := sshtest.NewMockOpener()
	servers := make([]fleet.Server, 20)
	for i := range servers {
		servers[i] = fleet.Server{Index: i + 1, Hostname: "h" + string(rune('a'+i)), Accelerators: 1}
	}

	results := probeFleet(context.Background(), servers, opener, parsers.CSVParser{}, "x", time.Second)

	require.Len(t, results, len(servers))
	for i, r := range results {
		assert.Equal(t, servers[i], r.Server)
		assert.True(t, r.OK())
	}
}

func TestCheckRow(t *testing.T) {
	srv := fleet.Server{Index: 3, Hostname: "gpu3"}

	ok := checkRow(fleet.ProbeResult{Server: srv, Latency: 1234 * time.Microsecond, Samples: make([]fleet.Sample, 4)})
	assert.True(t, ok.OK)
	assert.Equal(t, "#3", ok.Server)
	assert.Equal(t, "gpu3", ok.Address)
	assert.Equal(t, "1ms, 4 GPUs read", ok.Detail)

	failed := checkRow(fleet.ProbeResult{Server: srv, Err: errors.New(errors.ErrExec, "exited with status 9", "")})
	assert.False(t, failed.OK)
	assert.Equal(t, "exited with status 9", failed.Detail)
}
