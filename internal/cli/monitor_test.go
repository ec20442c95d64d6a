package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
	sshtest "github.com/rileyhilliard/gpumon/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMonitorFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	applyMonitorFlags(cfg, monitorOptions{})
	assert.Equal(t, config.DefaultConfig(), cfg, "unset flags change nothing")

	applyMonitorFlags(cfg, monitorOptions{User: "alice", Interval: 5 * time.Second, Listen: ":9400"})
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, ":9400", cfg.API.Listen)
}

func TestStaleAfter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Poll.Interval = 2 * time.Second
	cfg.Poll.Timeout = 10 * time.Second
	cfg.Dashboard.Refresh = time.Second

	assert.Equal(t, 13*time.Second, staleAfter(cfg))
}

func TestRunMonitor_HeadlessStopsOnCancel(t *testing.T) {
	cfg := checkConfig()
	cfg.Poll.Interval = 10 * time.Millisecond

	opener := sshtest.NewMockOpener()
	opener.Script("gpu1", sshtest.Output("1, 2, 3\n4, 5, 6\n"))
	log := logger.NewBufferLogger()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runMonitor(ctx, cfg, opener, true, log) }()

	require.Eventually(t, func() bool { return opener.Opens("gpu1") >= 2 },
		5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runMonitor didn't return after cancel")
	}

	assert.Zero(t, opener.LiveSessions())
	var stopped bool
	for _, m := range log.Messages() {
		if m.Message == "collector stopped" {
			stopped = true
		}
	}
	assert.True(t, stopped)
}

func TestRunMonitor_BadListenAddress(t *testing.T) {
	cfg := checkConfig()
	cfg.API.Listen = "not-an-address"

	done := make(chan error, 1)
	go func() {
		done <- runMonitor(context.Background(), cfg, sshtest.NewMockOpener(), true, logger.NewBufferLogger())
	}()

	select {
	case err := <-done:
		assert.True(t, errors.IsCode(err, errors.ErrConfig), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("runMonitor didn't fail on a bad listen address")
	}
}

func TestRunMonitor_BadFormat(t *testing.T) {
	cfg := checkConfig()
	cfg.Poll.Format = "xml"

	err := runMonitor(context.Background(), cfg, sshtest.NewMockOpener(), true, logger.NewBufferLogger())
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestMonitorCommand_HeadlessOverSSH(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := sshtest.NewServer(t, sshtest.StaticHandler("1234, 16000, 45\n", "", 0))

	path := writeConfig(t, fmt.Sprintf(`
user: %s
fleet:
  size: 1
  hostname: "%s"
  accelerators: [1]
  slots: 1
poll:
  interval: 500ms
  timeout: 5s
  format: csv
ssh:
  port: %d
  strict_host_key_checking: false
`, srv.User, srv.Host, srv.Port))

	var stderr bytes.Buffer
	s := streams{
		In:  strings.NewReader(srv.Password + "\n"),
		Out: &bytes.Buffer{},
		Err: &stderr,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- monitorCommand(ctx, path, monitorOptions{Headless: true, PasswordStdin: true}, s)
	}()

	require.Eventually(t, func() bool { return len(srv.Commands()) > 0 },
		10*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("monitorCommand didn't return after cancel")
	}

	assert.Contains(t, srv.Commands()[0], "--query-gpu")
	assert.Contains(t, stderr.String(), "polling 1 servers")
	assert.NotContains(t, stderr.String(), srv.Password)
}

func TestMonitorCommand_InvalidInterval(t *testing.T) {
	err := monitorCommand(context.Background(), writeConfig(t, smallFleet),
		monitorOptions{Interval: time.Millisecond, Headless: true, PasswordStdin: true},
		streams{In: strings.NewReader("pw\n"), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})

	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, errors.Summary(err), "too short")
}

func TestMonitorCommand_NoTerminalNoPassword(t *testing.T) {
	err := monitorCommand(context.Background(), writeConfig(t, smallFleet),
		monitorOptions{Headless: true},
		streams{In: strings.NewReader(""), Out: &bytes.Buffer{}, Err: &bytes.Buffer{}})

	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, errors.Summary(err), "without a terminal")
}
