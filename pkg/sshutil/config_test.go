package sshutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestResolveSSHSettings_Defaults(t *testing.T) {
	t.Setenv("USER", "alice")
	d := &Dialer{SSHConfigPath: filepath.Join(t.TempDir(), "missing")}

	s := d.resolveSSHSettings("cbric-gpu3.ecn.purdue.edu")

	assert.Equal(t, "cbric-gpu3.ecn.purdue.edu", s.hostname)
	assert.Equal(t, "22", s.port)
	assert.Equal(t, "alice", s.user)
	assert.Equal(t, "cbric-gpu3.ecn.purdue.edu:22", s.address())
}

func TestResolveSSHSettings_FromConfig(t *testing.T) {
	path := writeSSHConfig(t, `
Host gpu1
  HostName 10.0.0.11
  Port 2222
  User bob
`)
	d := &Dialer{SSHConfigPath: path}

	s := d.resolveSSHSettings("gpu1")

	assert.Equal(t, "10.0.0.11", s.hostname)
	assert.Equal(t, "2222", s.port)
	assert.Equal(t, "bob", s.user)
}

func TestResolveSSHSettings_ExplicitUserWins(t *testing.T) {
	path := writeSSHConfig(t, "Host gpu1\n  User bob\n")
	d := &Dialer{User: "carol", Port: 2200, SSHConfigPath: path}

	s := d.resolveSSHSettings("gpu1")

	assert.Equal(t, "carol", s.user)
	assert.Equal(t, "2200", s.port)
}

func TestResolveSSHSettings_MatchBlockWarnsOnce(t *testing.T) {
	path := writeSSHConfig(t, `
Host other
  User bob

Match host gpu*
  User ignored
`)
	log := logger.NewBufferLogger()
	d := &Dialer{User: "carol", SSHConfigPath: path, Logger: log}

	d.resolveSSHSettings("gpu1")
	d.resolveSSHSettings("gpu2")

	warnings := 0
	for _, m := range log.Messages() {
		if m.Level == "warn" {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestPreprocessSSHConfig_StopsAtMatch(t *testing.T) {
	path := writeSSHConfig(t, "Host a\n  User x\nMatch all\n  User y\n")

	content, line, err := preprocessSSHConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, line)
	assert.NotContains(t, string(content), "User y")
}

func TestSuggestionForDialError(t *testing.T) {
	tests := []struct {
		err  string
		want string
	}{
		{"dial tcp: connection refused", "Is SSH running"},
		{"dial tcp: lookup x: no such host", "doesn't resolve"},
		{"connect: no route to host", "Can't route"},
		{"i/o timeout", "timed out"},
		{"something else", "ping"},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Contains(t, suggestionForDialError(errors.New(tt.err)), tt.want)
		})
	}
}

func TestSuggestionForHandshakeError(t *testing.T) {
	assert.Contains(t, suggestionForHandshakeError(errors.New("ssh: unable to authenticate")), "Password rejected")
	assert.Contains(t, suggestionForHandshakeError(errors.New("knownhosts: key is unknown")), "known_hosts")
	assert.Contains(t, suggestionForHandshakeError(errors.New("bad host key")), "Host key issue")
	assert.Contains(t, suggestionForHandshakeError(errors.New("eof")), "ssh <host>")
}

func TestHostKeyMismatchError(t *testing.T) {
	err := &HostKeyMismatchError{
		Hostname:     "gpu1:22",
		ReceivedType: "ssh-ed25519",
		KnownHosts:   "/home/alice/.ssh/known_hosts",
		WantTypes:    []string{"ssh-rsa"},
	}

	assert.Contains(t, err.Error(), "ssh-ed25519")
	assert.Contains(t, err.Suggestion(), "Known types: ssh-rsa")
	assert.Contains(t, err.Suggestion(), "ssh-keygen -R gpu1 -f /home/alice/.ssh/known_hosts")
}

func TestHostKeyMismatchError_KnownHostsKey(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
	}{
		{"gpu1:22", "ssh-keygen -R gpu1 -f /k"},
		{"[gpu1]:22", "ssh-keygen -R gpu1 -f /k"},
		{"gpu1", "ssh-keygen -R gpu1 -f /k"},
		{"gpu1:2222", "ssh-keygen -R [gpu1]:2222 -f /k"},
		{"[gpu1]:2222", "ssh-keygen -R [gpu1]:2222 -f /k"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			err := &HostKeyMismatchError{Hostname: tt.hostname, KnownHosts: "/k"}
			assert.Contains(t, err.Suggestion(), tt.want)
		})
	}
}
