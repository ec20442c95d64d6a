package sshutil

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh/knownhosts"
)

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname string
	port     string
	user     string
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// matchWarnings remembers which config files already produced a Match warning.
var matchWarnings sync.Map

// resolveSSHSettings applies ~/.ssh/config HostName, Port and User entries
// on top of the dialer's defaults. An explicit dialer user always wins.
func (d *Dialer) resolveSSHSettings(host string) *sshSettings {
	settings := &sshSettings{
		hostname: host,
		port:     strconv.Itoa(d.port()),
		user:     d.User,
	}

	configPath := d.SSHConfigPath
	if configPath == "" {
		configPath = filepath.Join(homeDir(), ".ssh", "config")
	}

	// The kevinburke/ssh_config library doesn't support Match, so only the
	// content before the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return d.withDefaultUser(settings)
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return d.withDefaultUser(settings)
	}

	hostFound := false

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		settings.hostname = hostname
		hostFound = true
	}

	if port, _ := cfg.Get(host, "Port"); port != "" {
		settings.port = port
		hostFound = true
	}

	if user, _ := cfg.Get(host, "User"); user != "" {
		if settings.user == "" {
			settings.user = user
		}
		hostFound = true
	}

	if matchLine > 0 && !hostFound {
		if _, warned := matchWarnings.LoadOrStore(configPath, true); !warned {
			d.log().Warn("Host '%s' not found in %s (a Match block at line %d may hide later entries)",
				host, configPath, matchLine)
		}
	}

	return d.withDefaultUser(settings)
}

func (d *Dialer) withDefaultUser(s *sshSettings) *sshSettings {
	if s.user == "" {
		s.user = currentUser()
	}
	return s
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

// CurrentUser returns the invoking user's login name, used as the default
// remote user.
func CurrentUser() string {
	return currentUser()
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no such host") {
		return "The hostname doesn't resolve. Check fleet.hostname in .gpumon.yaml."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection or VPN."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return "Password rejected. Check the username (--user) and try again."
	}
	if strings.Contains(errStr, "key is unknown") {
		return "Host isn't in known_hosts yet. Connect once with ssh <host>, or add it with ssh-keyscan."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	WantTypes    []string
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	// known_hosts keys port 22 entries by bare host and others as [host]:port.
	host := knownhosts.Normalize(e.Hostname)

	wantStr := "unknown"
	if len(e.WantTypes) > 0 {
		wantStr = strings.Join(e.WantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the server was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}
