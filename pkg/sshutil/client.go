package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultPort is used when neither the dialer nor ~/.ssh/config set one.
const DefaultPort = 22

// DefaultConnectTimeout bounds TCP connect plus SSH handshake.
const DefaultConnectTimeout = 10 * time.Second

// Dialer opens password-authenticated SSH sessions. It is safe for concurrent
// use; each Open call creates its own transport.
type Dialer struct {
	// User is the remote login. Empty falls back to ~/.ssh/config, then $USER.
	User string

	// Password is offered for both "password" and "keyboard-interactive"
	// authentication. It is never logged.
	Password string

	// Port is the default SSH port (22 when zero).
	Port int

	// Timeout bounds TCP connect plus handshake (DefaultConnectTimeout when zero).
	Timeout time.Duration

	// StrictHostKeyChecking verifies host keys against KnownHostsPath.
	// When false, host key verification is skipped.
	StrictHostKeyChecking bool
	KnownHostsPath        string

	// SSHConfigPath overrides ~/.ssh/config for hostname resolution.
	SSHConfigPath string

	Logger logger.Logger
}

func (d *Dialer) port() int {
	if d.Port > 0 {
		return d.Port
	}
	return DefaultPort
}

func (d *Dialer) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultConnectTimeout
}

func (d *Dialer) log() logger.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.Noop()
}

// Open satisfies Opener.
func (d *Dialer) Open(ctx context.Context, host string) (Executor, error) {
	s, err := d.Dial(ctx, host)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Dial connects to host, authenticates with the password, and opens a
// session channel ready for one Execute call. Connection settings are
// resolved from ~/.ssh/config when available.
func (d *Dialer) Dial(ctx context.Context, host string) (*Session, error) {
	settings := d.resolveSSHSettings(host)

	config, err := d.buildSSHConfig(settings)
	if err != nil {
		return nil, err
	}

	address := settings.address()
	netDialer := net.Dialer{Timeout: d.timeout()}
	conn, err := netDialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	// Bound the handshake by the connect timeout and by ctx.
	_ = conn.SetDeadline(time.Now().Add(d.timeout()))
	stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if !stopWatch() || err != nil {
		_ = conn.Close()
		if err == nil {
			err = ctx.Err()
			_ = sshConn.Close()
		}

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.WrapWithCode(err, errors.ErrConnect,
				fmt.Sprintf("Host key for '%s' changed", host),
				hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err))
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Couldn't open a session on '%s'", host),
			"The server may limit concurrent sessions. It will be retried.")
	}

	d.log().Debug("connected to %s as %s", address, settings.user)

	return &Session{
		client:  client,
		session: session,
		Host:    host,
		Address: address,
	}, nil
}

// buildSSHConfig creates an SSH client config for password authentication.
func (d *Dialer) buildSSHConfig(settings *sshSettings) (*ssh.ClientConfig, error) {
	password := d.Password
	answer := func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = password
		}
		return answers, nil
	}

	var hostKeyCallback ssh.HostKeyCallback
	if d.StrictHostKeyChecking {
		knownHostsPath := d.KnownHostsPath
		if knownHostsPath == "" {
			knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
		}
		var err error
		hostKeyCallback, err = createHostKeyCallback(knownHostsPath)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConnect,
				"Failed to load known_hosts",
				"Check ssh.known_hosts in .gpumon.yaml, or set ssh.strict_host_key_checking: false")
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // User explicitly disabled host key checking
	}

	return &ssh.ClientConfig{
		User: settings.user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(answer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.timeout(),
	}, nil
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		dir := filepath.Dir(knownHostsPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				wantTypes := make([]string, 0, len(keyErr.Want))
				for _, k := range keyErr.Want {
					wantTypes = append(wantTypes, k.Key.Type())
				}
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					WantTypes:    wantTypes,
				}
			}
		}
		return err
	}, nil
}
