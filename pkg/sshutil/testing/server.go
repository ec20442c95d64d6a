// Package testing provides SSH test doubles: an in-process SSH server that
// drives the real Dialer end to end, and a scripted Opener for code that
// only needs canned command results.
package testing

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	stdtesting "testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Handler runs one exec request. It writes to stdout/stderr and returns the
// exit status. ctx is cancelled when the client's transport goes away.
type Handler func(ctx context.Context, cmd string, stdout, stderr io.Writer) int

// StaticHandler returns a Handler that always prints the given output.
func StaticHandler(stdout, stderr string, status int) Handler {
	return func(_ context.Context, _ string, out, errOut io.Writer) int {
		_, _ = io.WriteString(out, stdout)
		_, _ = io.WriteString(errOut, stderr)
		return status
	}
}

// Server is a minimal SSH server that accepts password or
// keyboard-interactive logins and serves exec requests.
type Server struct {
	User     string
	Password string
	Host     string
	Port     int
	HostKey  ssh.PublicKey

	handler         Handler
	interactiveOnly bool
	noExitStatus    bool

	listener net.Listener
	wg       sync.WaitGroup

	mu          sync.Mutex
	conns       map[net.Conn]struct{}
	commands    []string
	logins      int
	failedAuths int
	closed      bool
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithCredentials sets the accepted user and password (default "tester"/"secret").
func WithCredentials(user, password string) ServerOption {
	return func(s *Server) {
		s.User = user
		s.Password = password
	}
}

// WithKeyboardInteractiveOnly disables plain password auth.
func WithKeyboardInteractiveOnly() ServerOption {
	return func(s *Server) { s.interactiveOnly = true }
}

// WithoutExitStatus closes exec channels without sending exit-status.
func WithoutExitStatus() ServerOption {
	return func(s *Server) { s.noExitStatus = true }
}

// NewServer starts a server on 127.0.0.1 and stops it when the test ends.
func NewServer(tb stdtesting.TB, handler Handler, opts ...ServerOption) *Server {
	tb.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		tb.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		tb.Fatalf("host key signer: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}

	s := &Server{
		User:     "tester",
		Password: "secret",
		HostKey:  signer.PublicKey(),
		handler:  handler,
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	host, portStr, _ := net.SplitHostPort(listener.Addr().String())
	s.Host = host
	s.Port, _ = strconv.Atoi(portStr)

	config := &ssh.ServerConfig{}
	if !s.interactiveOnly {
		config.PasswordCallback = func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			return nil, s.checkLogin(meta.User(), string(password))
		}
	}
	config.KeyboardInteractiveCallback = func(meta ssh.ConnMetadata, client ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
		answers, err := client(meta.User(), "", []string{"Password: "}, []bool{false})
		if err != nil {
			return nil, err
		}
		if len(answers) != 1 {
			return nil, fmt.Errorf("expected one answer")
		}
		return nil, s.checkLogin(meta.User(), answers[0])
	}
	config.AddHostKey(signer)

	s.wg.Add(1)
	go s.serve(config)

	tb.Cleanup(s.Close)
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// KnownHostsLine returns a known_hosts entry for this server.
func (s *Server) KnownHostsLine() string {
	return knownhosts.Line([]string{knownhosts.Normalize(s.Addr())}, s.HostKey)
}

// Commands returns every command received so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// Logins returns the number of successful authentications.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// FailedAuths returns the number of rejected credentials.
func (s *Server) FailedAuths() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedAuths
}

// OpenConns returns the number of transports still open on the server side.
func (s *Server) OpenConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops accepting and drops every connection.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	_ = s.listener.Close()
	s.wg.Wait()
}

func (s *Server) checkLogin(user, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == s.User && password == s.Password {
		s.logins++
		return nil
	}
	s.failedAuths++
	return fmt.Errorf("password rejected for %q", user)
}

func (s *Server) serve(config *ssh.ServerConfig) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.handleConn(conn, config)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = sshConn.Wait()
		cancel()
	}()
	go ssh.DiscardRequests(reqs)

	var sessions sync.WaitGroup
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions are supported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.handleSession(ctx, ch, chReqs)
		}()
	}
	cancel()
	sessions.Wait()
}

func (s *Server) handleSession(ctx context.Context, ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		status := 0
		if s.handler != nil {
			status = s.handler(ctx, payload.Command, ch, ch.Stderr())
		}

		_ = ch.CloseWrite()
		if !s.noExitStatus {
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
		}
		return
	}
}
