package testing

import (
	"context"
	"sync"

	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

// Response scripts one Open/Execute round trip for a host.
type Response struct {
	// OpenErr fails the Open call; no session is created.
	OpenErr error
	// Result is returned from Execute when ExecErr is nil.
	Result sshutil.Result
	// ExecErr fails the Execute call.
	ExecErr error
	// Block makes Execute wait until its context is cancelled.
	Block bool
}

// Output is shorthand for a successful response printing stdout.
func Output(stdout string) Response {
	return Response{Result: sshutil.Result{Stdout: []byte(stdout)}}
}

// MockOpener hands out scripted sessions. Each host plays its responses in
// order; the last one repeats once the script runs out. Hosts without a
// script get an empty successful result.
type MockOpener struct {
	mu       sync.Mutex
	scripts  map[string][]Response
	opens    map[string]int
	commands map[string][]string
	live     int
}

// NewMockOpener returns an opener with no scripts.
func NewMockOpener() *MockOpener {
	return &MockOpener{
		scripts:  make(map[string][]Response),
		opens:    make(map[string]int),
		commands: make(map[string][]string),
	}
}

// Script replaces the responses for host.
func (m *MockOpener) Script(host string, responses ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[host] = append([]Response(nil), responses...)
}

// Opens returns how many times Open was called for host.
func (m *MockOpener) Opens(host string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[host]
}

// Commands returns the commands executed against host.
func (m *MockOpener) Commands(host string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands[host]...)
}

// LiveSessions returns sessions opened but not yet closed.
func (m *MockOpener) LiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Open implements sshutil.Opener.
func (m *MockOpener) Open(ctx context.Context, host string) (sshutil.Executor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp := m.next(host)
	m.opens[host]++
	if resp.OpenErr != nil {
		return nil, resp.OpenErr
	}
	m.live++
	return &mockSession{owner: m, host: host, resp: resp}, nil
}

func (m *MockOpener) next(host string) Response {
	script := m.scripts[host]
	if len(script) == 0 {
		return Response{}
	}
	resp := script[0]
	if len(script) > 1 {
		m.scripts[host] = script[1:]
	}
	return resp
}

type mockSession struct {
	owner  *MockOpener
	host   string
	resp   Response
	closed bool
}

func (s *mockSession) Execute(ctx context.Context, cmd string) (sshutil.Result, error) {
	s.owner.mu.Lock()
	s.owner.commands[s.host] = append(s.owner.commands[s.host], cmd)
	s.owner.mu.Unlock()

	if s.resp.Block {
		<-ctx.Done()
		return sshutil.Result{}, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return sshutil.Result{}, err
	}
	if s.resp.ExecErr != nil {
		return sshutil.Result{}, s.resp.ExecErr
	}
	return s.resp.Result, nil
}

func (s *mockSession) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.owner.live--
	}
	return nil
}
