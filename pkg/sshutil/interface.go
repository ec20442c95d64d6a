package sshutil

import "context"

// Opener opens a one-shot remote session to a host.
// Both the real Dialer and test doubles satisfy this interface.
type Opener interface {
	// Open connects and authenticates to host. Failures carry the CONNECT
	// error code.
	Open(ctx context.Context, host string) (Executor, error)
}

// Executor runs exactly one command over an open session.
type Executor interface {
	// Execute runs cmd and returns its output once the remote process exits.
	// The session and its transport are released before Execute returns,
	// whatever the outcome. Failures carry the EXEC error code.
	Execute(ctx context.Context, cmd string) (Result, error)

	// Close releases the session without running a command. Safe to call
	// more than once and after Execute.
	Close() error
}

// Result is the outcome of a remote command that ran to completion.
type Result struct {
	Stdout     []byte
	Stderr     []byte
	ExitStatus int
}
