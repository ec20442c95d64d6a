package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// Session is one authenticated SSH transport with one session channel.
// It runs a single command and is then closed.
type Session struct {
	client  *ssh.Client
	session *ssh.Session

	Host    string // The host name passed to Dial
	Address string // The resolved address (host:port)

	closeOnce sync.Once
	closeErr  error
}

// Execute runs cmd on the remote host and collects stdout and stderr until
// the remote process reports its exit status.
//
// Both streams are drained concurrently: the remote side blocks once either
// channel window fills, so reading only one of them can hang forever.
// A non-zero exit status is not an error; it is reported in Result.
// Cancelling ctx closes the transport, which unblocks any pending read.
func (s *Session) Execute(ctx context.Context, cmd string) (Result, error) {
	defer s.Close()

	if err := ctx.Err(); err != nil {
		return Result{ExitStatus: -1}, s.execError(err, cmd)
	}

	stdout, err := s.session.StdoutPipe()
	if err != nil {
		return Result{ExitStatus: -1}, s.execError(err, cmd)
	}
	stderr, err := s.session.StderrPipe()
	if err != nil {
		return Result{ExitStatus: -1}, s.execError(err, cmd)
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	if err := s.session.Start(cmd); err != nil {
		return Result{ExitStatus: -1}, s.execError(err, cmd)
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	drainErr := g.Wait()
	waitErr := s.session.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{ExitStatus: -1}, errors.WrapWithCode(ctxErr, errors.ErrExec,
			fmt.Sprintf("Command on '%s' didn't finish in time: %s", s.Host, cmd),
			"Raise poll.timeout if the host is just slow.")
	}
	if drainErr != nil {
		return Result{ExitStatus: -1}, s.execError(drainErr, cmd)
	}

	result := Result{
		Stdout: outBuf.Bytes(),
		Stderr: errBuf.Bytes(),
	}

	if waitErr != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(waitErr, &exitErr) {
			result.ExitStatus = exitErr.ExitStatus()
			return result, nil
		}
		result.ExitStatus = -1
		return result, s.execError(waitErr, cmd)
	}

	return result, nil
}

// Close releases the session channel and the transport. It is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.session != nil {
			_ = s.session.Close()
		}
		if s.client != nil {
			s.closeErr = s.client.Close()
		}
	})
	return s.closeErr
}

func (s *Session) execError(err error, cmd string) error {
	return errors.WrapWithCode(err, errors.ErrExec,
		fmt.Sprintf("Failed to execute command on '%s': %s", s.Host, cmd),
		"Check the command exists on the remote host.")
}
