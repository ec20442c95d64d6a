package fleet

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
	"golang.org/x/time/rate"
)

// errStopped ends an iteration that noticed the stop signal mid-way.
var errStopped = stderrors.New("poller stopped")

// Poller runs the collection loop for one server. It only ever writes to
// its own partition and status.
type Poller struct {
	server    Server
	partition *Partition
	status    *status

	opener   sshutil.Opener
	parser   Parser
	command  string
	interval time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter

	stop     *StopSignal
	observer Observer
	log      logger.Logger
}

// Run loops until the stop signal is set. Remote failures never end the
// loop; they are recorded and retried after the interval. ctx is cancelled
// together with the stop signal to abort in-flight remote calls.
func (p *Poller) Run(ctx context.Context) {
	defer p.status.setState(StateStopped)

	for !p.stop.Stopped() {
		start := time.Now()
		err := p.poll(ctx)

		switch {
		case err == nil:
			latency := time.Since(start)
			if n := p.status.failures.Load(); n > 0 {
				p.log.Info("reachable again after %d failed polls", n)
			}
			p.status.succeeded(time.Now(), latency)
			p.observer.PollSucceeded(p.server, latency)
		case p.stop.Stopped():
			return
		default:
			p.recordFailure(err)
		}

		if !p.sleep() {
			return
		}
	}
}

// poll runs one connect, execute, parse, publish round.
func (p *Poller) poll(ctx context.Context) error {
	p.status.setState(StateConnecting)
	if err := p.limiter.Wait(ctx); err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("Dial limiter refused a connection to %s", p.server.Hostname),
			"Check ssh.dial_rate in your .gpumon.yaml.")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stdout, err := fetch(ctx, p.opener, p.server, p.command, p.status.setState)
	if err != nil {
		return err
	}

	p.status.setState(StateParsing)
	prev := p.partition.Read()
	samples, perr := p.parser.Parse(string(stdout), p.server.Accelerators, prev)
	if perr != nil {
		p.log.Debug("kept previous values for some slots: %s", errors.Summary(perr))
	}

	if p.stop.Stopped() {
		return errStopped
	}

	p.status.setState(StatePublishing)
	p.partition.Write(samples)
	return nil
}

// fetch opens a fresh session to s, runs command and returns its stdout.
// The session is closed before fetch returns. A non-zero exit status is an
// ErrExec error.
func fetch(ctx context.Context, opener sshutil.Opener, s Server, command string, setState func(State)) ([]byte, error) {
	session, err := opener.Open(ctx, s.Hostname)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	setState(StateExecuting)
	result, err := session.Execute(ctx, command)
	if err != nil {
		return nil, err
	}
	if result.ExitStatus != 0 {
		return nil, errors.New(errors.ErrExec,
			fmt.Sprintf("'%s' exited with status %d on %s: %s",
				command, result.ExitStatus, s.Hostname, firstLine(result.Stderr)),
			"Check that the NVIDIA driver is loaded on the host.")
	}
	return result.Stdout, nil
}

func (p *Poller) recordFailure(err error) {
	summary := errors.Summary(err)
	streak := p.status.failed(summary)
	p.observer.PollFailed(p.server, err)

	if streak == 1 {
		p.log.Warn("poll failed, keeping last values: %s", summary)
	} else {
		p.log.Debug("poll failed (%d in a row): %s", streak, summary)
	}
}

// sleep waits out the interval. It returns false if the stop signal fired.
func (p *Poller) sleep() bool {
	p.status.setState(StateSleeping)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.stop.Done():
		return false
	}
}

func firstLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	if len(b) == 0 {
		return "no output on stderr"
	}
	return string(bytes.TrimSpace(b))
}
