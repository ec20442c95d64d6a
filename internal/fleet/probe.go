package fleet

import (
	"context"
	"time"

	"github.com/rileyhilliard/gpumon/pkg/sshutil"
)

// ProbeResult is the outcome of a single Probe.
type ProbeResult struct {
	Server  Server
	Samples []Sample
	Latency time.Duration

	// Err is the connect or exec failure; nil when the command ran.
	Err error

	// ParseErr describes slots that couldn't be read. Samples is still
	// valid when it is set.
	ParseErr error
}

// OK reports whether the remote command ran.
func (r ProbeResult) OK() bool {
	return r.Err == nil
}

// Probe runs one connect, execute, parse round against s without a
// Collector. Nothing is published; it backs one-shot health checks.
func Probe(ctx context.Context, opener sshutil.Opener, parser Parser, command string, s Server, timeout time.Duration) ProbeResult {
	res := ProbeResult{Server: s}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, err := fetch(ctx, opener, s, command, func(State) {})
	if err != nil {
		res.Err = err
		return res
	}
	res.Latency = time.Since(start)
	res.Samples, res.ParseErr = parser.Parse(string(stdout), s.Accelerators, nil)
	return res
}
