package fleet

import (
	"sync/atomic"
	"time"
)

// State is where a poller currently is in its loop.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateExecuting
	StateParsing
	StatePublishing
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateExecuting:
		return "executing"
	case StateParsing:
		return "parsing"
	case StatePublishing:
		return "publishing"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time copy of one poller's health.
type Status struct {
	State State `json:"state"`

	// LastSuccess is when the server's partition was last published.
	// Zero if it never was.
	LastSuccess time.Time `json:"last_success"`

	// LastLatency is the duration of the last successful round trip.
	LastLatency time.Duration `json:"last_latency"`

	// LastError summarizes the most recent failure. It is cleared on success.
	LastError string `json:"last_error,omitempty"`

	// Failures counts consecutive failed iterations.
	Failures int `json:"failures"`

	// Polls counts successful iterations since start.
	Polls int `json:"polls"`
}

// Online reports whether the last iteration succeeded.
func (s Status) Online() bool {
	return s.Failures == 0 && !s.LastSuccess.IsZero()
}

// Stale reports whether the data is older than maxAge.
func (s Status) Stale(now time.Time, maxAge time.Duration) bool {
	return s.LastSuccess.IsZero() || now.Sub(s.LastSuccess) > maxAge
}

// status is the live, single-writer form of Status.
type status struct {
	state       atomic.Int32
	lastSuccess atomic.Int64
	lastLatency atomic.Int64
	lastError   atomic.Pointer[string]
	failures    atomic.Int64
	polls       atomic.Int64
}

func (s *status) setState(st State) {
	s.state.Store(int32(st))
}

func (s *status) succeeded(at time.Time, latency time.Duration) {
	s.lastSuccess.Store(at.UnixNano())
	s.lastLatency.Store(int64(latency))
	s.lastError.Store(nil)
	s.failures.Store(0)
	s.polls.Add(1)
}

// failed records a failure and returns the new streak length.
func (s *status) failed(summary string) int {
	s.lastError.Store(&summary)
	return int(s.failures.Add(1))
}

func (s *status) snapshot() Status {
	out := Status{
		State:       State(s.state.Load()),
		LastLatency: time.Duration(s.lastLatency.Load()),
		Failures:    int(s.failures.Load()),
		Polls:       int(s.polls.Load()),
	}
	if ns := s.lastSuccess.Load(); ns != 0 {
		out.LastSuccess = time.Unix(0, ns)
	}
	if msg := s.lastError.Load(); msg != nil {
		out.LastError = *msg
	}
	return out
}
