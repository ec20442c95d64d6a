package fleet

import (
	"sync"
	"sync/atomic"
)

// StopSignal is a one-way shutdown flag. Once set it stays set.
type StopSignal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewStopSignal returns an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Stop sets the flag and wakes every waiter. Extra calls do nothing.
func (s *StopSignal) Stop() {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
	})
}

// Stopped reports whether Stop has been called.
func (s *StopSignal) Stopped() bool {
	return s.set.Load()
}

// Done is closed when Stop is called.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}
