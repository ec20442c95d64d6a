package fleet

import "time"

// Observer is notified after every poll iteration. Calls come from poller
// goroutines concurrently and must not block.
type Observer interface {
	PollSucceeded(s Server, latency time.Duration)
	PollFailed(s Server, err error)
}

type nopObserver struct{}

func (nopObserver) PollSucceeded(Server, time.Duration) {}
func (nopObserver) PollFailed(Server, error)            {}
