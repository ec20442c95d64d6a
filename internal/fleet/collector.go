package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/logger"
	"github.com/rileyhilliard/gpumon/pkg/sshutil"
	"golang.org/x/time/rate"
)

// Options configures a Collector.
type Options struct {
	// Servers is the fixed fleet, in display order.
	Servers []Server

	// Slots is the per-server slot capacity. Zero means the largest
	// accelerator count among Servers.
	Slots int

	Command  string
	Interval time.Duration
	Timeout  time.Duration

	Opener sshutil.Opener
	Parser Parser

	// DialRate caps new SSH connections per second across the fleet.
	// Zero or less disables the cap.
	DialRate float64

	Observer Observer
	Logger   logger.Logger
}

func (o *Options) validate() error {
	if len(o.Servers) == 0 {
		return fmt.Errorf("no servers to monitor")
	}
	if o.Opener == nil {
		return fmt.Errorf("no SSH opener configured")
	}
	if o.Parser == nil {
		return fmt.Errorf("no output parser configured")
	}
	if o.Command == "" {
		return fmt.Errorf("no remote command configured")
	}
	if o.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", o.Interval)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %s", o.Timeout)
	}
	if o.Slots < 0 {
		return fmt.Errorf("slot count can't be negative, got %d", o.Slots)
	}

	seen := make(map[int]bool, len(o.Servers))
	for _, s := range o.Servers {
		if s.Index < 1 {
			return fmt.Errorf("server %q has index %d; indexes start at 1", s.Hostname, s.Index)
		}
		if seen[s.Index] {
			return fmt.Errorf("server index %d is used twice", s.Index)
		}
		seen[s.Index] = true
		if s.Hostname == "" {
			return fmt.Errorf("server %d has no hostname", s.Index)
		}
		if s.Accelerators < 0 {
			return fmt.Errorf("server %d has a negative accelerator count", s.Index)
		}
		if o.Slots > 0 && s.Accelerators > o.Slots {
			return fmt.Errorf("server %d has %d accelerators but only %d slots", s.Index, s.Accelerators, o.Slots)
		}
	}
	return nil
}

func (o *Options) slots() int {
	if o.Slots > 0 {
		return o.Slots
	}
	max := 1
	for _, s := range o.Servers {
		if s.Accelerators > max {
			max = s.Accelerators
		}
	}
	return max
}

// Collector runs one Poller per server and owns the shared Snapshot.
type Collector struct {
	servers  []Server
	snapshot *Snapshot
	statuses []*status

	stop   *StopSignal
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started time.Time
	log     logger.Logger
}

// Start validates opts, allocates the snapshot and spawns one goroutine per
// server. A configuration problem returns an ErrConfig error before any
// goroutine exists.
func Start(opts Options) (*Collector, error) {
	if err := opts.validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't start the fleet collector",
			"Check the fleet and poll sections of .gpumon.yaml.")
	}

	snapshot, err := NewSnapshot(len(opts.Servers), opts.slots())
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	log = log.With("component", "fleet")

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	limit := rate.Inf
	if opts.DialRate > 0 {
		limit = rate.Limit(opts.DialRate)
	}
	limiter := rate.NewLimiter(limit, len(opts.Servers))

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		servers:  append([]Server(nil), opts.Servers...),
		snapshot: snapshot,
		statuses: make([]*status, len(opts.Servers)),
		stop:     NewStopSignal(),
		cancel:   cancel,
		started:  time.Now(),
		log:      log,
	}

	for pos, server := range c.servers {
		c.statuses[pos] = &status{}
		p := &Poller{
			server:    server,
			partition: snapshot.Partition(pos),
			status:    c.statuses[pos],
			opener:    opts.Opener,
			parser:    opts.Parser,
			command:   opts.Command,
			interval:  opts.Interval,
			timeout:   opts.Timeout,
			limiter:   limiter,
			stop:      c.stop,
			observer:  observer,
			log:       log.With("server", server.Index),
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			p.Run(ctx)
		}()
	}

	log.Info("polling %d servers every %s", len(c.servers), opts.Interval)
	return c, nil
}

// Stop signals every poller, aborts in-flight remote calls and waits until
// all pollers have exited. No snapshot write happens after it returns.
// It is safe to call more than once.
func (c *Collector) Stop() {
	c.stop.Stop()
	c.cancel()
	c.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (c *Collector) Stopped() bool {
	return c.stop.Stopped()
}

// Servers returns the monitored servers in display order.
func (c *Collector) Servers() []Server {
	return append([]Server(nil), c.servers...)
}

// Snapshot returns a copy of the current readings and poller health.
func (c *Collector) Snapshot() View {
	statuses := make([]Status, len(c.statuses))
	for i, s := range c.statuses {
		statuses[i] = s.snapshot()
	}
	return View{
		Servers: c.Servers(),
		Samples: c.snapshot.Copy(),
		Status:  statuses,
		Started: c.started,
		Taken:   time.Now(),
	}
}
