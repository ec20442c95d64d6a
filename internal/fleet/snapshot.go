package fleet

import (
	"fmt"
	"sync/atomic"

	"github.com/rileyhilliard/gpumon/internal/errors"
)

// Snapshot is the dense servers x slots x 3 table of the latest readings.
// It is allocated once and never resized.
type Snapshot struct {
	servers int
	slots   int
	cells   []atomic.Uint32
}

// NewSnapshot allocates a zeroed snapshot.
func NewSnapshot(servers, slots int) (*Snapshot, error) {
	if servers < 1 || slots < 1 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Can't build a snapshot for %d servers with %d slots each", servers, slots),
			"Both fleet.size and fleet.slots must be at least 1.")
	}
	return &Snapshot{
		servers: servers,
		slots:   slots,
		cells:   make([]atomic.Uint32, servers*slots*FieldsPerSample),
	}, nil
}

// Servers returns the number of server rows.
func (s *Snapshot) Servers() int { return s.servers }

// Slots returns the per-server slot capacity.
func (s *Snapshot) Slots() int { return s.slots }

// Range returns the half-open cell range [lo, hi) owned by the server at
// 0-based position pos. Ranges of different servers never overlap and
// together cover the whole snapshot.
func (s *Snapshot) Range(pos int) (lo, hi int) {
	width := s.slots * FieldsPerSample
	lo = pos * width
	return lo, lo + width
}

// Partition returns the write handle for the server at position pos.
// Exactly one poller may hold it.
func (s *Snapshot) Partition(pos int) *Partition {
	if pos < 0 || pos >= s.servers {
		panic(fmt.Sprintf("fleet: partition %d out of range [0,%d)", pos, s.servers))
	}
	lo, hi := s.Range(pos)
	return &Partition{cells: s.cells[lo:hi], slots: s.slots}
}

// Get returns one slot of one server.
func (s *Snapshot) Get(pos, slot int) Sample {
	lo, _ := s.Range(pos)
	return load(s.cells[lo+slot*FieldsPerSample:])
}

// Copy returns every server's slots. Servers are read one cell at a time,
// so the result may mix old and new values.
func (s *Snapshot) Copy() [][]Sample {
	out := make([][]Sample, s.servers)
	for pos := range out {
		lo, hi := s.Range(pos)
		out[pos] = readCells(s.cells[lo:hi], s.slots)
	}
	return out
}

// Partition is one server's slice of the snapshot.
type Partition struct {
	cells []atomic.Uint32
	slots int
}

// Write stores samples into the leading slots. Slots past len(samples) are
// left untouched; samples beyond the slot capacity are dropped.
func (p *Partition) Write(samples []Sample) {
	n := len(samples)
	if n > p.slots {
		n = p.slots
	}
	for i := 0; i < n; i++ {
		c := p.cells[i*FieldsPerSample:]
		c[0].Store(samples[i].MemUsedMiB)
		c[1].Store(samples[i].MemTotalMiB)
		c[2].Store(samples[i].UtilPercent)
	}
}

// Read returns all slots of this partition.
func (p *Partition) Read() []Sample {
	return readCells(p.cells, p.slots)
}

func readCells(cells []atomic.Uint32, slots int) []Sample {
	out := make([]Sample, slots)
	for i := range out {
		out[i] = load(cells[i*FieldsPerSample:])
	}
	return out
}

func load(c []atomic.Uint32) Sample {
	return Sample{
		MemUsedMiB:  c[0].Load(),
		MemTotalMiB: c[1].Load(),
		UtilPercent: c[2].Load(),
	}
}
