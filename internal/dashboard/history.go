package dashboard

// DefaultHistorySize is the number of refreshes kept per series.
const DefaultHistorySize = 60

// ringBuffer is a fixed-size circular buffer of float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{data: make([]float64, capacity)}
}

func (r *ringBuffer) push(v float64) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

// values returns the buffered values oldest first.
func (r *ringBuffer) values() []float64 {
	out := make([]float64, r.count)
	start := (r.head - r.count + len(r.data)) % len(r.data)
	for i := 0; i < r.count; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// seriesKey identifies one history series. Slot -1 is the server mean.
type seriesKey struct {
	server int
	slot   int
}

// History keeps utilization series per accelerator and per server.
type History struct {
	size   int
	series map[seriesKey]*ringBuffer
}

// NewHistory creates a history holding up to size points per series.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, series: make(map[seriesKey]*ringBuffer)}
}

// Push appends one utilization reading.
func (h *History) Push(server, slot int, util float64) {
	k := seriesKey{server: server, slot: slot}
	buf, ok := h.series[k]
	if !ok {
		buf = newRingBuffer(h.size)
		h.series[k] = buf
	}
	buf.push(util)
}

// Series returns the readings for (server, slot), oldest first.
func (h *History) Series(server, slot int) []float64 {
	buf, ok := h.series[seriesKey{server: server, slot: slot}]
	if !ok {
		return nil
	}
	return buf.values()
}

// Mean returns the server-wide mean utilization series.
func (h *History) Mean(server int) []float64 {
	return h.Series(server, -1)
}
