package fleet

import "time"

// View is a read-only copy of the collector state handed to consumers.
// Samples has one row per server at full slot width; only the first
// Server.Accelerators entries of a row are real.
type View struct {
	Servers []Server   `json:"servers"`
	Samples [][]Sample `json:"samples"`
	Status  []Status   `json:"status"`
	Started time.Time  `json:"started"`
	Taken   time.Time  `json:"taken"`
}

// Sample returns the reading at (pos, slot) and whether that slot exists
// on the server.
func (v View) Sample(pos, slot int) (Sample, bool) {
	if pos < 0 || pos >= len(v.Servers) || slot < 0 || slot >= v.Servers[pos].Accelerators {
		return Sample{}, false
	}
	if slot >= len(v.Samples[pos]) {
		return Sample{}, false
	}
	return v.Samples[pos][slot], true
}

// Find returns the position of the server with the given 1-based index.
func (v View) Find(index int) (int, bool) {
	for pos, s := range v.Servers {
		if s.Index == index {
			return pos, true
		}
	}
	return 0, false
}

// Online counts servers whose last poll succeeded.
func (v View) Online() int {
	n := 0
	for _, s := range v.Status {
		if s.Online() {
			n++
		}
	}
	return n
}

// Accelerators returns the real samples of the server at pos.
func (v View) Accelerators(pos int) []Sample {
	n := v.Servers[pos].Accelerators
	if n > len(v.Samples[pos]) {
		n = len(v.Samples[pos])
	}
	return v.Samples[pos][:n]
}
