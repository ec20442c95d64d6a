package api

import (
	"time"

	"github.com/rileyhilliard/gpumon/internal/fleet"
)

// SnapshotResponse is the body of GET /api/v1/snapshot.
type SnapshotResponse struct {
	Taken   time.Time        `json:"taken"`
	Started time.Time        `json:"started"`
	Online  int              `json:"online"`
	Servers []ServerResponse `json:"servers"`
}

// ServerResponse describes one server and its GPUs.
type ServerResponse struct {
	Index        int           `json:"index"`
	Name         string        `json:"name"`
	Hostname     string        `json:"hostname"`
	Accelerators int           `json:"accelerators"`
	State        string        `json:"state"`
	Online       bool          `json:"online"`
	LastSuccess  *time.Time    `json:"last_success,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Failures     int           `json:"failures"`
	GPUs         []GPUResponse `json:"gpus"`
}

// GPUResponse is one accelerator slot.
type GPUResponse struct {
	Slot        int     `json:"slot"`
	MemUsedMiB  uint32  `json:"mem_used_mib"`
	MemTotalMiB uint32  `json:"mem_total_mib"`
	UtilPercent uint32  `json:"util_percent"`
	MemPercent  float64 `json:"mem_percent"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ToSnapshotResponse converts a fleet view.
func ToSnapshotResponse(v fleet.View) SnapshotResponse {
	servers := make([]ServerResponse, 0, len(v.Servers))
	for pos := range v.Servers {
		servers = append(servers, ToServerResponse(v, pos))
	}
	return SnapshotResponse{
		Taken:   v.Taken,
		Started: v.Started,
		Online:  v.Online(),
		Servers: servers,
	}
}

// ToServerResponse converts the server at pos. Only real accelerator
// slots are listed.
func ToServerResponse(v fleet.View, pos int) ServerResponse {
	s := v.Servers[pos]
	resp := ServerResponse{
		Index:        s.Index,
		Name:         s.Name(),
		Hostname:     s.Hostname,
		Accelerators: s.Accelerators,
		GPUs:         make([]GPUResponse, 0, s.Accelerators),
	}

	if pos < len(v.Status) {
		st := v.Status[pos]
		resp.State = st.State.String()
		resp.Online = st.Online()
		resp.LastError = st.LastError
		resp.Failures = st.Failures
		if !st.LastSuccess.IsZero() {
			last := st.LastSuccess
			resp.LastSuccess = &last
		}
	}

	for slot, sample := range v.Accelerators(pos) {
		resp.GPUs = append(resp.GPUs, GPUResponse{
			Slot:        slot,
			MemUsedMiB:  sample.MemUsedMiB,
			MemTotalMiB: sample.MemTotalMiB,
			UtilPercent: sample.UtilPercent,
			MemPercent:  sample.MemPercent(),
		})
	}
	return resp
}
