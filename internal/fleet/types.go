package fleet

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/gpumon/internal/config"
)

// Server is one monitored host. Index is 1-based.
type Server struct {
	Index        int    `json:"index"`
	Hostname     string `json:"hostname"`
	Accelerators int    `json:"accelerators"`
}

// Name returns the short host name, up to the first dot.
func (s Server) Name() string {
	if i := strings.IndexByte(s.Hostname, '.'); i > 0 {
		return s.Hostname[:i]
	}
	return s.Hostname
}

func (s Server) String() string {
	return fmt.Sprintf("#%d %s", s.Index, s.Hostname)
}

// NewServers expands the fleet configuration into its server list.
func NewServers(f config.FleetConfig) []Server {
	servers := make([]Server, 0, f.Size)
	for i := 1; i <= f.Size; i++ {
		servers = append(servers, Server{
			Index:        i,
			Hostname:     f.HostnameFor(i),
			Accelerators: f.AcceleratorCount(i),
		})
	}
	return servers
}

// Sample is one accelerator's reading. The zero value means "no data".
type Sample struct {
	MemUsedMiB  uint32 `json:"mem_used_mib"`
	MemTotalMiB uint32 `json:"mem_total_mib"`
	UtilPercent uint32 `json:"util_percent"`
}

// FieldsPerSample is the number of snapshot cells one Sample occupies.
const FieldsPerSample = 3

// IsZero reports whether s carries no data.
func (s Sample) IsZero() bool {
	return s == Sample{}
}

// MemPercent returns used memory as a percentage of total, or 0 when the
// total is unknown.
func (s Sample) MemPercent() float64 {
	if s.MemTotalMiB == 0 {
		return 0
	}
	return float64(s.MemUsedMiB) / float64(s.MemTotalMiB) * 100
}

// Parser turns raw command output into exactly count samples. Slots that
// can't be read keep their value from prev (or zero). A non-nil error only
// describes the slots that were skipped; the samples are still valid.
type Parser interface {
	Parse(raw string, count int, prev []Sample) ([]Sample, error)
}
