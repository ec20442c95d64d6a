package config

import (
	"strconv"
	"strings"
)

// HostnameFor returns the hostname of the server with the given 1-based index.
func (f FleetConfig) HostnameFor(index int) string {
	return strings.ReplaceAll(f.Hostname, IndexPlaceholder, strconv.Itoa(index))
}

// AcceleratorCount returns how many accelerators the server at the given
// 1-based index hosts.
func (f FleetConfig) AcceleratorCount(index int) int {
	if index >= 1 && index <= len(f.Accelerators) {
		return f.Accelerators[index-1]
	}
	return f.DefaultAccelerators
}

// SlotCount returns the per-server slot capacity: Slots if set, otherwise the
// largest accelerator count in the fleet.
func (f FleetConfig) SlotCount() int {
	if f.Slots > 0 {
		return f.Slots
	}
	max := 0
	for i := 1; i <= f.Size; i++ {
		if n := f.AcceleratorCount(i); n > max {
			max = n
		}
	}
	return max
}
