package parsers

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/fleet"
)

// TableParser reads the default nvidia-smi table. With the classic layout
// each GPU takes three lines starting at line 8, and its memory/util line
// looks like:
//
//	| 23%   35C    P8    10W / 250W |   1234MiB /  8192MiB |     45%      Default |
//
// Splitting on '|' puts "used / total" in column 2 and utilization in
// column 3.
type TableParser struct {
	Layout config.LayoutConfig
}

// NewTableParser returns a parser for the given layout.
func NewTableParser(layout config.LayoutConfig) TableParser {
	return TableParser{Layout: layout}
}

// Parse implements fleet.Parser.
func (p TableParser) Parse(raw string, count int, prev []fleet.Sample) ([]fleet.Sample, error) {
	if count <= 0 {
		return []fleet.Sample{}, nil
	}

	lines := splitLines(raw)
	out := make([]fleet.Sample, count)
	var errs []error

	for slot := 0; slot < count; slot++ {
		row := p.Layout.FirstRow + slot*p.Layout.Stride
		sample, err := p.parseRow(lines, row)
		if err != nil {
			out[slot] = previous(prev, slot)
			errs = append(errs, &SlotError{Slot: slot, Line: row, Err: err})
			continue
		}
		out[slot] = sample
	}

	return out, slotErrors(errs, count,
		"Compare poll.layout with the output of `gpumon parse`, or switch to poll.format: csv.")
}

func (p TableParser) parseRow(lines []string, row int) (fleet.Sample, error) {
	if row < 0 || row >= len(lines) {
		return fleet.Sample{}, fmt.Errorf("output has only %d lines", len(lines))
	}

	cols := strings.Split(lines[row], "|")
	if p.Layout.MemoryColumn >= len(cols) || p.Layout.UtilColumn >= len(cols) {
		return fleet.Sample{}, fmt.Errorf("expected at least %d columns, got %d",
			max(p.Layout.MemoryColumn, p.Layout.UtilColumn)+1, len(cols))
	}

	mem := strings.Split(cols[p.Layout.MemoryColumn], "/")
	if len(mem) != 2 {
		return fleet.Sample{}, fmt.Errorf("memory column %q isn't 'used / total'", strings.TrimSpace(cols[p.Layout.MemoryColumn]))
	}

	used, err := leadingInt(mem[0])
	if err != nil {
		return fleet.Sample{}, fmt.Errorf("memory used: %w", err)
	}
	total, err := leadingInt(mem[1])
	if err != nil {
		return fleet.Sample{}, fmt.Errorf("memory total: %w", err)
	}
	util, err := leadingInt(cols[p.Layout.UtilColumn])
	if err != nil {
		return fleet.Sample{}, fmt.Errorf("utilization: %w", err)
	}

	return fleet.Sample{MemUsedMiB: used, MemTotalMiB: total, UtilPercent: util}, nil
}
