package parsers

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/rileyhilliard/gpumon/internal/fleet"
)

// CSVParser reads the output of CSVQueryCommand: one
// "memory.used, memory.total, utilization.gpu" line per GPU, in GPU order.
// Fields of "[N/A]" or "[Not Supported]" fail that slot.
type CSVParser struct{}

// Parse implements fleet.Parser.
func (CSVParser) Parse(raw string, count int, prev []fleet.Sample) ([]fleet.Sample, error) {
	if count <= 0 {
		return []fleet.Sample{}, nil
	}

	var rows []string
	for _, line := range splitLines(raw) {
		if strings.TrimSpace(line) != "" {
			rows = append(rows, line)
		}
	}

	out := make([]fleet.Sample, count)
	var errs []error

	for slot := 0; slot < count; slot++ {
		if slot >= len(rows) {
			out[slot] = previous(prev, slot)
			errs = append(errs, &SlotError{Slot: slot, Line: -1,
				Err: fmt.Errorf("output lists only %d GPUs", len(rows))})
			continue
		}

		sample, err := parseCSVRow(rows[slot])
		if err != nil {
			out[slot] = previous(prev, slot)
			errs = append(errs, &SlotError{Slot: slot, Line: slot, Err: err})
			continue
		}
		out[slot] = sample
	}

	return out, slotErrors(errs, count,
		"Make sure poll.command is the --query-gpu form with --format=csv,noheader,nounits.")
}

func parseCSVRow(row string) (fleet.Sample, error) {
	r := csv.NewReader(strings.NewReader(row))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return fleet.Sample{}, fmt.Errorf("malformed CSV row: %w", err)
	}
	if len(fields) != 3 {
		return fleet.Sample{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}

	var values [3]uint32
	for i, f := range fields {
		n, err := leadingInt(f)
		if err != nil {
			return fleet.Sample{}, err
		}
		values[i] = n
	}

	return fleet.Sample{MemUsedMiB: values[0], MemTotalMiB: values[1], UtilPercent: values[2]}, nil
}
