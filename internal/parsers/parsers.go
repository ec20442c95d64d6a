// Package parsers turns nvidia-smi output into fleet samples.
//
// Every parser follows the same contract: it returns exactly as many
// samples as requested, and a slot that can't be read keeps its previous
// value. One bad row never costs the other rows their data.
package parsers

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/gpumon/internal/config"
	"github.com/rileyhilliard/gpumon/internal/errors"
	"github.com/rileyhilliard/gpumon/internal/fleet"
)

// CSVQueryCommand asks nvidia-smi for exactly the fields CSVParser reads.
const CSVQueryCommand = "nvidia-smi --query-gpu=memory.used,memory.total,utilization.gpu --format=csv,noheader,nounits"

// DefaultCommand is the plain nvidia-smi invocation whose table TableParser reads.
const DefaultCommand = "nvidia-smi"

// New returns the parser selected by poll.format.
func New(poll config.PollConfig) (fleet.Parser, error) {
	switch poll.Format {
	case config.FormatTable, "":
		return NewTableParser(poll.Layout), nil
	case config.FormatCSV:
		return CSVParser{}, nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown poll.format '%s'", poll.Format),
			fmt.Sprintf("Use '%s' or '%s'.", config.FormatTable, config.FormatCSV))
	}
}

// Command returns the remote command for poll. A CSV format left on the
// plain default command is switched to the query form, since the table
// output can't be read as CSV.
func Command(poll config.PollConfig) string {
	if poll.Format == config.FormatCSV && strings.TrimSpace(poll.Command) == DefaultCommand {
		return CSVQueryCommand
	}
	return poll.Command
}

// SlotError describes why one slot couldn't be read.
type SlotError struct {
	Slot int
	Line int // 0-based line in the output, -1 if none applied
	Err  error
}

func (e *SlotError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("slot %d: %v", e.Slot, e.Err)
	}
	return fmt.Sprintf("slot %d (line %d): %v", e.Slot, e.Line, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// slotErrors folds per-slot failures into one PARSE error, or nil.
func slotErrors(errs []error, count int, suggestion string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.WrapWithCode(stderrors.Join(errs...), errors.ErrParse,
		fmt.Sprintf("%d of %d slots unreadable", len(errs), count),
		suggestion)
}

// previous returns prev[i], or the zero sample when prev is too short.
func previous(prev []fleet.Sample, i int) fleet.Sample {
	if i < len(prev) {
		return prev[i]
	}
	return fleet.Sample{}
}

// splitLines splits on \n and drops a trailing \r from each line.
func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// leadingInt reads the non-negative integer at the start of s, ignoring
// surrounding spaces and any unit suffix: "1234MiB" is 1234, "45 %" is 45.
func leadingInt(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no number in %q", s)
	}
	n, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("number %q out of range", s[:end])
	}
	return uint32(n), nil
}
