// Package csvtrace implements monitor.SignalSource over a comma-separated
// trace file (spec.md §6 "Trace input (CSV)"): this is demo/ambient
// wiring for cmd/mltlmon, not a reimplementation of the upstream trace
// reader's full feature set, since that reader is named out of scope
// (spec.md §1 Non-goals).
package csvtrace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reader reads one row of signal values per Next call. A leading
// '#'-prefixed line is treated as a header and skipped. The literal
// token '|' marks a mode separator for MMPRV: its position in the row
// (the count of signal values read before it) is returned in the
// mode-offset slice.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	pending string // a data row read while checking for a header, claimed by the next Next call
}

// NewReader wraps r as a Reader, consuming and discarding a '#'-prefixed
// header line if present.
func NewReader(r io.Reader) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	rd := &Reader{scanner: scanner}

	if scanner.Scan() {
		rd.line++
		first := scanner.Text()
		if !strings.HasPrefix(strings.TrimSpace(first), "#") {
			rd.pending = first
		}
	} else if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("csvtrace: reading header: %w", err)
	}
	return rd, nil
}

// Next implements monitor.SignalSource. It returns io.EOF once the
// trace is exhausted.
func (r *Reader) Next() ([]float64, []int, error) {
	var line string
	if r.pending != "" {
		line, r.pending = r.pending, ""
	} else {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, nil, fmt.Errorf("csvtrace: line %d: %w", r.line+1, err)
			}
			return nil, nil, io.EOF
		}
		r.line++
		line = r.scanner.Text()
	}

	if strings.TrimSpace(line) == "" {
		return nil, nil, fmt.Errorf("csvtrace: line %d is empty", r.line)
	}

	fields := strings.Split(line, ",")
	values := make([]float64, 0, len(fields))
	var modeOffsets []int

	for _, raw := range fields {
		field := strings.TrimSpace(raw)
		if field == "|" {
			modeOffsets = append(modeOffsets, len(values))
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("csvtrace: line %d: parsing field %q: %w", r.line, field, err)
		}
		values = append(values, v)
	}

	return values, modeOffsets, nil
}
