package monitor

import (
	"fmt"
	"io"

	"github.com/sarchlab/mltlmon/internal/verdict"
)

// Verdict is a sink-facing copy of a pushed verdict: its truth, the
// timestamp it belongs to, and (for predicted verdicts) the real time
// step the monitor was actually at when MMPRV produced it.
type Verdict struct {
	Time      verdict.Word
	Truth     bool
	Predicted bool
	RealTime  verdict.Word
}

// VerdictSink receives every verdict RETURN pushes, real or speculative
// (spec.md §4.3 RETURN, §4.4 MMPRV, §6 "Verdict sink"). FormulaID is the
// RETURN instruction's Op2Value, the wire identifier for this formula.
type VerdictSink interface {
	Emit(formulaID uint32, v Verdict)
}

// TextSink writes the exact wire format spec.md §6 names:
// "formula_id:timestamp,T|F", with a " (Predicted at time stamp <real>)"
// suffix for speculative verdicts, one line per verdict. It mirrors
// RETURN's out_file path in future_time.c; opening/rotating w is the
// caller's job, matching the core's "never owns a file handle" rule.
type TextSink struct {
	w io.Writer
}

// NewTextSink wraps w as a VerdictSink.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Emit(formulaID uint32, v Verdict) {
	truth := "F"
	if v.Truth {
		truth = "T"
	}
	if v.Predicted {
		fmt.Fprintf(s.w, "%d:%d,%s (Predicted at time stamp %d)\n", formulaID, v.Time, truth, v.RealTime)
		return
	}
	fmt.Fprintf(s.w, "%d:%d,%s\n", formulaID, v.Time, truth)
}

// InstructionRef identifies the RETURN instruction a callback verdict
// came from, for callers that correlate verdicts across formulas
// without parsing the text wire format.
type InstructionRef struct {
	FormulaID uint32
}

// CallbackSink adapts a plain Go function into a VerdictSink, mirroring
// RETURN's out_func path in future_time.c.
type CallbackSink struct {
	Func func(ref InstructionRef, v Verdict)
}

// NewCallbackSink wraps fn as a VerdictSink.
func NewCallbackSink(fn func(ref InstructionRef, v Verdict)) *CallbackSink {
	return &CallbackSink{Func: fn}
}

func (s *CallbackSink) Emit(formulaID uint32, v Verdict) {
	s.Func(InstructionRef{FormulaID: formulaID}, v)
}

// MultiSink fans one verdict stream out to several sinks, letting
// Monitor support the text-file-and-callback combination spec.md §6
// describes as "optional callback variant" alongside the text sink.
type MultiSink struct {
	Sinks []VerdictSink
}

func (s MultiSink) Emit(formulaID uint32, v Verdict) {
	for _, sink := range s.Sinks {
		sink.Emit(formulaID, v)
	}
}
