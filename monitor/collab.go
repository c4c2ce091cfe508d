package monitor

// SignalSource yields one row of input values per call, mirroring the
// upstream CSV trace reader (`memory/csv_trace.h`). Values is the
// signal vector for the current time step; ModeOffsets, when non-nil,
// gives for each `|` mode separator on that row the number of signal
// values that precede it (spec.md §6 "Trace input (CSV)").
type SignalSource interface {
	Next() (values []float64, modeOffsets []int, err error)
}

// AtomicChecker and the booleanizer engine that feeds it are out of
// scope (spec.md §1 Non-goals). ArithmeticLoader stands in for both:
// callers that do want a booleanizer wire it up and hand the monitor
// already-evaluated atomic truth values through Step. Nothing in this
// module calls LoadAtomic; MMPRV takes its forecast atomics from an
// mmprv.Forecaster instead.
type ArithmeticLoader interface {
	LoadAtomic(atomicIndex int, signals []float64) (truth bool, prob float64)
}

// DebugLogger receives diagnostics the core treats as non-fatal, e.g.
// an unimplemented opcode (spec.md §7,
// §1 Non-goals "debug logging"). *logx.Logger implements this.
type DebugLogger interface {
	Debugf(format string, args ...interface{})
}
