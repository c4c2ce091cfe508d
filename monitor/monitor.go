// Package monitor wires the DUOQ arena, bytecode loader, FT evaluator,
// and MMPRV speculator into a runnable unit: load a compiled spec blob
// once, then call Step once per trace row (spec.md §4.5 expansion).
package monitor

import (
	"fmt"

	"github.com/sarchlab/mltlmon/internal/bytecode"
	"github.com/sarchlab/mltlmon/internal/duoq"
	"github.com/sarchlab/mltlmon/internal/ftengine"
	"github.com/sarchlab/mltlmon/internal/mmprv"
	"github.com/sarchlab/mltlmon/internal/status"
	"github.com/sarchlab/mltlmon/internal/verdict"
)

// Monitor owns every piece of state needed to evaluate one compiled
// formula set over a trace: the arena, the instruction table, the
// signal/atomic buffers, and the collaborators (sink, logger,
// speculator) RETURN and MMPRV dispatch to (spec.md §5: no global
// mutable state, everything lives on the instance).
type Monitor struct {
	prog  *bytecode.Program
	arena *duoq.Arena
	ctx   *ftengine.Context
	cfg   Config
	sink  VerdictSink
}

// Option configures a Monitor at Load time.
type Option func(*Monitor)

// WithSink attaches the verdict sink RETURN emits to. Without one,
// pushed verdicts are computed but never reported.
func WithSink(sink VerdictSink) Option {
	return func(m *Monitor) { m.sink = sink }
}

// WithLogger attaches the DebugLogger non-fatal diagnostics go to
// (unimplemented opcodes).
func WithLogger(logger DebugLogger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.ctx.Logger = loggerAdapter{logger}
		}
	}
}

// WithForecaster attaches the MMPRV forecast source. Without one,
// speculation still runs but every forecasted time step reuses the
// current step's atomic vector and probabilities.
func WithForecaster(f mmprv.Forecaster) Option {
	return func(m *Monitor) {
		m.ctx.Speculator = &mmprv.Speculator{
			Forecaster:    f,
			MaxIterations: m.cfg.MaxSpeculativeIterations,
		}
	}
}

// Load parses a compiled spec blob (spec.md §4.2), sizes an arena to
// fit every node the blob references, configures it via the embedded
// CONFIGURE records, and returns a Monitor ready to Step.
func Load(blob []byte, cfg Config, opts ...Option) (*Monitor, error) {
	numNodes, err := bytecode.CountNodes(blob)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	arena := duoq.NewArena(numNodes)
	prog, err := bytecode.Load(blob, arena)
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	applyPredictDefaults(arena, cfg)

	m := &Monitor{
		prog:  prog,
		arena: arena,
		cfg:   cfg,
	}
	m.ctx = &ftengine.Context{
		Arena: arena,
		Table: prog.Table,
		Speculator: &mmprv.Speculator{
			MaxIterations: cfg.MaxSpeculativeIterations,
		},
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// applyPredictDefaults fills in cfg's fallback deadline/k_modes on every
// predict block a CONFIGURE record left at zero (spec.md §6 "Configuration
// file" expansion: the blob is the source of truth when it sets a value,
// cfg only covers what it left unset).
func applyPredictDefaults(arena *duoq.Arena, cfg Config) {
	for id := 0; id < arena.NumNodes(); id++ {
		pb, ok := arena.Predict(id)
		if !ok {
			continue
		}
		if pb.Deadline == 0 {
			pb.Deadline = verdict.Word(cfg.DefaultDeadline)
		}
		if pb.KModes == 0 {
			pb.KModes = cfg.DefaultKModes
		}
	}
}

// NumSignals is the signal-vector width the loaded spec expects, tallied
// from its arithmetic-engine load opcodes (spec.md §4.2).
func (m *Monitor) NumSignals() int { return m.prog.NumSignals }

// NumAtomics is the atomic-vector width the loaded spec expects.
func (m *Monitor) NumAtomics() int { return m.prog.NumAtomics }

// SpecString is the human-readable formula text carried at the front of
// the compiled blob, unused by evaluation but useful for reporting.
func (m *Monitor) SpecString() string { return m.prog.SpecString }

// Step evaluates one trace row: it loads the signal vector (kept on the
// evaluation context; evaluation reads only atomics), the booleanized atomic vector,
// and an optional per-atomic probability override, then runs the FT
// evaluator's fixpoint to completion for this time step (spec.md §4.3
// "Per-step contract"). atomicProbs may be nil; a negative entry (or a
// vector shorter than NumAtomics) means "no probability override for
// this atomic".
func (m *Monitor) Step(timeStamp verdict.Word, signals []float64, atomics []bool, atomicProbs []float64) ([]Verdict, error) {
	collector := &collectingSink{inner: m.sink}
	m.ctx.Sink = sinkAdapter{collector}

	m.ctx.TimeStamp = timeStamp
	m.ctx.Predictive = false
	m.ctx.Signals = signals
	m.ctx.Atomics = atomics
	m.ctx.AtomicProbs = atomicProbs

	if err := ftengine.Step(m.ctx); err != status.OK {
		return collector.verdicts, fmt.Errorf("monitor: step %d: %w", timeStamp, err)
	}
	return collector.verdicts, nil
}

// sinkAdapter bridges ftengine.Sink (the core's (uint32, verdict.Word,
// bool, verdict.Word) shape) to the public, struct-based VerdictSink.
type sinkAdapter struct {
	sink VerdictSink
}

func (a sinkAdapter) Emit(formulaID uint32, v verdict.Word, predicted bool, realTime verdict.Word) {
	a.sink.Emit(formulaID, Verdict{
		Time:      v.Time(),
		Truth:     v.True(),
		Predicted: predicted,
		RealTime:  realTime,
	})
}

// collectingSink records every verdict emitted during one Step call (so
// Step can return them) while still forwarding to the caller's sink.
type collectingSink struct {
	inner    VerdictSink
	verdicts []Verdict
}

func (c *collectingSink) Emit(formulaID uint32, v Verdict) {
	c.verdicts = append(c.verdicts, v)
	if c.inner != nil {
		c.inner.Emit(formulaID, v)
	}
}

type loggerAdapter struct {
	logger DebugLogger
}

func (a loggerAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debugf(format, args...)
}
