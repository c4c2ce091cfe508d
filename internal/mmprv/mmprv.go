// Package mmprv implements the Multimodal Model Predictive Runtime
// Verification extension: a speculative re-run of the FT evaluator over
// a formula's dependency subset, used to produce an early verdict when
// a RETURN's deadline is about to elapse without one (spec.md §4.4).
package mmprv

import (
	"fmt"
	"sort"

	"github.com/sarchlab/mltlmon/internal/bytecode"
	"github.com/sarchlab/mltlmon/internal/duoq"
	"github.com/sarchlab/mltlmon/internal/ftengine"
	"github.com/sarchlab/mltlmon/internal/status"
	"github.com/sarchlab/mltlmon/internal/verdict"
)

// defaultMaxIterations bounds the speculative loop when no forecast
// ever closes the gap to the deadline, so a misconfigured k-offset
// buffer cannot hang the monitor.
const defaultMaxIterations = 4096

// ModeSample is one forecast branch's atomic truth/probability values
// for a single speculative time step (spec.md §4.4 step 3).
type ModeSample struct {
	Atomics []bool
	Probs   []float64
}

// Forecaster supplies the per-(iteration, mode) forecast sample that
// slides the signal/atomic vectors during speculation, standing in for
// the external k-offset buffer and booleanizer re-dispatch of
// future_time.c's RETURN case (spec.md §4.4 step 3). The booleanizer
// engine itself is out of scope (spec.md §1 Non-goals); callers supply
// already-booleanized forecasts.
type Forecaster interface {
	Sample(iteration, mode int) ModeSample
}

// Speculator implements ftengine.Speculator.
type Speculator struct {
	Forecaster    Forecaster
	MaxIterations int // 0 uses defaultMaxIterations
}

// nodeSnapshot captures the fields of a control block (and, where
// present, its temporal side-block) that speculation mutates and must
// restore afterward (spec.md §4.4 step 2 "Snapshot").
type nodeSnapshot struct {
	id             int
	read1, read2   int
	nextTime       verdict.Word
	hasTemporal    bool
	edge, previous verdict.Word
}

func buildNodeIndex(table []bytecode.TableEntry) map[int]int {
	byNode := make(map[int]int, len(table))
	for i, e := range table {
		if e.EngineTag == bytecode.EngTemporalLogic {
			byNode[int(e.Instruction.MemoryReference)] = i
		}
	}
	return byNode
}

// discoverRelevant walks the dependency DAG rooted at returnIndex's
// operand, collecting every temporal-logic node that contributes,
// deduplicated by node id (spec.md §4.4 step 1 "Discover relevant
// instructions"). The result holds those nodes' table indices, sorted
// high-to-low, the order the evaluator dispatches in.
func discoverRelevant(table []bytecode.TableEntry, returnIndex int) []int {
	byNode := buildNodeIndex(table)
	visited := make(map[int]bool)
	var order []int

	var walk func(nodeID int)
	walk = func(nodeID int) {
		if visited[nodeID] {
			return
		}
		idx, ok := byNode[nodeID]
		if !ok {
			return
		}
		visited[nodeID] = true
		order = append(order, idx)

		inst := table[idx].Instruction
		if inst.Op1Type == bytecode.OperandSubformula {
			walk(int(inst.Op1Value))
		}
		if inst.Op2Type == bytecode.OperandSubformula {
			walk(int(inst.Op2Value))
		}
	}

	ret := table[returnIndex].Instruction
	if ret.Op1Type == bytecode.OperandSubformula {
		walk(int(ret.Op1Value))
	}

	sort.Sort(sort.Reverse(sort.IntSlice(order)))
	return order
}

func snapshotNodes(arena *duoq.Arena, ids []int) []nodeSnapshot {
	snaps := make([]nodeSnapshot, 0, len(ids))
	for _, id := range ids {
		cb := arena.Block(id)
		snap := nodeSnapshot{id: id, read1: cb.Read1, read2: cb.Read2, nextTime: cb.NextTime}
		if tb, ok := arena.Temporal(id); ok {
			snap.hasTemporal = true
			snap.edge = tb.Edge
			snap.previous = tb.Previous
		}
		snaps = append(snaps, snap)
		arena.StartPrediction(id)
	}
	return snaps
}

func restoreNodes(arena *duoq.Arena, snaps []nodeSnapshot) {
	for _, s := range snaps {
		cb := arena.Block(s.id)
		cb.Read1 = s.read1
		cb.Read2 = s.read2
		cb.NextTime = s.nextTime
		if s.hasTemporal {
			tb, _ := arena.Temporal(s.id)
			tb.Edge = s.edge
			tb.Previous = s.previous
		}
	}
}

// mergeModes combines kModes forecast branches into a single
// atomic/probability vector: atomics agreeing across modes have their
// probabilities summed, disagreeing atomics are forced to the
// first-observed (mode 0) truth, conservatively (spec.md §4.4 step 3).
func mergeModes(f Forecaster, iteration, kModes, numAtomics int) ModeSample {
	merged := ModeSample{Atomics: make([]bool, numAtomics), Probs: make([]float64, numAtomics)}
	for mode := 0; mode < kModes; mode++ {
		sample := f.Sample(iteration, mode)
		for a := 0; a < numAtomics; a++ {
			truth := a < len(sample.Atomics) && sample.Atomics[a]
			var prob float64
			if a < len(sample.Probs) {
				prob = sample.Probs[a]
			}
			if mode == 0 {
				merged.Atomics[a] = truth
				merged.Probs[a] = prob
				continue
			}
			if truth == merged.Atomics[a] {
				merged.Probs[a] += prob
			}
			// disagreement: keep mode 0's truth and probability (conservative)
		}
	}
	return merged
}

// Speculate runs the MMPRV procedure for the RETURN instruction at
// returnIndex (spec.md §4.4). It is wired into ftengine.Context as the
// Speculator collaborator; ftengine calls it once it has already
// confirmed the node has a predict block and has fallen behind its
// deadline.
func (s *Speculator) Speculate(ctx *ftengine.Context, returnIndex int) error {
	inst := ctx.Table[returnIndex].Instruction
	id := int(inst.MemoryReference)

	pb, ok := ctx.Arena.Predict(id)
	if !ok {
		return nil
	}
	if ctx.TimeStamp < pb.Deadline {
		return nil
	}
	index := ctx.TimeStamp - pb.Deadline

	relevant := discoverRelevant(ctx.Table, returnIndex)
	// relevant holds table indices; the snapshot works on node ids and
	// also covers the RETURN node, whose read cursor and next_time the
	// speculative RETURN pushes move.
	nodeIDs := make([]int, 0, len(relevant)+1)
	for _, idx := range relevant {
		nodeIDs = append(nodeIDs, int(ctx.Table[idx].Instruction.MemoryReference))
	}
	snaps := snapshotNodes(ctx.Arena, append(nodeIDs, id))
	ctx.Arena.StartPrediction(id)

	origSignals := ctx.Signals
	origAtomics := ctx.Atomics
	origAtomicProbs := ctx.AtomicProbs
	origTimeStamp := ctx.TimeStamp
	origPredictive := ctx.Predictive
	origProgress := ctx.Progress

	restore := func() {
		ctx.Signals = origSignals
		ctx.Atomics = origAtomics
		ctx.AtomicProbs = origAtomicProbs
		ctx.TimeStamp = origTimeStamp
		ctx.Predictive = origPredictive
		ctx.Progress = origProgress
		restoreNodes(ctx.Arena, snaps)
	}

	kModes := pb.KModes
	if kModes < 1 {
		kModes = 1
	}
	maxIterations := s.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	// The outer loop's termination follows the operand's own verdict
	// time reaching index (future_time.c:294's `while (op0 ==
	// r2u2_infinity || (op0 & R2U2_TNT_TIME) < index)`), not the RETURN
	// node's own queue[write]: every speculative push lands through
	// PredWrite, so queue[write] holds at most the first run of predicted
	// verdicts and stops changing once PredWrite moves past it.
	for iteration := 0; iteration < maxIterations; iteration++ {
		ctx.Progress = ftengine.FirstLoop
		ctx.TimeStamp++
		ctx.Predictive = true

		if s.Forecaster != nil {
			sample := mergeModes(s.Forecaster, iteration, kModes, len(origAtomics))
			ctx.Atomics = sample.Atomics
			ctx.AtomicProbs = sample.Probs
		}

		reachedIndex := false
		for {
			if err := ftengine.DispatchPassSubset(ctx, relevant); err != status.OK {
				restore()
				return fmt.Errorf("mmprv: speculative dispatch at node %d: %s", id, err)
			}
			_, reached := ftengine.SpeculativeReturn(ctx, returnIndex, index)
			if reached {
				reachedIndex = true
				ctx.Progress = ftengine.ReloopNoProgress
				break
			}
			if ctx.Progress == ftengine.ReloopNoProgress {
				break
			}
			ctx.Progress = ftengine.ReloopNoProgress
		}

		if reachedIndex {
			break
		}
	}

	restore()
	return nil
}
