// Package ftengine implements the future-time MLTL evaluator: the
// per-time-step fixpoint loop over a formula's instruction table
// (spec.md §4.3).
package ftengine

import (
	"github.com/sarchlab/mltlmon/internal/bytecode"
	"github.com/sarchlab/mltlmon/internal/duoq"
	"github.com/sarchlab/mltlmon/internal/status"
	"github.com/sarchlab/mltlmon/internal/verdict"
)

// Progress tracks the fixpoint loop's state across passes over the
// instruction table (spec.md §4.3 "Per-step contract").
type Progress int

const (
	FirstLoop Progress = iota
	ReloopNoProgress
	ReloopWithProgress
)

// Sink receives verdicts pushed out of a RETURN instruction.
type Sink interface {
	Emit(formulaID uint32, v verdict.Word, predicted bool, realTime verdict.Word)
}

// Speculator runs the MMPRV extension for a RETURN instruction whose
// node has fallen behind its deadline (spec.md §4.4). It is injected
// rather than imported directly, since the speculator itself re-enters
// this package's dispatch loop over a reduced instruction set.
type Speculator interface {
	Speculate(ctx *Context, returnIndex int) error
}

// DebugLogger receives diagnostics for conditions the evaluator does
// not treat as fatal, e.g. an unimplemented opcode (spec.md §7).
type DebugLogger interface {
	Debugf(format string, args ...interface{})
}

// Context is the evaluation state for one formula set: the arena, the
// instruction table built by the loader, the current time step's
// signal/atomic inputs, and the collaborators RETURN dispatches to.
type Context struct {
	Arena      *duoq.Arena
	Table      []bytecode.TableEntry
	TimeStamp  verdict.Word
	Progress   Progress
	Predictive bool

	Signals     []float64
	Atomics     []bool
	AtomicProbs []float64 // negative entry = "no override for this atomic"

	Sink       Sink
	Speculator Speculator
	Logger     DebugLogger
}

func (c *Context) debugf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Debugf(format, args...)
	}
}

// Step runs the fixpoint loop to completion for the current time step
// (spec.md §4.3 "Per-step contract"). Exactly one full, push-free pass
// ends it; since DIRECT/ATOMIC operands are only loaded during
// FirstLoop, at least two passes always run.
func Step(ctx *Context) status.Status {
	ctx.Progress = FirstLoop
	for {
		if err := dispatchPass(ctx); err != status.OK {
			return err
		}
		if ctx.Progress == ReloopNoProgress {
			return status.OK
		}
		ctx.Progress = ReloopNoProgress
	}
}

// DispatchPassSubset runs one high-to-low pass over the given table
// indices only, for MMPRV's re-dispatch of a RETURN's relevant
// instructions during speculation (spec.md §4.4 step 3). indices must
// already be in descending order.
func DispatchPassSubset(ctx *Context, indices []int) status.Status {
	for _, i := range indices {
		entry := &ctx.Table[i]
		if entry.EngineTag != bytecode.EngTemporalLogic {
			continue
		}
		if err := dispatch(ctx, i, &entry.Instruction); err != status.OK {
			return err
		}
	}
	return status.OK
}

// SpeculativeReturn re-evaluates a RETURN instruction's operand during
// MMPRV speculation: the emitted verdict's timestamp is clamped to
// index and the push goes through the predicted-write path, tagged as
// predicted in the sink (spec.md §4.4 step 3). reachedIndex reports
// whether the clamped verdict actually reached index, the signal MMPRV
// uses to end the current forecasted time step's inner fixpoint loop.
func SpeculativeReturn(ctx *Context, returnIndex int, index verdict.Word) (pushed bool, reachedIndex bool) {
	inst := &ctx.Table[returnIndex].Instruction
	id := int(inst.MemoryReference)
	cb := ctx.Arena.Block(id)

	v, ok := ctx.resolveOperand(cb, inst, 0)
	if !ok {
		return false, false
	}

	clamped := minWord(index, v.Time())
	result := verdict.New(clamped, v.True())
	ctx.push(cb, id, result)
	if ctx.Sink != nil {
		ctx.Sink.Emit(inst.Op2Value, result, true, ctx.TimeStamp)
	}
	return true, clamped == index
}

func dispatchPass(ctx *Context) status.Status {
	for i := len(ctx.Table) - 1; i >= 0; i-- {
		entry := &ctx.Table[i]
		if entry.EngineTag != bytecode.EngTemporalLogic {
			continue // arithmetic/atomic-checker engines are out of this engine's scope
		}
		if err := dispatch(ctx, i, &entry.Instruction); err != status.OK {
			return err
		}
	}
	return status.OK
}

// push writes v into inst's own queue, advances next_time, and flips
// progress from ReloopNoProgress to ReloopWithProgress (spec.md §4.3:
// "Any push sets progress=RELOOP_WITH_PROGRESS").
func (ctx *Context) push(cb *duoq.ControlBlock, nodeID int, v verdict.Word) {
	_ = ctx.Arena.Write(nodeID, v, ctx.Predictive)
	cb.NextTime = v.Time() + 1
	if ctx.Progress == ReloopNoProgress {
		ctx.Progress = ReloopWithProgress
	}
}

func (ctx *Context) pushProbability(cb *duoq.ControlBlock, nodeID int, p verdict.Probability) {
	_ = ctx.Arena.WriteProbability(nodeID, p, ctx.Predictive)
	cb.NextTime = p.Time + 1
	if ctx.Progress == ReloopNoProgress {
		ctx.Progress = ReloopWithProgress
	}
}

// resolveOperand implements spec.md §4.3 "Operand resolution" for the
// boolean (TNT-word) data path.
func (ctx *Context) resolveOperand(cb *duoq.ControlBlock, inst *bytecode.Instruction, opNum int) (verdict.Word, bool) {
	opType, value := operandSlot(inst, opNum)
	switch opType {
	case bytecode.OperandDirect:
		return verdict.New(ctx.TimeStamp, value != 0), ctx.Progress == FirstLoop
	case bytecode.OperandAtomic:
		truth := int(value) < len(ctx.Atomics) && ctx.Atomics[value]
		return verdict.New(ctx.TimeStamp, truth), ctx.Progress == FirstLoop
	case bytecode.OperandSubformula:
		read := readCursor(cb, opNum)
		return ctx.Arena.Check(int(value), read, cb.NextTime, ctx.Predictive)
	default:
		return 0, false
	}
}

// resolveOperandProbability is the probabilistic analogue of
// resolveOperand, used by the probabilistic variants of AND/NOT/
// GLOBALLY/UNTIL/PROB (spec.md §4.3 "Probabilistic variants").
func (ctx *Context) resolveOperandProbability(cb *duoq.ControlBlock, inst *bytecode.Instruction, opNum int) (verdict.Probability, bool) {
	opType, value := operandSlot(inst, opNum)
	switch opType {
	case bytecode.OperandDirect:
		p := verdict.Probability{Time: ctx.TimeStamp, Prob: float64(value)}
		return p, ctx.Progress == FirstLoop
	case bytecode.OperandAtomic:
		prob := 1.0
		if int(value) < len(ctx.AtomicProbs) && ctx.AtomicProbs[value] >= 0 {
			prob = ctx.AtomicProbs[value]
		}
		truth := int(value) < len(ctx.Atomics) && ctx.Atomics[value]
		if !truth {
			prob = 1 - prob
		}
		return verdict.Probability{Time: ctx.TimeStamp, Prob: prob}, ctx.Progress == FirstLoop
	case bytecode.OperandSubformula:
		read := readCursor(cb, opNum)
		return ctx.Arena.CheckProbability(int(value), read, cb.NextTime, ctx.Predictive)
	default:
		return verdict.Probability{}, false
	}
}

func operandSlot(inst *bytecode.Instruction, opNum int) (bytecode.OperandType, uint32) {
	if opNum == 0 {
		return inst.Op1Type, inst.Op1Value
	}
	return inst.Op2Type, inst.Op2Value
}

func readCursor(cb *duoq.ControlBlock, opNum int) *int {
	if opNum == 0 {
		return &cb.Read1
	}
	return &cb.Read2
}

func minWord(a, b verdict.Word) verdict.Word {
	if a < b {
		return a
	}
	return b
}

func maxWord(a, b verdict.Word) verdict.Word {
	if a > b {
		return a
	}
	return b
}

// dispatch executes one instruction (spec.md §4.3 "Opcodes
// implemented"). Opcodes outside the implemented set report UNIMPL and
// are skipped with a debug log, never aborting the step.
func dispatch(ctx *Context, idx int, inst *bytecode.Instruction) status.Status {
	id := int(inst.MemoryReference)
	cb := ctx.Arena.Block(id)

	switch inst.Opcode {
	case bytecode.OpNOP, bytecode.OpCONFIGURE:
		return status.OK

	case bytecode.OpLOAD:
		if ctx.Progress != FirstLoop {
			return status.OK
		}
		if v, ok := ctx.resolveOperand(cb, inst, 0); ok {
			ctx.push(cb, id, v)
		}
		return status.OK

	case bytecode.OpRETURN:
		return dispatchReturn(ctx, idx, inst, cb, id)

	case bytecode.OpPROB:
		return dispatchProb(ctx, inst, cb, id)

	case bytecode.OpNOT:
		return dispatchNot(ctx, cb, inst, id)

	case bytecode.OpAND:
		return dispatchAnd(ctx, cb, inst, id)

	case bytecode.OpGLOBALLY:
		return dispatchGlobally(ctx, cb, inst, id)

	case bytecode.OpUNTIL:
		return dispatchUntil(ctx, cb, inst, id)

	default:
		ctx.debugf("ftengine: unimplemented opcode %d at instruction %d", inst.Opcode, idx)
		return status.Unimpl
	}
}

func dispatchReturn(ctx *Context, idx int, inst *bytecode.Instruction, cb *duoq.ControlBlock, id int) status.Status {
	if v, ok := ctx.resolveOperand(cb, inst, 0); ok {
		ctx.push(cb, id, v)
		if ctx.Sink != nil {
			ctx.Sink.Emit(inst.Op2Value, v, ctx.Predictive, ctx.TimeStamp)
		}
	}

	if ctx.Predictive || ctx.Speculator == nil {
		return status.OK
	}
	if ctx.Progress != ReloopNoProgress {
		return status.OK
	}

	pb, ok := ctx.Arena.Predict(id)
	if !ok {
		return status.OK
	}
	if ctx.TimeStamp < pb.Deadline {
		return status.OK
	}
	index := ctx.TimeStamp - pb.Deadline

	latest := cb.Queue[cb.Write]
	if latest == verdict.Infinity || (latest.Time() < index && cb.NextTime <= index) {
		if err := ctx.Speculator.Speculate(ctx, idx); err != nil {
			return status.InvalidInst
		}
	}
	return status.OK
}

func dispatchProb(ctx *Context, inst *bytecode.Instruction, cb *duoq.ControlBlock, id int) status.Status {
	p, ok := ctx.resolveOperandProbability(cb, inst, 0)
	if !ok {
		return status.OK
	}
	// The instruction's second operand slot doubles as a fixed-point
	// (x/1000) decision threshold, since the boolean PROB node has no
	// second operand of its own to carry one.
	threshold := float64(inst.Op2Value) / 1000.0
	ctx.push(cb, id, verdict.New(p.Time, p.Prob >= threshold))
	return status.OK
}

func dispatchNot(ctx *Context, cb *duoq.ControlBlock, inst *bytecode.Instruction, id int) status.Status {
	if cb.Prob.Probabilistic() {
		if p, ok := ctx.resolveOperandProbability(cb, inst, 0); ok {
			ctx.pushProbability(cb, id, verdict.Probability{Time: p.Time, Prob: 1 - p.Prob})
		}
		return status.OK
	}
	if v, ok := ctx.resolveOperand(cb, inst, 0); ok {
		ctx.push(cb, id, v.Negate())
	}
	return status.OK
}

func dispatchAnd(ctx *Context, cb *duoq.ControlBlock, inst *bytecode.Instruction, id int) status.Status {
	if cb.Prob.Probabilistic() {
		p0, ok0 := ctx.resolveOperandProbability(cb, inst, 0)
		p1, ok1 := ctx.resolveOperandProbability(cb, inst, 1)
		if ok0 && ok1 {
			ctx.pushProbability(cb, id, verdict.Probability{Time: p0.Time, Prob: p0.Prob * p1.Prob})
		}
		return status.OK
	}

	op0, rdy0 := ctx.resolveOperand(cb, inst, 0)
	op1, rdy1 := ctx.resolveOperand(cb, inst, 1)

	switch {
	case rdy0 && rdy1:
		switch {
		case op0.True() && op1.True():
			ctx.push(cb, id, verdict.New(minWord(op0.Time(), op1.Time()), true))
		case !op0.True() && !op1.True():
			ctx.push(cb, id, verdict.New(maxWord(op0.Time(), op1.Time()), false))
		case op0.True():
			ctx.push(cb, id, verdict.New(op1.Time(), false))
		default:
			ctx.push(cb, id, verdict.New(op0.Time(), false))
		}
	case rdy0:
		if !op0.True() {
			ctx.push(cb, id, verdict.New(op0.Time(), false))
		}
	case rdy1:
		if !op1.True() {
			ctx.push(cb, id, verdict.New(op1.Time(), false))
		}
	}
	return status.OK
}

func dispatchGlobally(ctx *Context, cb *duoq.ControlBlock, inst *bytecode.Instruction, id int) status.Status {
	tb, ok := ctx.Arena.Temporal(id)
	if !ok {
		return status.InvalidInst
	}

	if cb.Prob.Probabilistic() {
		p, ok := ctx.resolveOperandProbability(cb, inst, 0)
		if !ok {
			return status.OK
		}
		if cb.NextTime == 0 {
			tb.RunningProb = 1
		}
		if p.Time >= tb.UpperBound {
			// Running product over [a,b], approximating the backward
			// rescan of future_time.c's probabilistic GLOBALLY
			// (future_time.c:415-425) by folding each pre-window step
			// into tb.RunningProb as it arrives rather than rescanning
			// at window close.
			running := tb.RunningProb * p.Prob
			ctx.pushProbability(cb, id, verdict.Probability{Time: p.Time - tb.UpperBound, Prob: running})
			tb.RunningProb = 1
		} else {
			tb.RunningProb *= p.Prob
		}
		cb.NextTime = p.Time + 1
		return status.OK
	}

	v, ok := ctx.resolveOperand(cb, inst, 0)
	if !ok {
		return status.OK
	}

	if v.True() && !tb.Previous.True() {
		if cb.NextTime != 0 {
			tb.Edge = verdict.New(tb.Previous.Time()+1, true)
		} else {
			tb.Edge = verdict.New(0, true)
		}
	}

	switch {
	case v.True() && tb.Edge.True() &&
		v.Time() >= tb.UpperBound-tb.LowerBound+tb.Edge.Time() &&
		v.Time() >= tb.UpperBound:
		ctx.push(cb, id, verdict.New(v.Time()-tb.UpperBound, true))
	case !v.True() && v.Time() >= tb.LowerBound:
		ctx.push(cb, id, verdict.New(v.Time()-tb.LowerBound, false))
	}

	cb.NextTime = v.Time() + 1
	tb.Previous = v
	return status.OK
}

func dispatchUntil(ctx *Context, cb *duoq.ControlBlock, inst *bytecode.Instruction, id int) status.Status {
	tb, ok := ctx.Arena.Temporal(id)
	if !ok {
		return status.InvalidInst
	}

	if cb.Prob.Probabilistic() {
		p0, ok0 := ctx.resolveOperandProbability(cb, inst, 0)
		p1, ok1 := ctx.resolveOperandProbability(cb, inst, 1)
		if !ok0 || !ok1 {
			return status.OK
		}
		tau := minWord(p0.Time, p1.Time)
		if tau >= tb.UpperBound {
			// Running noisy-or over [a,b], approximating the backward
			// rescan of future_time.c's probabilistic UNTIL
			// (future_time.c:415-425): each pre-window step folds p1's
			// probability into tb.RunningProb as it arrives, identity
			// zero, rather than rescanning at window close.
			running := 1 - (1-p1.Prob)*(1-tb.RunningProb)
			ctx.pushProbability(cb, id, verdict.Probability{Time: tau - tb.UpperBound, Prob: running})
			tb.RunningProb = 0
		} else {
			tb.RunningProb = 1 - (1-p1.Prob)*(1-tb.RunningProb)
		}
		cb.NextTime = tau + 1
		return status.OK
	}

	op0, ok0 := ctx.resolveOperand(cb, inst, 0)
	op1, ok1 := ctx.resolveOperand(cb, inst, 1)
	if !ok0 || !ok1 {
		return status.OK
	}

	tau := minWord(op0.Time(), op1.Time())
	cb.NextTime = tau + 1

	if op1.True() {
		tb.Edge = op1.Time()
	}

	var result verdict.Word
	matched := true
	switch {
	case op1.True() && tau >= tb.Previous.Time()+tb.LowerBound:
		result = verdict.New(tau-tb.LowerBound, true)
	case !op0.True() && tau >= tb.Previous.Time()+tb.LowerBound:
		result = verdict.New(tau-tb.LowerBound, false)
	case tau >= tb.UpperBound-tb.LowerBound+tb.Edge && tau >= tb.Previous.Time()+tb.UpperBound:
		result = verdict.New(tau-tb.UpperBound, false)
	default:
		matched = false
	}
	if !matched {
		return status.OK
	}

	if result.Time() > tb.Previous.Time() || (result.Time() == 0 && !tb.Previous.True()) {
		ctx.push(cb, id, result)
		tb.Previous = verdict.New(result.Time(), true)
	}
	return status.OK
}
