// Package duoq implements the DUO queue arena: a fixed-capacity pool of
// per-node circular result queues with verdict compaction and an optional
// shadow "predicted" write cursor, plus a two-word-per-element past-time
// interval FIFO sharing the same storage contract.
//
// The arena is sized once at load time (spec.md §3 "Arena layout"); no
// queue is grown or shrunk, and no entity is destroyed until monitor
// teardown. Steady-state operation (Write/WriteProbability/Check) performs
// no allocation.
package duoq

import (
	"fmt"

	"github.com/sarchlab/mltlmon/internal/verdict"
)

// Classifier distinguishes boolean nodes from the two flavors of
// probabilistic node. spec.md §9 flags the C sources' use of the magic
// numbers 1.0/2.0/3.0 for this and recommends an explicit enumeration;
// this is that enumeration.
type Classifier int

const (
	// ClassBoolean is an ordinary TNT-word node (ctrl.prob == 0 in the C
	// sources).
	ClassBoolean Classifier = iota
	// ClassProbPropositional is a probabilistic propositional node
	// (ctrl.prob == 2.0 in the C sources).
	ClassProbPropositional
	// ClassProbTemporal is a probabilistic temporal node (ctrl.prob == 3.0
	// in the C sources).
	ClassProbTemporal
)

// Probabilistic reports whether c is one of the probability-slot classes.
func (c Classifier) Probabilistic() bool {
	return c == ClassProbPropositional || c == ClassProbTemporal
}

// noPrediction is the sentinel for "no live prediction", standing in for
// the C sources' reuse of r2u2_infinity for pred_write. Since our cursors
// are plain slice indices rather than bit-packed words, a negative
// sentinel is the idiomatic Go substitute (spec.md §9 "Bit-packed
// verdicts" explicitly allows representation substitutions that preserve
// the algebraic rules).
const noPrediction = -1

// ControlBlock is one node's queue plus its read/write cursors
// (spec.md §3 "DUOQ control block").
type ControlBlock struct {
	Queue     []verdict.Word         // boolean-class storage; empty for probabilistic nodes
	ProbQueue []verdict.Probability   // probabilistic-class storage; empty for boolean nodes
	Length    int                    // usable slot count
	Read1     int
	Read2     int
	Write     int
	PredWrite int // noPrediction when no live prediction
	NextTime  verdict.Word
	Prob      Classifier
}

// TemporalBlock is the side-block for temporal operators (spec.md §3
// "Temporal block").
type TemporalBlock struct {
	LowerBound verdict.Word
	UpperBound verdict.Word
	Edge       verdict.Word // truth bit overloaded as "edge has ever been recorded"
	Previous   verdict.Word // truth bit overloaded as "a verdict has ever been produced"

	// RunningProb accumulates the probabilistic variants' running
	// product (GLOBALLY) or iterated combination (UNTIL) across a
	// window, standing in for the C sources' backward rescan over the
	// operand's recent history (future_time.c's curr_index loop).
	RunningProb float64
}

// PredictBlock is the side-block for MMPRV-enabled nodes (spec.md §3
// "Predict block").
type PredictBlock struct {
	Deadline verdict.Word
	KModes   int
}

// Arena is the fixed-capacity pool of per-node DUO queues.
//
// spec.md §9 "Side-blocks stolen from queues" explicitly permits
// allocating temporal/predict blocks as separately-indexed slabs instead
// of overlaying the tail of each queue, "provided the sum total memory is
// identical and all queue-length arithmetic is updated in lockstep". This
// implementation takes that option (see DESIGN.md): Temporal and Predict
// are parallel, node-indexed slices rather than stolen queue slots, which
// keeps Go's bounds checking meaningful and avoids unsafe pointer
// arithmetic. Reserving a side-block still shrinks the owning queue's
// Length by the slots the block would have occupied, so queue-length
// arithmetic matches the overlaid layout.
type Arena struct {
	blocks   []ControlBlock
	temporal []*TemporalBlock
	predict  []*PredictBlock
}

// NewArena allocates an arena with room for numNodes control blocks. This
// and Config's per-node queue allocation happen once, at load time.
func NewArena(numNodes int) *Arena {
	return &Arena{
		blocks:   make([]ControlBlock, numNodes),
		temporal: make([]*TemporalBlock, numNodes),
		predict:  make([]*PredictBlock, numNodes),
	}
}

// NumNodes returns the number of control blocks the arena was built with.
func (a *Arena) NumNodes() int { return len(a.blocks) }

func (a *Arena) checkID(id int) error {
	if id < 0 || id >= len(a.blocks) {
		return fmt.Errorf("duoq: node id %d out of range [0,%d)", id, len(a.blocks))
	}
	return nil
}

// Block returns the mutable control block for id, for the FT evaluator and
// MMPRV speculator to read/update cursors directly.
func (a *Arena) Block(id int) *ControlBlock {
	return &a.blocks[id]
}

// Temporal returns the temporal side-block for id, if reserved.
func (a *Arena) Temporal(id int) (*TemporalBlock, bool) {
	tb := a.temporal[id]
	return tb, tb != nil
}

// Predict returns the predict side-block for id, if reserved.
func (a *Arena) Predict(id int) (*PredictBlock, bool) {
	pb := a.predict[id]
	return pb, pb != nil
}

// Config assigns a node's queue base, sets its usable length, and
// classifies it (spec.md §4.1 "config"). Length accounting: a
// probabilistic node's slot count is half its word length, since each
// slot holds two TNT words worth of payload.
func (a *Arena) Config(id, wordLength int, class Classifier) error {
	if err := a.checkID(id); err != nil {
		return err
	}
	cb := &a.blocks[id]
	cb.Prob = class
	cb.PredWrite = noPrediction
	if class.Probabilistic() {
		cb.Length = wordLength / 2
		cb.ProbQueue = make([]verdict.Probability, cb.Length)
		cb.ProbQueue[0] = verdict.Probability{Time: verdict.Infinity}
	} else {
		cb.Length = wordLength
		cb.Queue = make([]verdict.Word, cb.Length)
		cb.Queue[0] = verdict.Infinity
	}
	return nil
}

// sideBlockSlots converts a side-block's word count into queue slots:
// one word per slot on boolean nodes, two on probabilistic ones.
func sideBlockSlots(cb *ControlBlock, words int) int {
	if cb.Prob.Probabilistic() {
		return (words + 1) / 2
	}
	return words
}

// ReserveTemporal attaches a temporal side-block to id and shrinks the
// node's usable queue length by the block's four words (lower_bound,
// upper_bound, edge, previous).
func (a *Arena) ReserveTemporal(id int) (*TemporalBlock, error) {
	if err := a.checkID(id); err != nil {
		return nil, err
	}
	cb := &a.blocks[id]
	slots := sideBlockSlots(cb, 4)
	if cb.Length <= slots {
		return nil, fmt.Errorf("duoq: reserve temporal: node %d queue length %d leaves no room for the side-block", id, cb.Length)
	}
	cb.Length -= slots
	tb := &TemporalBlock{}
	a.temporal[id] = tb
	return tb, nil
}

// StartPrediction points id's predicted-write cursor at the current write
// cursor, making subsequent predicting Write/WriteProbability calls valid.
// This is the per-node half of MMPRV's snapshot step (spec.md §4.4 step 2:
// "set pred_write = write").
func (a *Arena) StartPrediction(id int) {
	cb := &a.blocks[id]
	cb.PredWrite = cb.Write
}

// ReservePredict attaches a predict side-block to id and shrinks the
// node's usable queue length by the block's two words (deadline,
// k_modes).
func (a *Arena) ReservePredict(id int) (*PredictBlock, error) {
	if err := a.checkID(id); err != nil {
		return nil, err
	}
	cb := &a.blocks[id]
	slots := sideBlockSlots(cb, 2)
	if cb.Length <= slots {
		return nil, fmt.Errorf("duoq: reserve predict: node %d queue length %d leaves no room for the side-block", id, cb.Length)
	}
	cb.Length -= slots
	pb := &PredictBlock{}
	a.predict[id] = pb
	return pb, nil
}
