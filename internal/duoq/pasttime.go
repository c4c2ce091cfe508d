package duoq

import "github.com/sarchlab/mltlmon/internal/verdict"

// Interval is a (start, end) pair pushed onto a node's queue by the
// sibling past-time engine. These operations treat the arena as a
// two-word-per-element FIFO; they are specified here only as a bit-exact
// contract (spec.md §4.1, §6) — the past-time engine itself is out of
// scope (spec.md §1).
type Interval struct {
	Start verdict.Word
	End   verdict.Word
}

var emptyInterval = Interval{Start: verdict.New(0, true), End: verdict.New(0, true)}

// PtIsEmpty reports whether node id's past-time FIFO has no elements.
func (a *Arena) PtIsEmpty(id int) bool {
	cb := &a.blocks[id]
	return cb.Read1 == cb.Write
}

// PtIsFull reports whether node id's past-time FIFO has no room left.
func (a *Arena) PtIsFull(id int) bool {
	cb := &a.blocks[id]
	return (cb.Write+2)%cb.Length == cb.Read1
}

// PtPush appends an interval at the head of the FIFO.
func (a *Arena) PtPush(id int, v Interval) {
	cb := &a.blocks[id]
	cb.Queue[cb.Write] = v.Start
	cb.Queue[cb.Write+1] = v.End
	if cb.Write == cb.Length-2 {
		cb.Write = 0
	} else {
		cb.Write += 2
	}
}

// PtPeek returns the oldest (tail) interval without removing it.
func (a *Arena) PtPeek(id int) Interval {
	if a.PtIsEmpty(id) {
		return emptyInterval
	}
	cb := &a.blocks[id]
	return Interval{Start: cb.Queue[cb.Read1], End: cb.Queue[cb.Read1+1]}
}

// PtHeadPop removes and returns the newest (head) interval.
func (a *Arena) PtHeadPop(id int) Interval {
	if a.PtIsEmpty(id) {
		return emptyInterval
	}
	cb := &a.blocks[id]
	if cb.Write == 0 {
		cb.Write = cb.Length - 2
	} else {
		cb.Write -= 2
	}
	return Interval{Start: cb.Queue[cb.Write], End: cb.Queue[cb.Write+1]}
}

// PtTailPop removes and returns the oldest (tail) interval.
func (a *Arena) PtTailPop(id int) Interval {
	if a.PtIsEmpty(id) {
		return emptyInterval
	}
	cb := &a.blocks[id]
	idx := cb.Read1
	if cb.Read1 == cb.Length-2 {
		cb.Read1 = 0
	} else {
		cb.Read1 += 2
	}
	return Interval{Start: cb.Queue[idx], End: cb.Queue[idx+1]}
}
