package duoq

import "github.com/sarchlab/mltlmon/internal/verdict"

// activeWriteCursor returns a pointer to the cursor that a write with the
// given predicting flag should advance: Write normally, PredWrite when
// predicting.
func activeWriteCursor(cb *ControlBlock, predicting bool) *int {
	if predicting {
		return &cb.PredWrite
	}
	return &cb.Write
}

// advancePredicted computes the next predicted-write cursor position,
// clamping it back to the real write cursor if it would cross into the
// half of the queue still owned by real data (spec.md §4.1 "Predicted
// writes").
func advancePredicted(cb *ControlBlock, cursor int) int {
	next := (cursor + 1) % cb.Length
	boundary := (cb.Write + (cb.Length-1)/2 + 1) % cb.Length
	if next == boundary {
		return cb.Write
	}
	return next
}

// Write writes verdict v to node id's queue, applying verdict compaction,
// and advances the appropriate write cursor (spec.md §4.1 "write").
func (a *Arena) Write(id int, v verdict.Word, predicting bool) error {
	if err := a.checkID(id); err != nil {
		return err
	}
	cb := &a.blocks[id]
	if cb.Queue == nil {
		return nil // uninitialized queue: fail silently per spec.md §4.1
	}
	if predicting && cb.PredWrite == noPrediction {
		return nil // no live prediction to write into; caller must StartPrediction first
	}
	cursor := activeWriteCursor(cb, predicting)

	prev := cb.Length - 1
	if *cursor != 0 {
		prev = *cursor - 1
	}

	if verdict.SameRun(cb.Queue[prev], v) &&
		cb.Queue[prev] != cb.Queue[*cursor] &&
		cb.Queue[*cursor] != verdict.Infinity {
		// Skip compaction while the write cursor and a live predicted
		// cursor coincide: a predicting write would otherwise overwrite
		// the last real verdict.
		if cb.Write != cb.PredWrite {
			*cursor = prev
		}
	}

	cb.Queue[*cursor] = v

	if predicting {
		*cursor = advancePredicted(cb, *cursor)
	} else {
		*cursor = (*cursor + 1) % cb.Length
	}

	if !predicting && cb.Write == cb.PredWrite {
		cb.PredWrite = noPrediction
	}

	return nil
}

// WriteProbability is the probability-slot analogue of Write. Real-valued
// equality makes compaction meaningless, so it is not attempted.
func (a *Arena) WriteProbability(id int, v verdict.Probability, predicting bool) error {
	if err := a.checkID(id); err != nil {
		return err
	}
	cb := &a.blocks[id]
	if cb.ProbQueue == nil {
		return nil
	}
	if predicting && cb.PredWrite == noPrediction {
		return nil
	}
	cursor := activeWriteCursor(cb, predicting)

	cb.ProbQueue[*cursor] = v

	if predicting {
		*cursor = advancePredicted(cb, *cursor)
	} else {
		*cursor = (*cursor + 1) % cb.Length
	}

	if !predicting && cb.Write == cb.PredWrite {
		cb.PredWrite = noPrediction
	}

	return nil
}

// Check advances the read cursor forward until it finds a verdict whose
// timestamp is >= nextTime, returning it. If no such verdict exists yet it
// steps the cursor back one slot (to catch a just-compacted value on the
// next call) and returns false (spec.md §4.1 "check").
func (a *Arena) Check(id int, read *int, nextTime verdict.Word, predicting bool) (verdict.Word, bool) {
	cb := &a.blocks[id]

	// While a prediction is live, the slots from Write up to PredWrite
	// hold predicted data that a real reader must not see.
	if !predicting && cb.PredWrite != noPrediction && (*read == cb.PredWrite || *read == cb.Write) {
		return 0, false
	}

	writeCursor := cb.Write
	if predicting {
		writeCursor = cb.PredWrite
	}

	if cb.Queue[*read] == verdict.Infinity {
		return 0, false
	}

	for {
		if cb.Queue[*read].Time() >= nextTime {
			return cb.Queue[*read], true
		}
		*read = (*read + 1) % cb.Length
		if *read == writeCursor {
			break
		}
	}

	if *read == 0 {
		*read = cb.Length - 1
	} else {
		*read--
	}
	return 0, false
}

// CheckProbability is the probability-slot analogue of Check.
func (a *Arena) CheckProbability(id int, read *int, nextTime verdict.Word, predicting bool) (verdict.Probability, bool) {
	cb := &a.blocks[id]

	if !predicting && cb.PredWrite != noPrediction && (*read == cb.PredWrite || *read == cb.Write) {
		return verdict.Probability{}, false
	}

	writeCursor := cb.Write
	if predicting {
		writeCursor = cb.PredWrite
	}

	if cb.ProbQueue[*read].Empty() {
		return verdict.Probability{}, false
	}

	for {
		p := cb.ProbQueue[*read]
		if p.Time >= nextTime {
			return p, true
		}
		*read = (*read + 1) % cb.Length
		if *read == writeCursor {
			break
		}
	}

	if *read == 0 {
		*read = cb.Length - 1
	} else {
		*read--
	}
	return verdict.Probability{}, false
}

// ProbabilityAt returns the probability slot at a raw index without
// advancing any cursor.
func (a *Arena) ProbabilityAt(id, index int) verdict.Probability {
	return a.blocks[id].ProbQueue[index]
}
