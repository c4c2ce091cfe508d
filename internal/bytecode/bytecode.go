// Package bytecode parses a compiled specification blob into an
// instruction table, tallying signal/atomic counts and dispatching
// configuration records into a DUOQ arena as it goes (spec.md §4.2).
//
// The blob format is a thin length-prefixed record stream:
//
//	u8 offset; char spec_string[]; { u8 length; u8 engine_tag; u8 payload[length-2]; }* ; u8 0
//
// offset points at the first record; everything between byte 1 and
// offset is a human-readable spec string carried along for diagnostics.
package bytecode

import (
	"fmt"

	"github.com/sarchlab/mltlmon/internal/duoq"
	"github.com/sarchlab/mltlmon/internal/verdict"
)

// EngineTag identifies which engine a record's payload belongs to.
type EngineTag uint8

const (
	// EngTemporalLogic marks an FT-instruction record (see Instruction).
	EngTemporalLogic EngineTag = iota
	// EngBooleanizer marks an arithmetic-engine (signal/atomic load) record.
	EngBooleanizer
	// EngAtomicChecker marks an atomic-checker record; unimplemented
	// by this build, but still carried into the instruction table.
	EngAtomicChecker
)

// Opcode is the temporal-logic instruction opcode (spec.md §6 "FT
// instruction payload").
type Opcode uint8

const (
	OpNOP Opcode = iota
	OpCONFIGURE
	OpLOAD
	OpRETURN
	OpPROB
	OpNOT
	OpAND
	OpOR
	OpIMPLIES
	OpNOR
	OpXOR
	OpEQUIVALENT
	OpGLOBALLY
	OpEVENTUALLY
	OpUNTIL
	OpRELEASE
)

// OperandType drives how an instruction's operand slot is resolved
// (spec.md §4.3 "Operand resolution").
type OperandType uint8

const (
	OperandDirect OperandType = iota
	OperandAtomic
	OperandSubformula
	OperandNotSet
)

// Instruction is one decoded FT instruction (spec.md §6 "FT instruction
// payload").
type Instruction struct {
	Opcode          Opcode
	Op1Type         OperandType
	Op2Type         OperandType
	Op1Value        uint32
	Op2Value        uint32
	MemoryReference uint32
}

// instructionPayloadLen is the wire size of an Instruction's payload:
// opcode(1) + op1_type(1) + op2_type(1) + op1_value(4) + op2_value(4) +
// memory_reference(4).
const instructionPayloadLen = 15

func decodeInstruction(payload []byte) (Instruction, error) {
	if len(payload) < instructionPayloadLen {
		return Instruction{}, fmt.Errorf("bytecode: short instruction payload: got %d bytes, want %d", len(payload), instructionPayloadLen)
	}
	return Instruction{
		Opcode:          Opcode(payload[0]),
		Op1Type:         OperandType(payload[1]),
		Op2Type:         OperandType(payload[2]),
		Op1Value:        le32(payload[3:7]),
		Op2Value:        le32(payload[7:11]),
		MemoryReference: le32(payload[11:15]),
	}, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// booleanizerPayloadLen is the wire size of a BooleanizerInstruction's
// payload: opcode(1) + store(1) + addr(4) + atomic_addr(4).
const booleanizerPayloadLen = 10

// BooleanizerOp is the small subset of arithmetic-engine opcodes the
// loader needs to recognize in order to tally signal and atomic counts
// (spec.md §4.2: "updates num_signals and num_atomics from any
// arithmetic-engine load opcodes").
type BooleanizerOp uint8

const (
	BzNOP BooleanizerOp = iota
	BzILOAD
	BzFLOAD
)

// BooleanizerInstruction is a minimal decode of an arithmetic-engine
// record: enough to drive num_signals/num_atomics accounting. The
// booleanizer engine itself is out of scope (spec.md §1 Non-goals).
type BooleanizerInstruction struct {
	Opcode     BooleanizerOp
	Store      bool
	Addr       uint32
	AtomicAddr uint32
}

func decodeBooleanizer(payload []byte) (BooleanizerInstruction, error) {
	if len(payload) < booleanizerPayloadLen {
		return BooleanizerInstruction{}, fmt.Errorf("bytecode: short booleanizer payload: got %d bytes, want %d", len(payload), booleanizerPayloadLen)
	}
	return BooleanizerInstruction{
		Opcode:     BooleanizerOp(payload[0]),
		Store:      payload[1] != 0,
		Addr:       le32(payload[2:6]),
		AtomicAddr: le32(payload[6:10]),
	}, nil
}

// TableEntry is one instruction-table row: an engine tag plus whatever
// that engine could make of the payload (spec.md §3 "Instruction
// table").
type TableEntry struct {
	EngineTag   EngineTag
	Instruction Instruction // valid when EngineTag == EngTemporalLogic
	Booleanizer BooleanizerInstruction
}

// Program is the result of loading a spec blob: the decoded instruction
// table plus the trace-shape metadata the loader derived from it.
type Program struct {
	SpecString string
	Table      []TableEntry
	NumSignals int
	NumAtomics int
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CountNodes pre-scans blob for the highest formula-node memory
// reference any temporal-logic record names, so callers can size a
// duoq.Arena before Load needs one. This mirrors the upstream loader's
// two-pass shape: the compiled spec header gives node counts upstream
// of `binary_load.c`; here the blob carries no such header, so the
// count is derived from the record stream itself.
func CountNodes(blob []byte) (int, error) {
	if len(blob) == 0 {
		return 0, fmt.Errorf("bytecode: empty spec blob")
	}
	offset := int(blob[0])
	if offset >= len(blob) {
		return 0, fmt.Errorf("bytecode: spec string offset %d exceeds blob length %d", offset, len(blob))
	}

	numNodes := 0
	for offset < len(blob) {
		recLen := int(blob[offset])
		if recLen == 0 {
			return numNodes, nil
		}
		if offset+recLen > len(blob) {
			return 0, fmt.Errorf("bytecode: record at offset %d (length %d) overruns blob of length %d", offset, recLen, len(blob))
		}
		if recLen < 2 {
			return 0, fmt.Errorf("bytecode: record at offset %d has length %d, too short to carry an engine tag", offset, recLen)
		}

		if EngineTag(blob[offset+1]) == EngTemporalLogic {
			inst, err := decodeInstruction(blob[offset+2 : offset+recLen])
			if err != nil {
				return 0, err
			}
			numNodes = max(numNodes, int(inst.MemoryReference)+1)
		}

		offset += recLen
	}
	return 0, fmt.Errorf("bytecode: record stream ran off the end of the blob without a terminator")
}

// Load parses blob and configures arena for every CONFIGURE record it
// finds along the way (spec.md §4.2). Malformed records are reported as
// OTHER_ERROR-class errors (here, plain wrapped errors); dispatch
// failures on configuration records propagate unchanged.
func Load(blob []byte, arena *duoq.Arena) (*Program, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("bytecode: empty spec blob")
	}
	offset := int(blob[0])
	if offset >= len(blob) {
		return nil, fmt.Errorf("bytecode: spec string offset %d exceeds blob length %d", offset, len(blob))
	}
	prog := &Program{SpecString: string(blob[1:offset])}

	for offset < len(blob) {
		recLen := int(blob[offset])
		if recLen == 0 {
			return prog, nil // terminator record
		}
		if offset+recLen > len(blob) {
			return nil, fmt.Errorf("bytecode: record at offset %d (length %d) overruns blob of length %d", offset, recLen, len(blob))
		}
		if recLen < 2 {
			return nil, fmt.Errorf("bytecode: record at offset %d has length %d, too short to carry an engine tag", offset, recLen)
		}

		tag := EngineTag(blob[offset+1])
		payload := blob[offset+2 : offset+recLen]

		switch tag {
		case EngTemporalLogic:
			inst, err := decodeInstruction(payload)
			if err != nil {
				return nil, err
			}
			if inst.Opcode == OpCONFIGURE {
				if err := dispatchConfigure(arena, inst); err != nil {
					return nil, fmt.Errorf("bytecode: configure node %d: %w", inst.MemoryReference, err)
				}
			} else {
				prog.Table = append(prog.Table, TableEntry{EngineTag: tag, Instruction: inst})
			}

		case EngBooleanizer:
			bz, err := decodeBooleanizer(payload)
			if err != nil {
				return nil, err
			}
			if bz.Opcode == BzILOAD || bz.Opcode == BzFLOAD {
				prog.NumSignals = max(prog.NumSignals, int(bz.Addr)+1)
			}
			if bz.Store {
				prog.NumAtomics = max(prog.NumAtomics, int(bz.AtomicAddr)+1)
			}
			prog.Table = append(prog.Table, TableEntry{EngineTag: tag, Booleanizer: bz})

		default:
			prog.Table = append(prog.Table, TableEntry{EngineTag: tag})
		}

		offset += recLen
	}

	return nil, fmt.Errorf("bytecode: record stream ran off the end of the blob without a terminator")
}

// dispatchConfigure turns a CONFIGURE instruction into arena state. A
// single CONFIGURE record configures exactly one of three things,
// selected by Op1Type: a plain queue (Op1Type == OperandAtomic,
// Op1Value = word length, Op2Value = classifier code), a temporal
// side-block's bounds (Op1Type == OperandSubformula, Op1Value =
// lower_bound, Op2Value = upper_bound), or a predict side-block's
// deadline/k_modes (Op1Type == OperandDirect, Op1Value = deadline,
// Op2Value = k_modes). A formula node typically receives one queue
// CONFIGURE plus, if it is a temporal or MMPRV-enabled operator, one
// further CONFIGURE of the matching kind.
func dispatchConfigure(arena *duoq.Arena, inst Instruction) error {
	id := int(inst.MemoryReference)

	switch inst.Op1Type {
	case OperandAtomic:
		var class duoq.Classifier
		switch inst.Op2Value {
		case 0:
			class = duoq.ClassBoolean
		case 2:
			class = duoq.ClassProbPropositional
		case 3:
			class = duoq.ClassProbTemporal
		default:
			return fmt.Errorf("unrecognized classifier code %d", inst.Op2Value)
		}
		return arena.Config(id, int(inst.Op1Value), class)

	case OperandSubformula:
		tb, err := arena.ReserveTemporal(id)
		if err != nil {
			return err
		}
		tb.LowerBound = verdict.Word(inst.Op1Value)
		tb.UpperBound = verdict.Word(inst.Op2Value)
		return nil

	case OperandDirect:
		pb, err := arena.ReservePredict(id)
		if err != nil {
			return err
		}
		pb.Deadline = verdict.Word(inst.Op1Value)
		pb.KModes = int(inst.Op2Value)
		return nil

	default:
		return fmt.Errorf("bad CONFIGURE op1_type %d", inst.Op1Type)
	}
}
