package bytecode_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mltlmon/internal/bytecode"
	"github.com/sarchlab/mltlmon/internal/duoq"
	"github.com/sarchlab/mltlmon/internal/verdict"
)

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// instRecord builds a length-prefixed temporal-logic record from an
// Instruction's fields.
func instRecord(opcode, op1Type, op2Type byte, op1, op2, memRef uint32) []byte {
	payload := []byte{opcode, op1Type, op2Type}
	payload = append(payload, le32(op1)...)
	payload = append(payload, le32(op2)...)
	payload = append(payload, le32(memRef)...)
	rec := []byte{byte(len(payload) + 2), byte(bytecode.EngTemporalLogic)}
	return append(rec, payload...)
}

func buildBlob(specString string, records ...[]byte) []byte {
	blob := []byte{byte(1 + len(specString))}
	blob = append(blob, []byte(specString)...)
	for _, r := range records {
		blob = append(blob, r...)
	}
	blob = append(blob, 0)
	return blob
}

var _ = Describe("Load", func() {
	var arena *duoq.Arena

	BeforeEach(func() {
		arena = duoq.NewArena(4)
	})

	It("carries the spec string through unchanged", func() {
		blob := buildBlob("p0 & p1", instRecord(byte(bytecode.OpRETURN), byte(bytecode.OperandSubformula), byte(bytecode.OperandNotSet), 0, 0, 0))
		prog, err := bytecode.Load(blob, arena)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.SpecString).To(Equal("p0 & p1"))
	})

	It("dispatches a queue CONFIGURE record into the arena instead of the table", func() {
		cfg := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 8, 0, 0)
		ret := instRecord(byte(bytecode.OpRETURN), byte(bytecode.OperandSubformula), byte(bytecode.OperandNotSet), 0, 0, 0)
		blob := buildBlob("", cfg, ret)

		prog, err := bytecode.Load(blob, arena)
		Expect(err).NotTo(HaveOccurred())

		Expect(arena.Block(0).Length).To(Equal(8))
		Expect(prog.Table).To(HaveLen(1))
		Expect(prog.Table[0].Instruction.Opcode).To(Equal(bytecode.OpRETURN))
	})

	It("reserves a temporal side-block with bounds when Op1Type is SUBFORMULA", func() {
		queue := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 8, 0, 1)
		cfg := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandSubformula), byte(bytecode.OperandDirect), 2, 5, 1)
		blob := buildBlob("", queue, cfg)

		_, err := bytecode.Load(blob, arena)
		Expect(err).NotTo(HaveOccurred())

		tb, ok := arena.Temporal(1)
		Expect(ok).To(BeTrue())
		Expect(tb.LowerBound).To(Equal(verdict.Word(2)))
		Expect(tb.UpperBound).To(Equal(verdict.Word(5)))
	})

	It("reserves a predict side-block with deadline/k_modes when Op1Type is DIRECT", func() {
		queue := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 8, 0, 2)
		cfg := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandDirect), byte(bytecode.OperandDirect), 10, 3, 2)
		blob := buildBlob("", queue, cfg)

		_, err := bytecode.Load(blob, arena)
		Expect(err).NotTo(HaveOccurred())

		pb, ok := arena.Predict(2)
		Expect(ok).To(BeTrue())
		Expect(pb.Deadline).To(Equal(verdict.Word(10)))
		Expect(pb.KModes).To(Equal(3))
	})

	It("tallies num_signals and num_atomics from booleanizer load/store records", func() {
		load := []byte{12, byte(bytecode.EngBooleanizer), byte(bytecode.BzILOAD), 0}
		load = append(load, le32(2)...) // addr = 2
		load = append(load, le32(5)...) // atomic_addr = 5 (store flag false -> ignored)
		blob := buildBlob("", load)

		prog, err := bytecode.Load(blob, arena)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.NumSignals).To(Equal(3))
		Expect(prog.NumAtomics).To(Equal(0))
	})

	It("rejects a record that overruns the blob", func() {
		blob := []byte{1, 200, byte(bytecode.EngTemporalLogic), 1, 2}
		_, err := bytecode.Load(blob, arena)
		Expect(err).To(HaveOccurred())
	})

	It("rejects an out-of-range CONFIGURE classifier code", func() {
		cfg := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 8, 9, 0)
		blob := buildBlob("", cfg)
		_, err := bytecode.Load(blob, arena)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("CountNodes", func() {
	It("reports one past the highest memory reference used by a temporal-logic record", func() {
		cfg := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 8, 0, 0)
		ret := instRecord(byte(bytecode.OpRETURN), byte(bytecode.OperandSubformula), byte(bytecode.OperandNotSet), 0, 0, 3)
		blob := buildBlob("", cfg, ret)

		n, err := bytecode.CountNodes(blob)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(4))
	})

	It("rejects a record that overruns the blob", func() {
		blob := []byte{1, 200, byte(bytecode.EngTemporalLogic), 1, 2}
		_, err := bytecode.CountNodes(blob)
		Expect(err).To(HaveOccurred())
	})
})
