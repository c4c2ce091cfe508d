package monitor_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mltlmon/internal/bytecode"
	"github.com/sarchlab/mltlmon/internal/verdict"
	"github.com/sarchlab/mltlmon/monitor"
)

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

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
	return append(blob, 0)
}

var _ = Describe("Monitor", func() {
	It("loads a trivial atom formula and steps it, emitting the wire-format text verdict", func() {
		cfg0 := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 4, 0, 0)
		cfg1 := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 4, 0, 1)
		load := instRecord(byte(bytecode.OpLOAD), byte(bytecode.OperandAtomic), byte(bytecode.OperandNotSet), 0, 0, 0)
		ret := instRecord(byte(bytecode.OpRETURN), byte(bytecode.OperandSubformula), byte(bytecode.OperandDirect), 0, 42, 1)
		blob := buildBlob("a0", cfg0, cfg1, ret, load)

		var out strings.Builder
		m, err := monitor.Load(blob, monitor.DefaultConfig(), monitor.WithSink(monitor.NewTextSink(&out)))
		Expect(err).NotTo(HaveOccurred())
		Expect(m.SpecString()).To(Equal("a0"))

		pushed, err := m.Step(0, nil, []bool{true}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(pushed).To(HaveLen(1))
		Expect(pushed[0].Truth).To(BeTrue())
		Expect(pushed[0].Time).To(Equal(verdict.Word(0)))

		Expect(out.String()).To(Equal("42:0,T\n"))
	})

	It("reports a verdict through a callback sink", func() {
		cfg0 := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 4, 0, 0)
		cfg1 := instRecord(byte(bytecode.OpCONFIGURE), byte(bytecode.OperandAtomic), byte(bytecode.OperandDirect), 4, 0, 1)
		load := instRecord(byte(bytecode.OpLOAD), byte(bytecode.OperandAtomic), byte(bytecode.OperandNotSet), 0, 0, 0)
		ret := instRecord(byte(bytecode.OpRETURN), byte(bytecode.OperandSubformula), byte(bytecode.OperandDirect), 0, 7, 1)
		blob := buildBlob("", cfg0, cfg1, ret, load)

		var got monitor.Verdict
		var gotID uint32
		cb := monitor.NewCallbackSink(func(ref monitor.InstructionRef, v monitor.Verdict) {
			gotID = ref.FormulaID
			got = v
		})

		m, err := monitor.Load(blob, monitor.DefaultConfig(), monitor.WithSink(cb))
		Expect(err).NotTo(HaveOccurred())

		_, err = m.Step(3, nil, []bool{false}, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(gotID).To(Equal(uint32(7)))
		Expect(got.Truth).To(BeFalse())
		Expect(got.Time).To(Equal(verdict.Word(3)))
	})
})
