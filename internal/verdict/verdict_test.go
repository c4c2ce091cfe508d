package verdict_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mltlmon/internal/verdict"
)

var _ = Describe("Word", func() {
	It("packs and unpacks time/truth", func() {
		w := verdict.New(5, true)
		Expect(w.Time()).To(Equal(verdict.Word(5)))
		Expect(w.True()).To(BeTrue())

		w = verdict.New(5, false)
		Expect(w.Time()).To(Equal(verdict.Word(5)))
		Expect(w.True()).To(BeFalse())
	})

	It("never equals Infinity for a real verdict", func() {
		// TimeMask-1 is the largest timestamp a true verdict can carry;
		// New(TimeMask, true) is the all-ones sentinel itself.
		w := verdict.New(verdict.TimeMask-1, true)
		Expect(w).NotTo(Equal(verdict.Infinity))
	})

	It("round-trips negation", func() {
		w := verdict.New(3, true)
		Expect(w.Negate().Negate()).To(Equal(w))
		Expect(w.Negate().True()).To(BeFalse())
	})

	Describe("SameRun", func() {
		It("is true for verdicts differing only in timestamp", func() {
			a := verdict.New(1, true)
			b := verdict.New(9, true)
			Expect(verdict.SameRun(a, b)).To(BeTrue())
		})

		It("is false for verdicts differing in truth", func() {
			a := verdict.New(1, true)
			b := verdict.New(1, false)
			Expect(verdict.SameRun(a, b)).To(BeFalse())
		})
	})
})

var _ = Describe("Probability", func() {
	It("reports Empty for the Infinity sentinel", func() {
		p := verdict.Probability{Time: verdict.Infinity}
		Expect(p.Empty()).To(BeTrue())
	})

	It("reports non-empty for a real slot", func() {
		p := verdict.Probability{Time: 3, Prob: 0.5}
		Expect(p.Empty()).To(BeFalse())
	})
})
