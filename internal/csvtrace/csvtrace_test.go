package csvtrace_test

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mltlmon/internal/csvtrace"
)

var _ = Describe("Reader", func() {
	It("skips a '#'-prefixed header and parses each row", func() {
		r, err := csvtrace.NewReader(strings.NewReader("#t,a0,a1\n1.0,0.5\n2.0,1.5\n"))
		Expect(err).NotTo(HaveOccurred())

		vals, modes, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(modes).To(BeEmpty())
		Expect(vals).To(Equal([]float64{1.0, 0.5}))

		vals, _, err = r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(Equal([]float64{2.0, 1.5}))

		_, _, err = r.Next()
		Expect(err).To(MatchError(io.EOF))
	})

	It("records mode-separator offsets at their position in the value vector", func() {
		r, err := csvtrace.NewReader(strings.NewReader("1.0,|,2.0,3.0,|,4.0\n"))
		Expect(err).NotTo(HaveOccurred())

		vals, modes, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(HaveLen(4))
		Expect(modes).To(Equal([]int{1, 3}))
	})

	It("treats the first row as data when no header is present", func() {
		r, err := csvtrace.NewReader(strings.NewReader("5.0\n6.0\n"))
		Expect(err).NotTo(HaveOccurred())

		vals, _, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(Equal([]float64{5.0}))
	})

	It("rejects an empty line", func() {
		r, err := csvtrace.NewReader(strings.NewReader("1.0\n\n2.0\n"))
		Expect(err).NotTo(HaveOccurred())

		_, _, err = r.Next()
		Expect(err).NotTo(HaveOccurred())

		_, _, err = r.Next()
		Expect(err).To(HaveOccurred())
	})
})
