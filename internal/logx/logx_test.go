package logx_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mltlmon/internal/logx"
)

var _ = Describe("Logger", func() {
	It("suppresses Debugf output below debug level", func() {
		var buf bytes.Buffer
		l := logx.New(&buf, false)
		l.Debugf("should not appear %d", 1)
		Expect(buf.Len()).To(Equal(0))
	})

	It("emits Debugf output once debug level is enabled", func() {
		var buf bytes.Buffer
		l := logx.New(&buf, true)
		l.Debugf("node %d fell behind", 7)
		Expect(buf.String()).To(ContainSubstring("node 7 fell behind"))
	})

	It("Nop discards everything without panicking", func() {
		l := logx.Nop()
		l.Infof("this goes nowhere")
		l.Errorf(nil, "neither does this")
	})
})
