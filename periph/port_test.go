package periph_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/avrsim/periph"
)

const (
	addrPINB  = 0x23
	addrDDRB  = 0x24
	addrPORTB = 0x25
	addrDDRC  = 0x27
	addrPORTC = 0x28
	addrDDRD  = 0x2A
	addrPORTD = 0x2B
)

var _ = Describe("Port", func() {
	var (
		host *fakeHost
		m    *periph.Mediator
	)

	BeforeEach(func() {
		host = newFakeHost()
		m = periph.NewMediator(periph.WithHost(host))
	})

	It("should report one event per output level change", func() {
		m.WriteIO(addrDDRB, 0x20)
		m.WriteIO(addrPORTB, 0x20)
		m.WriteIO(addrPORTB, 0x20)
		m.WriteIO(addrPORTB, 0x00)

		Expect(host.digital).To(Equal([]pinEvent{{13, true}, {13, false}}))
	})

	It("should not report latch writes on input pins until they become outputs", func() {
		m.WriteIO(addrPORTB, 0x01)
		Expect(host.digital).To(BeEmpty())

		m.WriteIO(addrDDRB, 0x01)
		Expect(host.digital).To(Equal([]pinEvent{{8, true}}))
	})

	It("should map ports C and D onto Arduino pin numbers", func() {
		m.WriteIO(addrDDRD, 0x04)
		m.WriteIO(addrPORTD, 0x04)
		m.WriteIO(addrDDRC, 0x01)
		m.WriteIO(addrPORTC, 0x01)

		Expect(host.digital).To(Equal([]pinEvent{{2, true}, {14, true}}))
	})

	It("should read inputs from the host and outputs from the latch", func() {
		host.inputs[8] = true
		m.WriteIO(addrDDRB, 0x20)
		m.WriteIO(addrPORTB, 0x20)

		Expect(m.ReadIO(addrPINB)).To(Equal(uint8(0x21)))
	})

	It("should toggle the latch when PINx is written", func() {
		m.WriteIO(addrDDRB, 0x20)
		m.WriteIO(addrPINB, 0x20)
		Expect(m.ReadIO(addrPORTB)).To(Equal(uint8(0x20)))

		m.WriteIOBit(addrPINB, 5, true)
		Expect(m.ReadIO(addrPORTB)).To(Equal(uint8(0x00)))

		Expect(host.digital).To(Equal([]pinEvent{{13, true}, {13, false}}))
	})

	It("should change only the addressed bit on SBI/CBI", func() {
		m.WriteIO(addrDDRB, 0xFF)
		m.WriteIOBit(addrPORTB, 1, true)
		m.WriteIOBit(addrPORTB, 3, true)
		m.WriteIOBit(addrPORTB, 1, false)

		Expect(m.Port('B').Latch()).To(Equal(uint8(0x08)))
	})

	It("should contain a panicking host callback", func() {
		logger, hook := test.NewNullLogger()
		host.panics = true
		m = periph.NewMediator(periph.WithHost(host), periph.WithLogger(logger))

		Expect(func() {
			m.WriteIO(addrDDRB, 0x20)
			m.WriteIO(addrPORTB, 0x20)
		}).NotTo(Panic())

		Expect(m.Port('B').Latch()).To(Equal(uint8(0x20)))
		Expect(hook.LastEntry()).NotTo(BeNil())
		Expect(hook.LastEntry().Level).To(Equal(logrus.WarnLevel))
		Expect(hook.LastEntry().Data).To(HaveKeyWithValue("callback", "OnDigitalPinChange"))
	})
})

var _ = Describe("Mediator", func() {
	It("should treat unclaimed registers as scratch storage", func() {
		m := periph.NewMediator()

		m.WriteIO(0x4E, 0x99)
		Expect(m.ReadIO(0x4E)).To(Equal(uint8(0x99)))
	})

	It("should return registers to power-on values on Reset", func() {
		m := periph.NewMediator()
		m.WriteIO(addrDDRB, 0xFF)
		m.WriteIO(0x4E, 0x99)

		m.Reset()

		Expect(m.ReadIO(addrDDRB)).To(Equal(uint8(0)))
		Expect(m.ReadIO(0x4E)).To(Equal(uint8(0)))
	})

	It("should name vectors", func() {
		Expect(periph.VectorTimer0Ovf.String()).To(Equal("TIMER0_OVF"))
		Expect(periph.Vector(40).String()).To(Equal("VECTOR_40"))
	})
})
