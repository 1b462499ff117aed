package periph_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/periph"
)

const (
	addrADCL   = 0x78
	addrADCH   = 0x79
	addrADCSRA = 0x7A
	addrADMUX  = 0x7C
)

var _ = Describe("ADC", func() {
	var (
		host *fakeHost
		m    *periph.Mediator
	)

	BeforeEach(func() {
		host = newFakeHost()
		m = periph.NewMediator(periph.WithHost(host))
	})

	It("should convert the selected channel when ADSC is set", func() {
		host.analog[3] = 512
		m.WriteIO(addrADMUX, 0x43)
		m.WriteIO(addrADCSRA, 0xC7)

		Expect(m.ReadIO(addrADCSRA) & 0x40).To(BeZero())
		Expect(m.ReadIO(addrADCSRA) & 0x10).To(Equal(uint8(0x10)))
		Expect(m.ReadIO(addrADCL)).To(Equal(uint8(0x00)))
		Expect(m.ReadIO(addrADCH)).To(Equal(uint8(0x02)))
	})

	It("should clamp readings to 10 bits and honor ADLAR", func() {
		host.analog[0] = 5000
		m.WriteIO(addrADMUX, 0x60)
		m.WriteIO(addrADCSRA, 0xC7)

		Expect(m.ReadIO(addrADCH)).To(Equal(uint8(0xFF)))
		Expect(m.ReadIO(addrADCL)).To(Equal(uint8(0xC0)))
	})

	It("should not convert while disabled", func() {
		host.analog[0] = 100
		m.WriteIO(addrADCSRA, 0x40)

		Expect(m.ReadIO(addrADCL)).To(Equal(uint8(0)))
		Expect(m.ReadIO(addrADCSRA) & 0x10).To(BeZero())
	})

	It("should raise the ADC interrupt and clear ADIF on write-one", func() {
		m.WriteIO(addrADCSRA, 0xC8)

		v, ok := m.PendingInterrupt()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(periph.VectorADC))

		m.WriteIO(addrADCSRA, 0x98)
		_, ok = m.PendingInterrupt()
		Expect(ok).To(BeFalse())
	})
})
