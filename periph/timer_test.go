package periph_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/periph"
)

const (
	addrTIFR0  = 0x35
	addrTIFR2  = 0x37
	addrTCCR0A = 0x44
	addrTCCR0B = 0x45
	addrTCNT0  = 0x46
	addrOCR0A  = 0x47
	addrTIMSK0 = 0x6E
	addrTIMSK2 = 0x70
	addrTCCR1A = 0x80
	addrTCCR1B = 0x81
	addrTCNT1L = 0x84
	addrTCNT1H = 0x85
	addrOCR1AL = 0x88
	addrOCR1AH = 0x89
	addrTCCR2A = 0xB0
	addrTCCR2B = 0xB1
	addrTCNT2  = 0xB2
)

var _ = Describe("Timer", func() {
	var (
		host *fakeHost
		m    *periph.Mediator
	)

	BeforeEach(func() {
		host = newFakeHost()
		m = periph.NewMediator(periph.WithHost(host))
	})

	Describe("counting", func() {
		It("should not count while stopped", func() {
			m.Tick(1000)
			Expect(m.ReadIO(addrTCNT0)).To(Equal(uint8(0)))
		})

		It("should overflow in normal mode", func() {
			m.WriteIO(addrTCCR0B, 0x01)

			m.Tick(255)
			Expect(m.ReadIO(addrTCNT0)).To(Equal(uint8(255)))
			Expect(m.ReadIO(addrTIFR0) & 0x01).To(BeZero())

			m.Tick(1)
			Expect(m.ReadIO(addrTCNT0)).To(Equal(uint8(0)))
			Expect(m.ReadIO(addrTIFR0) & 0x01).To(Equal(uint8(0x01)))
		})

		It("should divide the clock by the prescaler", func() {
			m.WriteIO(addrTCCR0B, 0x03)

			m.Tick(63)
			Expect(m.ReadIO(addrTCNT0)).To(Equal(uint8(0)))

			m.Tick(1)
			Expect(m.ReadIO(addrTCNT0)).To(Equal(uint8(1)))
		})

		It("should clear on compare match in CTC mode", func() {
			m.WriteIO(addrTCCR0A, 0x02)
			m.WriteIO(addrOCR0A, 9)
			m.WriteIO(addrTCCR0B, 0x01)

			m.Tick(9)
			Expect(m.ReadIO(addrTCNT0)).To(Equal(uint8(9)))
			Expect(m.ReadIO(addrTIFR0) & 0x02).To(Equal(uint8(0x02)))

			m.Tick(1)
			Expect(m.ReadIO(addrTCNT0)).To(Equal(uint8(0)))
			Expect(m.ReadIO(addrTIFR0) & 0x01).To(BeZero())
		})

		It("should count up and down in phase-correct mode", func() {
			m.WriteIO(addrTCCR2A, 0x01)
			m.WriteIO(addrTCCR2B, 0x01)

			m.Tick(255)
			Expect(m.ReadIO(addrTCNT2)).To(Equal(uint8(255)))

			m.Tick(100)
			Expect(m.ReadIO(addrTCNT2)).To(Equal(uint8(155)))
			Expect(m.ReadIO(addrTIFR2) & 0x01).To(BeZero())

			m.Tick(155)
			Expect(m.ReadIO(addrTCNT2)).To(Equal(uint8(0)))
			Expect(m.ReadIO(addrTIFR2) & 0x01).To(Equal(uint8(0x01)))
		})

		It("should access 16-bit registers through TEMP", func() {
			m.WriteIO(addrTCNT1H, 0x01)
			m.WriteIO(addrTCNT1L, 0x02)
			Expect(m.Timer(1).Count()).To(Equal(uint16(0x0102)))

			m.WriteIO(addrTCNT1H, 0x7F)
			Expect(m.Timer(1).Count()).To(Equal(uint16(0x0102)))

			Expect(m.ReadIO(addrTCNT1L)).To(Equal(uint8(0x02)))
			Expect(m.ReadIO(addrTCNT1H)).To(Equal(uint8(0x01)))
		})
	})

	Describe("interrupts", func() {
		BeforeEach(func() {
			m.WriteIO(addrTCCR0B, 0x01)
			m.Tick(256)
		})

		It("should only be pending when enabled", func() {
			_, ok := m.PendingInterrupt()
			Expect(ok).To(BeFalse())

			m.WriteIO(addrTIMSK0, 0x01)
			v, ok := m.PendingInterrupt()
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(periph.VectorTimer0Ovf))
		})

		It("should clear the flag on acknowledge", func() {
			m.WriteIO(addrTIMSK0, 0x01)
			m.AcknowledgeInterrupt(periph.VectorTimer0Ovf)

			Expect(m.ReadIO(addrTIFR0) & 0x01).To(BeZero())
			_, ok := m.PendingInterrupt()
			Expect(ok).To(BeFalse())
		})

		It("should clear flags written with one", func() {
			m.WriteIO(addrTIFR0, 0x01)
			Expect(m.ReadIO(addrTIFR0) & 0x01).To(BeZero())

			m.Tick(256)
			m.WriteIOBit(addrTIFR0, 0, true)
			Expect(m.ReadIO(addrTIFR0) & 0x01).To(BeZero())
		})

		It("should prefer the lower vector number", func() {
			m.WriteIO(addrTIMSK0, 0x01)
			m.WriteIO(addrTIMSK2, 0x01)
			m.WriteIO(addrTCCR2B, 0x01)
			m.Tick(256)

			v, ok := m.PendingInterrupt()
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(periph.VectorTimer2Ovf))
		})
	})

	Describe("PWM", func() {
		It("should report fast PWM like analogWrite on pin 6", func() {
			m.WriteIO(addrTCCR0A, 0x83)
			m.WriteIO(addrTCCR0B, 0x03)
			m.WriteIO(addrOCR0A, 128)

			pwm := host.pwm[6]
			Expect(pwm.DutyCycle).To(BeNumerically("~", 129.0/256.0, 1e-9))
			Expect(pwm.Period).To(Equal(1024 * time.Microsecond))
			Expect(pwm.Active()).To(BeTrue())
		})

		It("should invert the duty cycle with COM=3", func() {
			m.WriteIO(addrTCCR0A, 0xC3)
			m.WriteIO(addrTCCR0B, 0x03)
			m.WriteIO(addrOCR0A, 63)

			Expect(host.pwm[6].DutyCycle).To(BeNumerically("~", 0.75, 1e-9))
		})

		It("should report phase-correct PWM on Timer1", func() {
			m.WriteIO(addrTCCR1A, 0x81)
			m.WriteIO(addrTCCR1B, 0x03)
			m.WriteIO(addrOCR1AH, 0x00)
			m.WriteIO(addrOCR1AL, 0x80)

			pwm := host.pwm[9]
			Expect(pwm.DutyCycle).To(BeNumerically("~", 128.0/255.0, 1e-9))
			Expect(pwm.Period).To(Equal(2040 * time.Microsecond))
		})

		It("should report only changes and switch off when disconnected", func() {
			m.WriteIO(addrTCCR0A, 0x83)
			m.WriteIO(addrTCCR0B, 0x03)
			m.WriteIO(addrOCR0A, 10)
			reports := host.pwmN

			m.WriteIO(addrOCR0A, 10)
			Expect(host.pwmN).To(Equal(reports))

			m.WriteIO(addrTCCR0A, 0x03)
			Expect(host.pwm[6]).To(Equal(periph.PWM{}))
			Expect(host.pwm[6].Active()).To(BeFalse())
		})
	})
})
