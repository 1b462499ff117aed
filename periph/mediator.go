// Package periph emulates the memory-mapped peripherals of the ATmega328P:
// the digital ports, Timer0/1/2, USART0, the ADC and the external interrupt
// pins. A Mediator turns I/O register accesses into peripheral behavior and
// reports pin activity to a host PinModel.
package periph

import (
	"github.com/sirupsen/logrus"
)

// DefaultClockHz is the Arduino Uno system clock.
const DefaultClockHz = 16_000_000

// ioRegister is one address in the I/O window.
type ioRegister struct {
	read  func() uint8
	write func(v uint8)
	// writeBit handles SBI/CBI. When nil a read-modify-write is used.
	writeBit func(bit uint8, set bool)
}

// Mediator routes I/O register accesses to peripherals. It implements the
// emulator's IOBus. Addresses that no peripheral claims behave as plain
// storage.
type Mediator struct {
	host    *hostLink
	clockHz uint64

	regs    [0x100]*ioRegister
	scratch [0x100]uint8

	portB, portC, portD *Port
	timer0, timer1      *Timer
	timer2              *Timer
	usart               *USART
	adc                 *ADC
	extInt              *ExtInt

	sources []interruptSource
}

// MediatorOption is a functional option for configuring the Mediator.
type MediatorOption func(*Mediator)

// WithHost attaches the host pin model.
func WithHost(model PinModel) MediatorOption {
	return func(m *Mediator) {
		m.host.model = model
	}
}

// WithLogger sets the logger used for host callback failures.
func WithLogger(logger logrus.FieldLogger) MediatorOption {
	return func(m *Mediator) {
		m.host.logger = logger
	}
}

// WithClock sets the system clock used to convert timer settings into PWM
// periods.
func WithClock(hz uint64) MediatorOption {
	return func(m *Mediator) {
		m.clockHz = hz
	}
}

// NewMediator creates the ATmega328P peripheral set.
func NewMediator(opts ...MediatorOption) *Mediator {
	m := &Mediator{
		host: &hostLink{
			model:  NopPinModel{},
			logger: logrus.StandardLogger(),
		},
		clockHz: DefaultClockHz,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.portB = newPort(m, 'B', 0x23, 8, 6)
	m.portC = newPort(m, 'C', 0x26, 14, 6)
	m.portD = newPort(m, 'D', 0x29, 0, 8)
	m.timer0 = newTimer(m, timer0Config)
	m.timer1 = newTimer(m, timer1Config)
	m.timer2 = newTimer(m, timer2Config)
	m.usart = newUSART(m)
	m.adc = newADC(m)
	m.extInt = newExtInt(m)

	// Ordered by their lowest vector so the first pending source wins.
	m.sources = []interruptSource{
		m.extInt, m.timer2, m.timer1, m.timer0, m.usart, m.adc,
	}

	return m
}

func (m *Mediator) attach(addr uint16, reg *ioRegister) {
	m.regs[uint8(addr)] = reg
}

// ReadIO reads the I/O register at data address addr.
func (m *Mediator) ReadIO(addr uint16) uint8 {
	if reg := m.regs[uint8(addr)]; reg != nil {
		return reg.read()
	}
	return m.scratch[uint8(addr)]
}

// WriteIO writes the I/O register at data address addr.
func (m *Mediator) WriteIO(addr uint16, v uint8) {
	if reg := m.regs[uint8(addr)]; reg != nil {
		reg.write(v)
		return
	}
	m.scratch[uint8(addr)] = v
}

// WriteIOBit sets or clears one bit of the register at addr.
func (m *Mediator) WriteIOBit(addr uint16, bit uint8, set bool) {
	reg := m.regs[uint8(addr)]
	if reg != nil && reg.writeBit != nil {
		reg.writeBit(bit, set)
		return
	}

	v := m.ReadIO(addr)
	if set {
		v |= 1 << bit
	} else {
		v &^= 1 << bit
	}
	m.WriteIO(addr, v)
}

// Tick advances the peripherals by the given number of CPU cycles.
func (m *Mediator) Tick(cycles uint64) {
	m.timer0.tick(cycles)
	m.timer1.tick(cycles)
	m.timer2.tick(cycles)
	m.usart.tick()
	m.extInt.poll()
}

// PendingInterrupt returns the highest-priority enabled interrupt that is
// waiting for service.
func (m *Mediator) PendingInterrupt() (Vector, bool) {
	best, found := Vector(0), false
	for _, src := range m.sources {
		if v, ok := src.pending(); ok && (!found || v < best) {
			best, found = v, true
		}
	}
	return best, found
}

// AcknowledgeInterrupt clears the flag of a vector whose handler the CPU is
// entering, as the hardware does on interrupt entry.
func (m *Mediator) AcknowledgeInterrupt(v Vector) {
	for _, src := range m.sources {
		if src.acknowledge(v) {
			return
		}
	}
}

// SendSerial queues bytes for the sketch to receive on USART0.
func (m *Mediator) SendSerial(data []byte) {
	m.usart.receive(data)
}

// Port returns port 'B', 'C' or 'D'.
func (m *Mediator) Port(name byte) *Port {
	switch name {
	case 'B':
		return m.portB
	case 'C':
		return m.portC
	case 'D':
		return m.portD
	default:
		return nil
	}
}

// Timer returns Timer0, Timer1 or Timer2.
func (m *Mediator) Timer(n int) *Timer {
	switch n {
	case 0:
		return m.timer0
	case 1:
		return m.timer1
	case 2:
		return m.timer2
	default:
		return nil
	}
}

// USART returns USART0.
func (m *Mediator) USART() *USART {
	return m.usart
}

// Reset returns every peripheral register to its power-on value. No host
// events are reported.
func (m *Mediator) Reset() {
	m.scratch = [0x100]uint8{}
	m.portB.reset()
	m.portC.reset()
	m.portD.reset()
	m.timer0.reset()
	m.timer1.reset()
	m.timer2.reset()
	m.usart.reset()
	m.adc.reset()
	m.extInt.reset()
}

// pinPort resolves an Arduino pin number to its port and bit.
func (m *Mediator) pinPort(pin int) (*Port, uint8) {
	for _, p := range []*Port{m.portD, m.portB, m.portC} {
		if pin >= p.firstPin && pin < p.firstPin+p.width {
			return p, uint8(pin - p.firstPin)
		}
	}
	return nil, 0
}
