package periph

// USART0 register addresses and bits.
const (
	addrUCSR0A = 0xC0
	addrUCSR0B = 0xC1
	addrUCSR0C = 0xC2
	addrUBRR0L = 0xC4
	addrUBRR0H = 0xC5
	addrUDR0   = 0xC6

	bitRXC0  = 7
	bitTXC0  = 6
	bitUDRE0 = 5
	bitU2X0  = 1

	bitRXCIE0 = 7
	bitTXCIE0 = 6
	bitUDRIE0 = 5
)

// USART is USART0. Transmission is instantaneous: UDR0 is always empty and
// TXC0 is set on the tick after a byte is written.
type USART struct {
	m *Mediator

	ucsrA, ucsrB, ucsrC uint8
	ubrr                uint16

	txPending bool
	rx        []byte
}

func newUSART(m *Mediator) *USART {
	u := &USART{m: m}
	u.reset()

	m.attach(addrUCSR0A, &ioRegister{
		read: u.readStatus,
		write: func(v uint8) {
			if v&(1<<bitTXC0) != 0 {
				u.ucsrA &^= 1 << bitTXC0
			}
			u.ucsrA = u.ucsrA&^0x03 | v&0x03
		},
	})
	m.attach(addrUCSR0B, &ioRegister{
		read:  func() uint8 { return u.ucsrB },
		write: func(v uint8) { u.ucsrB = v },
	})
	m.attach(addrUCSR0C, &ioRegister{
		read:  func() uint8 { return u.ucsrC },
		write: func(v uint8) { u.ucsrC = v },
	})
	m.attach(addrUBRR0L, &ioRegister{
		read:  func() uint8 { return uint8(u.ubrr) },
		write: func(v uint8) { u.ubrr = u.ubrr&0x0F00 | uint16(v) },
	})
	m.attach(addrUBRR0H, &ioRegister{
		read:  func() uint8 { return uint8(u.ubrr >> 8) },
		write: func(v uint8) { u.ubrr = u.ubrr&0x00FF | uint16(v&0x0F)<<8 },
	})
	m.attach(addrUDR0, &ioRegister{
		read:  u.readData,
		write: u.transmit,
	})

	return u
}

func (u *USART) readStatus() uint8 {
	v := u.ucsrA | 1<<bitUDRE0
	if len(u.rx) > 0 {
		v |= 1 << bitRXC0
	}
	return v
}

func (u *USART) readData() uint8 {
	if len(u.rx) == 0 {
		return 0
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	return b
}

func (u *USART) transmit(v uint8) {
	u.m.host.serialByte(v)
	u.txPending = true
}

func (u *USART) receive(data []byte) {
	u.rx = append(u.rx, data...)
}

func (u *USART) tick() {
	if u.txPending {
		u.txPending = false
		u.ucsrA |= 1 << bitTXC0
	}
}

// BaudRate returns the configured baud rate at the mediator clock.
func (u *USART) BaudRate() uint64 {
	divisor := uint64(16)
	if u.ucsrA&(1<<bitU2X0) != 0 {
		divisor = 8
	}
	return u.m.clockHz / (divisor * (uint64(u.ubrr) + 1))
}

func (u *USART) pending() (Vector, bool) {
	switch {
	case len(u.rx) > 0 && u.ucsrB&(1<<bitRXCIE0) != 0:
		return VectorUSARTRX, true
	case u.ucsrB&(1<<bitUDRIE0) != 0:
		return VectorUSARTUDRE, true
	case u.ucsrA&(1<<bitTXC0) != 0 && u.ucsrB&(1<<bitTXCIE0) != 0:
		return VectorUSARTTX, true
	default:
		return 0, false
	}
}

func (u *USART) acknowledge(v Vector) bool {
	switch v {
	case VectorUSARTTX:
		u.ucsrA &^= 1 << bitTXC0
	case VectorUSARTRX, VectorUSARTUDRE:
		// Level triggered: cleared by reading UDR0 or disabling UDRIE0.
	default:
		return false
	}
	return true
}

func (u *USART) reset() {
	u.ucsrA, u.ucsrB, u.ucsrC = 0, 0, 0x06
	u.ubrr = 0
	u.txPending = false
	u.rx = nil
}
