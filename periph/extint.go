package periph

const (
	addrEIFR  = 0x3C
	addrEIMSK = 0x3D
	addrEICRA = 0x69
)

// Sense control values of EICRA.
const (
	senseLow = iota
	senseChange
	senseFalling
	senseRising
)

// ExtInt is the external interrupt unit for INT0 (D2) and INT1 (D3). Pins
// are sampled once per Tick while their interrupt is enabled.
type ExtInt struct {
	m *Mediator

	eicra, eimsk, eifr uint8

	sampled [2]bool
	last    [2]bool
	low     [2]bool
}

var extIntPins = [2]int{2, 3}

func newExtInt(m *Mediator) *ExtInt {
	x := &ExtInt{m: m}

	m.attach(addrEICRA, &ioRegister{
		read:  func() uint8 { return x.eicra },
		write: func(v uint8) { x.eicra = v & 0x0F },
	})
	m.attach(addrEIMSK, &ioRegister{
		read: func() uint8 { return x.eimsk },
		write: func(v uint8) {
			x.eimsk = v & 0x03
			x.sampled = [2]bool{}
		},
	})
	m.attach(addrEIFR, &ioRegister{
		read:  func() uint8 { return x.eifr },
		write: func(v uint8) { x.eifr &^= v },
		writeBit: func(bit uint8, set bool) {
			if set {
				x.eifr &^= 1 << bit
			}
		},
	})

	return x
}

func (x *ExtInt) sense(n int) uint8 {
	return x.eicra >> (2 * n) & 0x03
}

// poll samples the enabled pins and latches edge flags.
func (x *ExtInt) poll() {
	for n := 0; n < 2; n++ {
		if x.eimsk&(1<<n) == 0 {
			continue
		}

		port, bit := x.m.pinPort(extIntPins[n])
		level := port.level(bit)
		x.low[n] = !level

		if !x.sampled[n] {
			x.sampled[n] = true
			x.last[n] = level
			continue
		}

		prev := x.last[n]
		x.last[n] = level
		if prev == level {
			continue
		}

		switch x.sense(n) {
		case senseChange:
			x.eifr |= 1 << n
		case senseFalling:
			if !level {
				x.eifr |= 1 << n
			}
		case senseRising:
			if level {
				x.eifr |= 1 << n
			}
		}
	}
}

func (x *ExtInt) pending() (Vector, bool) {
	for n := 0; n < 2; n++ {
		if x.eimsk&(1<<n) == 0 {
			continue
		}
		if x.eifr&(1<<n) != 0 || (x.sense(n) == senseLow && x.low[n]) {
			return VectorInt0 + Vector(n), true
		}
	}
	return 0, false
}

func (x *ExtInt) acknowledge(v Vector) bool {
	if v != VectorInt0 && v != VectorInt1 {
		return false
	}
	x.eifr &^= 1 << (v - VectorInt0)
	return true
}

func (x *ExtInt) reset() {
	*x = ExtInt{m: x.m}
}
