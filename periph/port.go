package periph

// Port is one of the digital I/O ports. Each port owns three registers:
// PINx (input levels, write 1 to toggle PORTx), DDRx (direction, 1 = output)
// and PORTx (output latch, or pull-up enable for inputs).
type Port struct {
	m        *Mediator
	name     byte
	pinAddr  uint16
	firstPin int
	width    int

	ddr    uint8
	port   uint8
	levels uint8 // driven levels last reported to the host
}

func newPort(m *Mediator, name byte, pinAddr uint16, firstPin, width int) *Port {
	p := &Port{
		m:        m,
		name:     name,
		pinAddr:  pinAddr,
		firstPin: firstPin,
		width:    width,
	}

	m.attach(pinAddr, &ioRegister{
		read:     p.readPin,
		write:    p.toggle,
		writeBit: p.toggleBit,
	})
	m.attach(pinAddr+1, &ioRegister{
		read:  func() uint8 { return p.ddr },
		write: p.writeDDR,
	})
	m.attach(pinAddr+2, &ioRegister{
		read:  func() uint8 { return p.port },
		write: p.writePort,
	})

	return p
}

// Name returns the port letter.
func (p *Port) Name() byte {
	return p.name
}

// DDR returns the data direction register.
func (p *Port) DDR() uint8 {
	return p.ddr
}

// Latch returns the PORTx output latch.
func (p *Port) Latch() uint8 {
	return p.port
}

// Pin returns the Arduino pin number of a port bit.
func (p *Port) Pin(bit uint8) int {
	return p.firstPin + int(bit)
}

func (p *Port) mask() uint8 {
	return uint8(1<<p.width - 1)
}

// level returns the level seen on one bit: the latch for outputs, the host
// for inputs.
func (p *Port) level(bit uint8) bool {
	if p.ddr&(1<<bit) != 0 {
		return p.port&(1<<bit) != 0
	}
	return p.m.host.readDigitalPin(p.Pin(bit))
}

func (p *Port) readPin() uint8 {
	var v uint8
	for bit := uint8(0); int(bit) < p.width; bit++ {
		if p.level(bit) {
			v |= 1 << bit
		}
	}
	return v
}

func (p *Port) toggle(v uint8) {
	p.writePort(p.port ^ v)
}

func (p *Port) toggleBit(bit uint8, set bool) {
	if set {
		p.writePort(p.port ^ 1<<bit)
	}
}

func (p *Port) writeDDR(v uint8) {
	p.ddr = v
	p.update()
}

func (p *Port) writePort(v uint8) {
	p.port = v
	p.update()
}

// update reports every output bit whose driven level changed.
func (p *Port) update() {
	levels := (p.levels &^ p.ddr) | (p.port & p.ddr)
	changed := (levels ^ p.levels) & p.mask()
	p.levels = levels

	for bit := uint8(0); int(bit) < p.width; bit++ {
		if changed&(1<<bit) != 0 {
			p.m.host.digitalPinChange(p.Pin(bit), levels&(1<<bit) != 0)
		}
	}
}

func (p *Port) reset() {
	p.ddr, p.port, p.levels = 0, 0, 0
}
