package periph

// ADC register addresses and bits.
const (
	addrADCL   = 0x78
	addrADCH   = 0x79
	addrADCSRA = 0x7A
	addrADCSRB = 0x7B
	addrADMUX  = 0x7C

	bitADEN  = 7
	bitADSC  = 6
	bitADIF  = 4
	bitADIE  = 3
	bitADLAR = 5
)

// bandgapReading is the conversion result of the 1.1 V reference channel
// against a 5 V AVcc.
const bandgapReading = 225

// ADC is the analog-to-digital converter. A conversion completes as soon as
// ADSC is set.
type ADC struct {
	m *Mediator

	admux, adcsra, adcsrb uint8
	result                uint16
}

func newADC(m *Mediator) *ADC {
	a := &ADC{m: m}

	m.attach(addrADMUX, &ioRegister{
		read:  func() uint8 { return a.admux },
		write: func(v uint8) { a.admux = v },
	})
	m.attach(addrADCSRA, &ioRegister{
		read:  func() uint8 { return a.adcsra },
		write: a.writeControl,
	})
	m.attach(addrADCSRB, &ioRegister{
		read:  func() uint8 { return a.adcsrb },
		write: func(v uint8) { a.adcsrb = v },
	})
	m.attach(addrADCL, &ioRegister{
		read:  a.readLow,
		write: func(uint8) {},
	})
	m.attach(addrADCH, &ioRegister{
		read:  a.readHigh,
		write: func(uint8) {},
	})

	return a
}

func (a *ADC) writeControl(v uint8) {
	flag := a.adcsra & (1 << bitADIF)
	if v&(1<<bitADIF) != 0 {
		flag = 0
	}
	a.adcsra = v&^(1<<bitADIF) | flag

	if a.adcsra&(1<<bitADEN) != 0 && a.adcsra&(1<<bitADSC) != 0 {
		a.convert()
	}
}

func (a *ADC) convert() {
	channel := int(a.admux & 0x0F)

	var v uint16
	switch {
	case channel < 8:
		v = a.m.host.readAnalogPin(channel)
	case channel == 14:
		v = bandgapReading
	}
	if v > 0x3FF {
		v = 0x3FF
	}

	a.result = v
	a.adcsra &^= 1 << bitADSC
	a.adcsra |= 1 << bitADIF
}

func (a *ADC) leftAdjusted() bool {
	return a.admux&(1<<bitADLAR) != 0
}

func (a *ADC) readLow() uint8 {
	if a.leftAdjusted() {
		return uint8(a.result << 6)
	}
	return uint8(a.result)
}

func (a *ADC) readHigh() uint8 {
	if a.leftAdjusted() {
		return uint8(a.result >> 2)
	}
	return uint8(a.result >> 8)
}

func (a *ADC) pending() (Vector, bool) {
	if a.adcsra&(1<<bitADIF) != 0 && a.adcsra&(1<<bitADIE) != 0 {
		return VectorADC, true
	}
	return 0, false
}

func (a *ADC) acknowledge(v Vector) bool {
	if v != VectorADC {
		return false
	}
	a.adcsra &^= 1 << bitADIF
	return true
}

func (a *ADC) reset() {
	a.admux, a.adcsra, a.adcsrb, a.result = 0, 0, 0, 0
}
