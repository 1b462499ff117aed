package periph

import "time"

// Waveform generation modes.
type waveMode uint8

const (
	modeNormal waveMode = iota
	modeCTC
	modeFastPWM
	modePhaseCorrect
)

// topSource says where a waveform mode takes its TOP value from.
type topSource uint8

const (
	topFixed topSource = iota
	topOCRA
	topICR
)

type waveform struct {
	mode  waveMode
	top   topSource
	fixed uint16
}

// TIFR/TIMSK bits.
const (
	bitTOV  = 0
	bitOCFA = 1
	bitOCFB = 2
	bitICF  = 5
)

var waveforms8 = [16]waveform{
	{modeNormal, topFixed, 0xFF},
	{modePhaseCorrect, topFixed, 0xFF},
	{modeCTC, topOCRA, 0},
	{modeFastPWM, topFixed, 0xFF},
	{modeNormal, topFixed, 0xFF}, // reserved
	{modePhaseCorrect, topOCRA, 0},
	{modeNormal, topFixed, 0xFF}, // reserved
	{modeFastPWM, topOCRA, 0},
}

var waveforms16 = [16]waveform{
	{modeNormal, topFixed, 0xFFFF},
	{modePhaseCorrect, topFixed, 0x00FF},
	{modePhaseCorrect, topFixed, 0x01FF},
	{modePhaseCorrect, topFixed, 0x03FF},
	{modeCTC, topOCRA, 0},
	{modeFastPWM, topFixed, 0x00FF},
	{modeFastPWM, topFixed, 0x01FF},
	{modeFastPWM, topFixed, 0x03FF},
	{modePhaseCorrect, topICR, 0}, // phase and frequency correct
	{modePhaseCorrect, topOCRA, 0}, // phase and frequency correct
	{modePhaseCorrect, topICR, 0},
	{modePhaseCorrect, topOCRA, 0},
	{modeCTC, topICR, 0},
	{modeNormal, topFixed, 0xFFFF}, // reserved
	{modeFastPWM, topICR, 0},
	{modeFastPWM, topOCRA, 0},
}

type timerConfig struct {
	name       string
	wide       bool
	prescalers [8]uint64 // by clock-select value; 0 means stopped

	tccrA, tccrB, tccrC uint16
	tcnt, ocrA, ocrB    uint16
	icr                 uint16
	timsk, tifr         uint16

	pinA, pinB int

	ovf, compA, compB, capt Vector
}

var timer0Config = timerConfig{
	name:       "Timer0",
	prescalers: [8]uint64{0, 1, 8, 64, 256, 1024, 0, 0},
	tccrA:      0x44, tccrB: 0x45,
	tcnt: 0x46, ocrA: 0x47, ocrB: 0x48,
	timsk: 0x6E, tifr: 0x35,
	pinA: 6, pinB: 5,
	ovf: VectorTimer0Ovf, compA: VectorTimer0CompA, compB: VectorTimer0CompB,
}

var timer1Config = timerConfig{
	name:       "Timer1",
	wide:       true,
	prescalers: [8]uint64{0, 1, 8, 64, 256, 1024, 0, 0},
	tccrA:      0x80, tccrB: 0x81, tccrC: 0x82,
	tcnt: 0x84, icr: 0x86, ocrA: 0x88, ocrB: 0x8A,
	timsk: 0x6F, tifr: 0x36,
	pinA: 9, pinB: 10,
	ovf: VectorTimer1Ovf, compA: VectorTimer1CompA, compB: VectorTimer1CompB,
	capt: VectorTimer1Capt,
}

var timer2Config = timerConfig{
	name:       "Timer2",
	prescalers: [8]uint64{0, 1, 8, 32, 64, 128, 256, 1024},
	tccrA:      0xB0, tccrB: 0xB1,
	tcnt: 0xB2, ocrA: 0xB3, ocrB: 0xB4,
	timsk: 0x70, tifr: 0x37,
	pinA: 11, pinB: 3,
	ovf: VectorTimer2Ovf, compA: VectorTimer2CompA, compB: VectorTimer2CompB,
}

// Timer is a timer/counter with two output-compare channels. Timer0 and
// Timer2 are 8 bits wide; Timer1 is 16 bits wide and accesses its 16-bit
// registers through the shared TEMP byte like the hardware does.
type Timer struct {
	m   *Mediator
	cfg timerConfig

	tccrA, tccrB uint8
	tcnt         uint16
	ocrA, ocrB   uint16
	icr          uint16
	timsk, tifr  uint8
	temp         uint8

	prescaleCount uint64
	countingDown  bool

	pwmA, pwmB PWM
}

func newTimer(m *Mediator, cfg timerConfig) *Timer {
	t := &Timer{m: m, cfg: cfg}

	m.attach(cfg.tccrA, &ioRegister{
		read:  func() uint8 { return t.tccrA },
		write: func(v uint8) { t.tccrA = v; t.updatePWM() },
	})
	m.attach(cfg.tccrB, &ioRegister{
		read: func() uint8 { return t.tccrB },
		write: func(v uint8) {
			if !cfg.wide {
				v &= 0x3F // FOC strobes read as zero
			}
			t.tccrB = v
			t.updatePWM()
		},
	})
	if cfg.tccrC != 0 {
		m.attach(cfg.tccrC, &ioRegister{
			read:  func() uint8 { return 0 },
			write: func(uint8) {},
		})
	}
	m.attach(cfg.timsk, &ioRegister{
		read:  func() uint8 { return t.timsk },
		write: func(v uint8) { t.timsk = v },
	})
	m.attach(cfg.tifr, &ioRegister{
		read:  func() uint8 { return t.tifr },
		write: func(v uint8) { t.tifr &^= v },
		writeBit: func(bit uint8, set bool) {
			if set {
				t.tifr &^= 1 << bit
			}
		},
	})

	t.attachValue(cfg.tcnt, func() uint16 { return t.tcnt }, func(v uint16) { t.tcnt = v })
	t.attachValue(cfg.ocrA, func() uint16 { return t.ocrA }, func(v uint16) { t.ocrA = v; t.updatePWM() })
	t.attachValue(cfg.ocrB, func() uint16 { return t.ocrB }, func(v uint16) { t.ocrB = v; t.updatePWM() })
	if cfg.wide {
		t.attachValue(cfg.icr, func() uint16 { return t.icr }, func(v uint16) { t.icr = v; t.updatePWM() })
	}

	return t
}

// attachValue maps a counter or compare register. Wide registers are split
// into low and high bytes: reading low latches high into TEMP, writing high
// only fills TEMP and writing low commits both bytes.
func (t *Timer) attachValue(addr uint16, get func() uint16, set func(uint16)) {
	if !t.cfg.wide {
		t.m.attach(addr, &ioRegister{
			read:  func() uint8 { return uint8(get()) },
			write: func(v uint8) { set(uint16(v)) },
		})
		return
	}

	t.m.attach(addr, &ioRegister{
		read: func() uint8 {
			v := get()
			t.temp = uint8(v >> 8)
			return uint8(v)
		},
		write: func(v uint8) { set(uint16(t.temp)<<8 | uint16(v)) },
	})
	t.m.attach(addr+1, &ioRegister{
		read:  func() uint8 { return t.temp },
		write: func(v uint8) { t.temp = v },
	})
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.cfg.name
}

// Count returns the counter value.
func (t *Timer) Count() uint16 {
	return t.tcnt
}

// PWM returns the waveform last reported on channel A and B.
func (t *Timer) PWM() (a, b PWM) {
	return t.pwmA, t.pwmB
}

func (t *Timer) waveform() waveform {
	if t.cfg.wide {
		return waveforms16[(t.tccrB>>3&0x03)<<2|t.tccrA&0x03]
	}
	return waveforms8[(t.tccrB>>3&0x01)<<2|t.tccrA&0x03]
}

func (t *Timer) prescaler() uint64 {
	return t.cfg.prescalers[t.tccrB&0x07]
}

func (t *Timer) max() uint16 {
	if t.cfg.wide {
		return 0xFFFF
	}
	return 0xFF
}

func (t *Timer) top(w waveform) uint16 {
	switch w.top {
	case topOCRA:
		return t.ocrA
	case topICR:
		return t.icr
	default:
		return w.fixed
	}
}

func (t *Timer) tick(cycles uint64) {
	prescale := t.prescaler()
	if prescale == 0 {
		return
	}

	t.prescaleCount += cycles
	for t.prescaleCount >= prescale {
		t.prescaleCount -= prescale
		t.step()
	}
}

// step advances the counter by one timer clock.
func (t *Timer) step() {
	w := t.waveform()
	top := t.top(w)

	switch w.mode {
	case modePhaseCorrect:
		switch {
		case top == 0:
			t.tcnt = 0
			t.tifr |= 1 << bitTOV
		case t.countingDown:
			t.tcnt--
			if t.tcnt == 0 {
				t.countingDown = false
				t.tifr |= 1 << bitTOV
			}
		default:
			t.tcnt++
			if t.tcnt >= top {
				t.tcnt = top
				t.countingDown = true
			}
		}
	case modeCTC:
		if t.tcnt >= top {
			t.tcnt = 0
			if w.top == topICR {
				t.tifr |= 1 << bitICF
			}
		} else {
			t.tcnt++
		}
	default:
		limit := t.max()
		if w.mode == modeFastPWM {
			limit = top
		}
		if t.tcnt >= limit {
			t.tcnt = 0
			t.tifr |= 1 << bitTOV
		} else {
			t.tcnt++
		}
	}

	if t.tcnt == t.ocrA {
		t.tifr |= 1 << bitOCFA
	}
	if t.tcnt == t.ocrB {
		t.tifr |= 1 << bitOCFB
	}
}

// updatePWM recomputes both output-compare channels and reports changes.
func (t *Timer) updatePWM() {
	a := t.channelPWM(t.tccrA>>6, t.ocrA)
	b := t.channelPWM(t.tccrA>>4&0x03, t.ocrB)

	if a != t.pwmA {
		t.pwmA = a
		t.m.host.pwmChange(t.cfg.pinA, a)
	}
	if b != t.pwmB {
		t.pwmB = b
		t.m.host.pwmChange(t.cfg.pinB, b)
	}
}

// channelPWM computes the waveform of one channel from its COM bits and
// compare value. Only the non-inverting (2) and inverting (3) PWM outputs
// produce a waveform.
func (t *Timer) channelPWM(com uint8, ocr uint16) PWM {
	w := t.waveform()
	prescale := t.prescaler()
	if com < 2 || prescale == 0 || t.m.clockHz == 0 {
		return PWM{}
	}

	top := uint64(t.top(w))
	var duty float64
	var ticks uint64

	switch w.mode {
	case modeFastPWM:
		ticks = top + 1
		duty = float64(uint64(ocr)+1) / float64(top+1)
	case modePhaseCorrect:
		if top == 0 {
			return PWM{}
		}
		ticks = 2 * top
		duty = float64(ocr) / float64(top)
	default:
		return PWM{}
	}

	if duty > 1 {
		duty = 1
	}
	if com == 3 {
		duty = 1 - duty
	}

	return PWM{
		DutyCycle: duty,
		Period:    time.Duration(ticks * prescale * uint64(time.Second) / t.m.clockHz),
	}
}

func (t *Timer) pending() (Vector, bool) {
	active := t.tifr & t.timsk
	switch {
	case t.cfg.wide && active&(1<<bitICF) != 0:
		return t.cfg.capt, true
	case active&(1<<bitOCFA) != 0:
		return t.cfg.compA, true
	case active&(1<<bitOCFB) != 0:
		return t.cfg.compB, true
	case active&(1<<bitTOV) != 0:
		return t.cfg.ovf, true
	default:
		return 0, false
	}
}

func (t *Timer) acknowledge(v Vector) bool {
	switch {
	case t.cfg.wide && v == t.cfg.capt:
		t.tifr &^= 1 << bitICF
	case v == t.cfg.compA:
		t.tifr &^= 1 << bitOCFA
	case v == t.cfg.compB:
		t.tifr &^= 1 << bitOCFB
	case v == t.cfg.ovf:
		t.tifr &^= 1 << bitTOV
	default:
		return false
	}
	return true
}

func (t *Timer) reset() {
	m, cfg := t.m, t.cfg
	*t = Timer{m: m, cfg: cfg}
}
