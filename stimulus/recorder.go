package stimulus

import (
	"fmt"

	"github.com/sarchlab/avrsim/periph"
)

// Inputs answers pin reads.
type Inputs interface {
	ReadDigitalPin(pin int) bool
	ReadAnalogPin(channel int) uint16
}

// EventKind identifies what a recorded event reports.
type EventKind uint8

const (
	EventDigital EventKind = iota
	EventPWM
	EventSerial
)

// Event is one output change with the virtual time it happened at.
type Event struct {
	Kind   EventKind
	Micros uint64
	Pin    int
	Level  bool
	PWM    periph.PWM
	Byte   byte
}

func (e Event) String() string {
	switch e.Kind {
	case EventDigital:
		level := "LOW"
		if e.Level {
			level = "HIGH"
		}
		return fmt.Sprintf("%10dus  D%-2d %s", e.Micros, e.Pin, level)
	case EventPWM:
		if !e.PWM.Active() {
			return fmt.Sprintf("%10dus  D%-2d pwm off", e.Micros, e.Pin)
		}
		return fmt.Sprintf("%10dus  D%-2d pwm %.1f%% @ %v",
			e.Micros, e.Pin, e.PWM.DutyCycle*100, e.PWM.Period)
	case EventSerial:
		return fmt.Sprintf("%10dus  TX  0x%02x %q", e.Micros, e.Byte, rune(e.Byte))
	default:
		return fmt.Sprintf("%10dus  event(%d)", e.Micros, e.Kind)
	}
}

// Recorder is a periph.PinModel that records every output event and
// forwards reads to its inputs.
type Recorder struct {
	inputs Inputs
	clock  func() uint64
	events []Event
	serial []byte
}

// NewRecorder creates a recorder. A nil inputs reads every pin as LOW/0.
func NewRecorder(inputs Inputs) *Recorder {
	if inputs == nil {
		inputs = periph.NopPinModel{}
	}
	return &Recorder{
		inputs: inputs,
		clock:  func() uint64 { return 0 },
	}
}

// Bind sets the virtual microsecond clock used to timestamp events.
func (r *Recorder) Bind(micros func() uint64) {
	r.clock = micros
}

// Events returns the recorded events in order.
func (r *Recorder) Events() []Event {
	return r.events
}

// Serial returns every byte the sketch transmitted.
func (r *Recorder) Serial() []byte {
	return r.serial
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.events = nil
	r.serial = nil
}

// OnDigitalPinChange implements periph.PinModel.
func (r *Recorder) OnDigitalPinChange(pin int, level bool) {
	r.events = append(r.events, Event{
		Kind: EventDigital, Micros: r.clock(), Pin: pin, Level: level,
	})
}

// OnPwmChange implements periph.PinModel.
func (r *Recorder) OnPwmChange(pin int, pwm periph.PWM) {
	r.events = append(r.events, Event{
		Kind: EventPWM, Micros: r.clock(), Pin: pin, PWM: pwm,
	})
}

// OnSerialByte implements periph.PinModel.
func (r *Recorder) OnSerialByte(b byte) {
	r.serial = append(r.serial, b)
	r.events = append(r.events, Event{
		Kind: EventSerial, Micros: r.clock(), Byte: b,
	})
}

// ReadDigitalPin implements periph.PinModel.
func (r *Recorder) ReadDigitalPin(pin int) bool {
	return r.inputs.ReadDigitalPin(pin)
}

// ReadAnalogPin implements periph.PinModel.
func (r *Recorder) ReadAnalogPin(channel int) uint16 {
	return r.inputs.ReadAnalogPin(channel)
}
