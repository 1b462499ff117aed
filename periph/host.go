package periph

import (
	"time"

	"github.com/sirupsen/logrus"
)

// PWM describes the waveform on a timer output-compare pin. The zero value
// means the pin is not driven by a timer.
type PWM struct {
	// DutyCycle is the fraction of the period the pin is high, 0 to 1.
	DutyCycle float64
	// Period is the length of one PWM cycle in virtual time.
	Period time.Duration
}

// Active reports whether a timer is driving the pin.
func (p PWM) Active() bool {
	return p.Period != 0
}

// PinModel is the host side of the pin interface. Pin numbers are Arduino
// digital pin numbers (D0-D19, with A0-A5 as D14-D19). Analog channels are
// ADC multiplexer inputs 0-7.
type PinModel interface {
	// OnDigitalPinChange is called once per change of a driven output level.
	OnDigitalPinChange(pin int, level bool)

	// OnPwmChange is called when the PWM waveform on a pin changes.
	OnPwmChange(pin int, pwm PWM)

	// OnSerialByte is called for every byte transmitted by USART0.
	OnSerialByte(b byte)

	// ReadDigitalPin returns the externally driven level of an input pin.
	ReadDigitalPin(pin int) bool

	// ReadAnalogPin returns a 10-bit ADC reading for a channel.
	ReadAnalogPin(channel int) uint16
}

// NopPinModel is a PinModel with nothing attached: inputs read low and
// events are dropped.
type NopPinModel struct{}

// OnDigitalPinChange does nothing.
func (NopPinModel) OnDigitalPinChange(int, bool) {}

// OnPwmChange does nothing.
func (NopPinModel) OnPwmChange(int, PWM) {}

// OnSerialByte does nothing.
func (NopPinModel) OnSerialByte(byte) {}

// ReadDigitalPin returns false.
func (NopPinModel) ReadDigitalPin(int) bool { return false }

// ReadAnalogPin returns 0.
func (NopPinModel) ReadAnalogPin(int) uint16 { return 0 }

// hostLink calls into the PinModel. A panicking callback is logged and
// swallowed here so it never unwinds into instruction execution.
type hostLink struct {
	model  PinModel
	logger logrus.FieldLogger
}

func (h *hostLink) guard(callback string, pin int) {
	if r := recover(); r != nil {
		h.logger.WithFields(logrus.Fields{
			"callback": callback,
			"pin":      pin,
			"panic":    r,
		}).Warn("host callback failed")
	}
}

func (h *hostLink) digitalPinChange(pin int, level bool) {
	defer h.guard("OnDigitalPinChange", pin)
	h.model.OnDigitalPinChange(pin, level)
}

func (h *hostLink) pwmChange(pin int, pwm PWM) {
	defer h.guard("OnPwmChange", pin)
	h.model.OnPwmChange(pin, pwm)
}

func (h *hostLink) serialByte(b byte) {
	defer h.guard("OnSerialByte", -1)
	h.model.OnSerialByte(b)
}

func (h *hostLink) readDigitalPin(pin int) (level bool) {
	defer h.guard("ReadDigitalPin", pin)
	return h.model.ReadDigitalPin(pin)
}

func (h *hostLink) readAnalogPin(channel int) (v uint16) {
	defer h.guard("ReadAnalogPin", channel)
	return h.model.ReadAnalogPin(channel)
}
