// Package stimulus models the host side of the pins: scripted sensor inputs
// and a recorder for everything the sketch drives.
package stimulus

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxSteps bounds a single input callback.
const maxSteps = 1_000_000

// Script answers pin reads by calling Starlark functions. A script may
// define
//
//	def digital(pin, millis): ...  # returns a truth value
//	def analog(channel, millis): ... # returns an int, clamped to 0..1023
//
// Missing functions read as LOW and 0.
type Script struct {
	name    string
	digital starlark.Callable
	analog  starlark.Callable
	clock   func() uint64
	logger  logrus.FieldLogger
}

// ScriptOption is a functional option for configuring a Script.
type ScriptOption func(*Script)

// WithScriptLogger sets the logger for script output and errors.
func WithScriptLogger(logger logrus.FieldLogger) ScriptOption {
	return func(s *Script) {
		s.logger = logger
	}
}

// LoadScript executes a Starlark source and collects its input functions.
// src may be a filename (when nil), a string or a []byte, as accepted by
// starlark.ExecFileOptions.
func LoadScript(filename string, src any, opts ...ScriptOption) (*Script, error) {
	s := &Script{
		name:   filename,
		clock:  func() uint64 { return 0 },
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	predeclared := starlark.StringDict{
		"HIGH": starlark.True,
		"LOW":  starlark.False,
	}

	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{},
		s.thread(), filename, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("failed to load stimulus script: %w", err)
	}

	if s.digital, err = callable(globals, "digital"); err != nil {
		return nil, err
	}
	if s.analog, err = callable(globals, "analog"); err != nil {
		return nil, err
	}

	return s, nil
}

func callable(globals starlark.StringDict, name string) (starlark.Callable, error) {
	v, ok := globals[name]
	if !ok {
		return nil, nil
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("stimulus script: %s is a %s, not a function", name, v.Type())
	}
	return fn, nil
}

func (s *Script) thread() *starlark.Thread {
	thread := &starlark.Thread{
		Name: s.name,
		Print: func(_ *starlark.Thread, msg string) {
			s.logger.WithField("script", s.name).Info(msg)
		},
	}
	thread.SetMaxExecutionSteps(maxSteps)
	return thread
}

// Bind sets the virtual millisecond clock passed to the script functions.
func (s *Script) Bind(millis func() uint64) {
	s.clock = millis
}

func (s *Script) call(fn starlark.Callable, n int) (starlark.Value, bool) {
	args := starlark.Tuple{starlark.MakeInt(n), starlark.MakeUint64(s.clock())}

	v, err := starlark.Call(s.thread(), fn, args, nil)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"script":   s.name,
			"function": fn.Name(),
			"arg":      n,
		}).WithError(err).Warn("stimulus callback failed")
		return nil, false
	}

	return v, true
}

// ReadDigitalPin returns the scripted level of an input pin.
func (s *Script) ReadDigitalPin(pin int) bool {
	if s.digital == nil {
		return false
	}
	v, ok := s.call(s.digital, pin)
	return ok && bool(v.Truth())
}

// ReadAnalogPin returns the scripted ADC reading of a channel.
func (s *Script) ReadAnalogPin(channel int) uint16 {
	if s.analog == nil {
		return 0
	}
	v, ok := s.call(s.analog, channel)
	if !ok {
		return 0
	}

	n, err := starlark.AsInt32(v)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"script":  s.name,
			"channel": channel,
		}).WithError(err).Warn("analog() must return an int")
		return 0
	}

	switch {
	case n < 0:
		return 0
	case n > 0x3FF:
		return 0x3FF
	default:
		return uint16(n)
	}
}
