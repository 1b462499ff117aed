// Package core provides the execution scheduler. A Core owns the emulator,
// the peripheral mediator and the cycle model, and drives them one
// instruction at a time under host control.
package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/loader"
	"github.com/sarchlab/avrsim/periph"
	"github.com/sarchlab/avrsim/predecode"
	"github.com/sarchlab/avrsim/timing/latency"
)

// ErrHalted is returned when running a core that has halted. Reset or Load
// returns it to Idle.
var ErrHalted = errors.New("core halted")

// State is the scheduler state.
type State uint8

const (
	// StateIdle means the core is loaded or reset but has not run yet.
	StateIdle State = iota
	// StateRunning means the core has started and may be stepped.
	StateRunning
	// StateHalted means the core stopped on a fault or a host request.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Fault is an unrecoverable execution error together with the address of the
// instruction that raised it.
type Fault struct {
	Err error
	PC  uint32
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at 0x%04x: %v", f.PC, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions executed.
	Instructions uint64
	// Interrupts is the number of interrupts dispatched.
	Interrupts uint64
	// Unknown is the number of unrecognized opcodes executed as NOP.
	Unknown uint64
	// PredecodeHits and PredecodeMisses count decoded-instruction cache
	// lookups.
	PredecodeHits   uint64
	PredecodeMisses uint64
}

type config struct {
	logger          logrus.FieldLogger
	host            periph.PinModel
	clockHz         uint64
	layout          emu.Layout
	timing          *latency.TimingConfig
	predecode       *predecode.Config
	maxInstructions uint64
}

// Option is a functional option for configuring the Core.
type Option func(*config)

// WithLogger sets the logger shared by the core, emulator and peripherals.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHost attaches the host pin model to the peripherals.
func WithHost(model periph.PinModel) Option {
	return func(c *config) {
		c.host = model
	}
}

// WithClock sets the system clock in Hz.
func WithClock(hz uint64) Option {
	return func(c *config) {
		c.clockHz = hz
	}
}

// WithLayout sets the chip memory layout.
func WithLayout(layout emu.Layout) Option {
	return func(c *config) {
		c.layout = layout
	}
}

// WithTimingConfig sets the instruction cycle costs.
func WithTimingConfig(timing *latency.TimingConfig) Option {
	return func(c *config) {
		c.timing = timing
	}
}

// WithPredecode sets the decoded-instruction cache geometry.
func WithPredecode(cfg predecode.Config) Option {
	return func(c *config) {
		c.predecode = &cfg
	}
}

// WithoutPredecode disables the decoded-instruction cache.
func WithoutPredecode() Option {
	return func(c *config) {
		c.predecode = nil
	}
}

// WithMaxInstructions halts the core after the given number of
// instructions. A value of 0 means no limit.
func WithMaxInstructions(max uint64) Option {
	return func(c *config) {
		c.maxInstructions = max
	}
}

// Core is the execution scheduler.
type Core struct {
	emulator *emu.Emulator
	mediator *periph.Mediator
	latency  *latency.Table
	cache    *predecode.Cache
	logger   logrus.FieldLogger
	clockHz  uint64

	state         State
	inRun         bool
	stopRequested bool
	fault         *Fault

	cycles     uint64
	overshoot  uint64
	interrupts uint64
}

// NewCore creates an idle core with an erased flash.
func NewCore(opts ...Option) *Core {
	defaultCache := predecode.DefaultConfig()
	cfg := &config{
		logger:    logrus.StandardLogger(),
		host:      periph.NopPinModel{},
		clockHz:   periph.DefaultClockHz,
		layout:    emu.ATmega328P(),
		timing:    latency.DefaultTimingConfig(),
		predecode: &defaultCache,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	c := &Core{
		mediator: periph.NewMediator(
			periph.WithHost(cfg.host),
			periph.WithLogger(cfg.logger),
			periph.WithClock(cfg.clockHz),
		),
		latency: latency.NewTableWithConfig(cfg.timing),
		logger:  cfg.logger,
		clockHz: cfg.clockHz,
	}

	emuOpts := []emu.EmulatorOption{
		emu.WithLayout(cfg.layout),
		emu.WithIOBus(c.mediator),
		emu.WithLogger(cfg.logger),
		emu.WithMaxInstructions(cfg.maxInstructions),
	}
	if cfg.predecode != nil {
		c.cache = predecode.New(*cfg.predecode)
		emuOpts = append(emuOpts, emu.WithInstructionCache(c.cache))
	}
	c.emulator = emu.NewEmulator(emuOpts...)

	return c
}

// Emulator returns the underlying emulator.
func (c *Core) Emulator() *emu.Emulator {
	return c.emulator
}

// Mediator returns the peripheral mediator.
func (c *Core) Mediator() *periph.Mediator {
	return c.mediator
}

// ClockHz returns the system clock in Hz.
func (c *Core) ClockHz() uint64 {
	return c.clockHz
}

// State returns the scheduler state.
func (c *Core) State() State {
	return c.state
}

// Fault returns the fault that halted the core, or nil.
func (c *Core) Fault() *Fault {
	return c.fault
}

// Load erases flash, copies the program into it and resets the core.
func (c *Core) Load(prog *loader.Program) error {
	c.emulator.EraseProgram()
	for _, seg := range prog.Segments {
		if err := c.emulator.LoadProgram(seg.Addr, seg.Data); err != nil {
			return fmt.Errorf("segment at 0x%04x: %w", seg.Addr, err)
		}
	}

	c.Reset()
	c.logger.WithFields(logrus.Fields{
		"segments": len(prog.Segments),
		"bytes":    prog.Size(),
	}).Debug("program loaded")

	return nil
}

// Reset returns the core to Idle at the reset vector with cleared registers,
// SRAM, peripherals and clock. Flash keeps the loaded program.
func (c *Core) Reset() {
	c.emulator.Reset()
	c.mediator.Reset()
	if c.cache != nil {
		c.cache.ResetStats()
	}

	c.state = StateIdle
	c.stopRequested = false
	c.fault = nil
	c.cycles = 0
	c.overshoot = 0
	c.interrupts = 0
}

// Start moves an idle core to Running.
func (c *Core) Start() error {
	switch c.state {
	case StateHalted:
		return c.haltedError()
	case StateIdle:
		c.state = StateRunning
	}
	return nil
}

// Stop requests a halt. Called between runs it halts immediately; called
// from a host callback it takes effect after the current instruction.
func (c *Core) Stop() {
	c.stopRequested = true
	if !c.inRun {
		c.state = StateHalted
	}
}

// Step executes one instruction, ticks the peripherals and dispatches a
// pending interrupt. It returns the cycles consumed.
func (c *Core) Step() (uint64, error) {
	if err := c.Start(); err != nil {
		return 0, err
	}

	c.inRun = true
	defer func() { c.inRun = false }()

	cycles, err := c.step()
	if err == nil && c.stopRequested {
		c.state = StateHalted
	}

	return cycles, err
}

// RunCycles runs until at least budget cycles have elapsed, the host
// requests a stop or a fault occurs. It returns the cycles consumed. An
// instruction that crosses the budget is completed and the excess is
// deducted from the next run.
func (c *Core) RunCycles(budget uint64) (uint64, error) {
	if err := c.Start(); err != nil {
		return 0, err
	}

	c.inRun = true
	defer func() { c.inRun = false }()

	target := budget
	if c.overshoot >= target {
		c.overshoot -= target
		return 0, nil
	}
	target -= c.overshoot
	c.overshoot = 0

	var used uint64
	for used < target {
		if c.stopRequested {
			c.state = StateHalted
			return used, nil
		}

		cycles, err := c.step()
		used += cycles
		if err != nil {
			return used, err
		}
	}

	c.overshoot = used - target
	if c.stopRequested {
		c.state = StateHalted
	}

	return used, nil
}

// RunFor runs for the given span of virtual time at the core clock.
func (c *Core) RunFor(d time.Duration) (uint64, error) {
	return c.RunCycles(c.durationToCycles(d))
}

func (c *Core) durationToCycles(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	us := uint64(d / time.Microsecond)
	ns := uint64(d % time.Microsecond)
	return us*c.clockHz/1_000_000 + ns*c.clockHz/1_000_000_000
}

// step executes one scheduler step without state transitions on success.
func (c *Core) step() (uint64, error) {
	result := c.emulator.Step()
	if result.Err != nil {
		return 0, c.halt(result.Err)
	}

	var cycles uint64
	if result.Sleeping {
		cycles = c.latency.SleepLatency()
	} else {
		cycles = c.latency.StepCycles(result.Inst, result.Taken, result.Skipped)
	}
	c.advance(cycles)

	if !c.emulator.InterruptsEnabled() {
		return cycles, nil
	}

	vector, ok := c.mediator.PendingInterrupt()
	if !ok {
		return cycles, nil
	}

	c.mediator.AcknowledgeInterrupt(vector)
	if err := c.emulator.Interrupt(uint8(vector)); err != nil {
		return cycles, c.halt(err)
	}
	c.interrupts++

	entry := c.latency.InterruptLatency()
	c.advance(entry)

	return cycles + entry, nil
}

func (c *Core) advance(cycles uint64) {
	c.mediator.Tick(cycles)
	c.cycles += cycles
}

func (c *Core) halt(err error) error {
	pc := c.emulator.RegFile().PC()
	var addrErr *emu.AddressOutOfRangeError
	var stackErr *emu.StackError
	switch {
	case errors.As(err, &addrErr):
		pc = addrErr.PC
	case errors.As(err, &stackErr):
		pc = stackErr.PC
	}

	c.fault = &Fault{Err: err, PC: pc}
	c.state = StateHalted

	c.logger.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("0x%04x", pc),
		"cycles": c.cycles,
	}).WithError(err).Error("core halted")

	return c.fault
}

func (c *Core) haltedError() error {
	if c.fault != nil {
		return c.fault
	}
	return ErrHalted
}

// Cycles returns the number of cycles elapsed since reset.
func (c *Core) Cycles() uint64 {
	return c.cycles
}

// Micros returns the virtual time since reset in microseconds.
func (c *Core) Micros() uint64 {
	return c.cycles * 1_000_000 / c.clockHz
}

// Millis returns the virtual time since reset in milliseconds.
func (c *Core) Millis() uint64 {
	return c.cycles * 1_000 / c.clockHz
}

// RegisterSnapshot returns a copy of the CPU registers.
func (c *Core) RegisterSnapshot() emu.RegisterSnapshot {
	return c.emulator.RegFile().Snapshot()
}

// FlagsSnapshot returns the decoded status flags.
func (c *Core) FlagsSnapshot() emu.Flags {
	return c.emulator.RegFile().FlagsSnapshot()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	s := Stats{
		Cycles:       c.cycles,
		Instructions: c.emulator.InstructionCount(),
		Interrupts:   c.interrupts,
		Unknown:      c.emulator.UnknownCount(),
	}
	if c.cache != nil {
		cs := c.cache.Stats()
		s.PredecodeHits = cs.Hits
		s.PredecodeMisses = cs.Misses
	}
	return s
}
