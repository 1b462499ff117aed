package core_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/insts"
	"github.com/sarchlab/avrsim/loader"
	"github.com/sarchlab/avrsim/periph"
	"github.com/sarchlab/avrsim/timing/core"
)

type pinEvent struct {
	pin   int
	level bool
}

type recordingHost struct {
	periph.NopPinModel
	digital []pinEvent
	onPin   func(pin int, level bool)
}

func (h *recordingHost) OnDigitalPinChange(pin int, level bool) {
	h.digital = append(h.digital, pinEvent{pin, level})
	if h.onPin != nil {
		h.onPin(pin, level)
	}
}

func segment(addr uint32, program ...insts.Instruction) loader.Segment {
	image, err := insts.Assemble(program...)
	Expect(err).NotTo(HaveOccurred())
	return loader.Segment{Addr: addr, Data: image}
}

func program(segs ...loader.Segment) *loader.Program {
	return &loader.Program{Segments: segs}
}

func reg(c *core.Core, i int) uint8 {
	return c.RegisterSnapshot().R[i]
}

var (
	nop  = insts.Instruction{Op: insts.OpNOP}
	sei  = insts.Instruction{Op: insts.OpBSET, Bit: 7}
	self = insts.Instruction{Op: insts.OpRJMP, Offset: -1}
)

func ldi(rd, k uint8) insts.Instruction {
	return insts.Instruction{Op: insts.OpLDI, Rd: rd, K: k}
}

var _ = Describe("Core", func() {
	var (
		c      *core.Core
		host   *recordingHost
		logger *logrus.Logger
		hook   *test.Hook
	)

	BeforeEach(func() {
		logger, hook = test.NewNullLogger()
		host = &recordingHost{}
		c = core.NewCore(core.WithHost(host), core.WithLogger(logger))
	})

	It("should start idle and run on first step", func() {
		Expect(c.Load(program(segment(0, nop, self)))).To(Succeed())
		Expect(c.State()).To(Equal(core.StateIdle))

		cycles, err := c.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(cycles).To(Equal(uint64(1)))
		Expect(c.State()).To(Equal(core.StateRunning))
	})

	It("should report exactly one HIGH transition for a set-and-spin sketch", func() {
		Expect(c.Load(program(segment(0,
			insts.Instruction{Op: insts.OpSBI, A: 0x04, Bit: 5}, // DDRB |= 1<<5
			insts.Instruction{Op: insts.OpSBI, A: 0x05, Bit: 5}, // PORTB |= 1<<5
			self,
		)))).To(Succeed())

		_, err := c.RunCycles(10_000)
		Expect(err).NotTo(HaveOccurred())

		Expect(host.digital).To(Equal([]pinEvent{{pin: 13, level: true}}))
		Expect(c.State()).To(Equal(core.StateRunning))
	})

	It("should charge datasheet cycles and carry overshoot", func() {
		// LDI (1) + RJMP to self (2 each)
		Expect(c.Load(program(segment(0, ldi(16, 1), self)))).To(Succeed())

		used, err := c.RunCycles(4)
		Expect(err).NotTo(HaveOccurred())
		Expect(used).To(Equal(uint64(5)))
		Expect(c.Cycles()).To(Equal(uint64(5)))

		used, err = c.RunCycles(3)
		Expect(err).NotTo(HaveOccurred())
		Expect(used).To(Equal(uint64(2)))
		Expect(c.Cycles()).To(Equal(uint64(7)))
	})

	It("should service Timer0 overflow like millis()", func() {
		Expect(c.Load(program(
			segment(0x00, insts.Instruction{Op: insts.OpRJMP, Offset: 51}), // -> 0x68
			segment(0x40, insts.Instruction{Op: insts.OpRJMP, Offset: 26}), // TIMER0_OVF -> 0x76
			segment(0x68,
				ldi(16, 0x03), // clk/64
				insts.Instruction{Op: insts.OpOUT, A: 0x25, Rd: 16}, // TCCR0B
				ldi(16, 0x01),
				insts.Instruction{Op: insts.OpSTS, Rd: 16, Address: 0x6E}, // TIMSK0
				sei,
				self,
				insts.Instruction{Op: insts.OpINC, Rd: 20},
				insts.Instruction{Op: insts.OpRETI},
			),
		))).To(Succeed())

		_, err := c.RunFor(10 * time.Millisecond)
		Expect(err).NotTo(HaveOccurred())

		// One overflow every 256*64 cycles at 16 MHz.
		Expect(reg(c, 20)).To(Equal(uint8(9)))
		Expect(c.Millis()).To(Equal(uint64(10)))
		Expect(c.Stats().Interrupts).To(Equal(uint64(9)))
		Expect(c.FlagsSnapshot().I).To(BeTrue())
	})

	It("should wake from SLEEP on an interrupt", func() {
		Expect(c.Load(program(
			segment(0x00, insts.Instruction{Op: insts.OpRJMP, Offset: 51}),
			segment(0x40, insts.Instruction{Op: insts.OpRJMP, Offset: 26}),
			segment(0x68,
				ldi(16, 0x01), // clk/1
				insts.Instruction{Op: insts.OpOUT, A: 0x25, Rd: 16},
				insts.Instruction{Op: insts.OpSTS, Rd: 16, Address: 0x6E},
				sei,
				insts.Instruction{Op: insts.OpSLEEP},
				self,
				insts.Instruction{Op: insts.OpINC, Rd: 20},
				insts.Instruction{Op: insts.OpRETI},
			),
		))).To(Succeed())

		_, err := c.RunCycles(300)
		Expect(err).NotTo(HaveOccurred())
		Expect(reg(c, 20)).To(Equal(uint8(1)))
		Expect(c.Emulator().Sleeping()).To(BeFalse())
	})

	It("should honor Stop from a host callback after the current instruction", func() {
		host.onPin = func(int, bool) { c.Stop() }
		Expect(c.Load(program(segment(0,
			insts.Instruction{Op: insts.OpSBI, A: 0x04, Bit: 5},
			insts.Instruction{Op: insts.OpSBI, A: 0x05, Bit: 5},
			ldi(17, 0x55),
			self,
		)))).To(Succeed())

		_, err := c.RunCycles(1_000)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.State()).To(Equal(core.StateHalted))
		Expect(c.Fault()).To(BeNil())
		Expect(reg(c, 17)).To(BeZero())

		_, err = c.RunCycles(1_000)
		Expect(err).To(MatchError(core.ErrHalted))
	})

	It("should halt immediately when stopped between runs", func() {
		Expect(c.Load(program(segment(0, self)))).To(Succeed())
		_, err := c.RunCycles(10)
		Expect(err).NotTo(HaveOccurred())

		c.Stop()
		Expect(c.State()).To(Equal(core.StateHalted))
		Expect(c.Start()).To(MatchError(core.ErrHalted))
	})

	It("should halt on an out-of-range access with the faulting PC", func() {
		Expect(c.Load(program(segment(0,
			nop,
			insts.Instruction{Op: insts.OpSTS, Rd: 0, Address: 0x0900},
			self,
		)))).To(Succeed())

		_, err := c.RunCycles(100)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, emu.ErrAddressOutOfRange)).To(BeTrue())

		var fault *core.Fault
		Expect(errors.As(err, &fault)).To(BeTrue())
		Expect(fault.PC).To(Equal(uint32(2)))
		Expect(c.State()).To(Equal(core.StateHalted))
		Expect(hook.LastEntry()).NotTo(BeNil())
		Expect(hook.LastEntry().Level).To(Equal(logrus.ErrorLevel))

		_, err = c.Step()
		Expect(err).To(BeIdenticalTo(c.Fault()))
	})

	It("should halt on stack underflow", func() {
		Expect(c.Load(program(segment(0, insts.Instruction{Op: insts.OpRET})))).To(Succeed())

		_, err := c.Step()
		Expect(errors.Is(err, emu.ErrStackUnderflow)).To(BeTrue())
		Expect(c.State()).To(Equal(core.StateHalted))
	})

	It("should keep running over unknown opcodes", func() {
		Expect(c.Load(program(loader.Segment{Addr: 0, Data: []byte{0xFF, 0xFF}},
			segment(2, ldi(18, 7), self)))).To(Succeed())

		_, err := c.RunCycles(10)
		Expect(err).NotTo(HaveOccurred())
		Expect(reg(c, 18)).To(Equal(uint8(7)))
		Expect(c.Stats().Unknown).To(Equal(uint64(1)))
	})

	It("should return to idle on Reset and keep the program", func() {
		Expect(c.Load(program(segment(0, ldi(16, 9), self)))).To(Succeed())
		_, err := c.RunCycles(20)
		Expect(err).NotTo(HaveOccurred())
		c.Stop()

		c.Reset()
		Expect(c.State()).To(Equal(core.StateIdle))
		Expect(c.Cycles()).To(BeZero())
		Expect(reg(c, 16)).To(BeZero())

		_, err = c.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(reg(c, 16)).To(Equal(uint8(9)))
	})

	It("should forget the old image when an empty program is loaded", func() {
		Expect(c.Load(program(segment(0, ldi(16, 0x55), self)))).To(Succeed())
		_, err := c.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(reg(c, 16)).To(Equal(uint8(0x55)))

		Expect(c.Load(program())).To(Succeed())
		_, err = c.Step()
		Expect(err).NotTo(HaveOccurred())

		// erased flash reads 0xFFFF
		Expect(reg(c, 16)).To(BeZero())
		Expect(c.Stats().Unknown).To(Equal(uint64(1)))
	})

	Describe("conditional branch timing", func() {
		breq := insts.Instruction{Op: insts.OpBRBS, Bit: 1, Offset: 1}

		load := func(value uint8) {
			Expect(c.Load(program(segment(0,
				ldi(16, value),
				insts.Instruction{Op: insts.OpCPI, Rd: 16, K: 0},
				breq, // at 0x04
				nop,
				self, // at 0x08
			)))).To(Succeed())
			for i := 0; i < 2; i++ {
				_, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
			}
		}

		It("should charge two cycles for a taken BREQ", func() {
			load(0)

			cycles, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(2)))
			Expect(c.RegisterSnapshot().PC).To(Equal(uint32(0x08)))
			Expect(c.Cycles()).To(Equal(uint64(4)))
		})

		It("should charge one cycle for a BREQ that falls through", func() {
			load(1)

			cycles, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(Equal(uint64(1)))
			Expect(c.RegisterSnapshot().PC).To(Equal(uint32(0x06)))
			Expect(c.Cycles()).To(Equal(uint64(3)))
		})
	})

	It("should count predecode hits for a tight loop", func() {
		Expect(c.Load(program(segment(0, self)))).To(Succeed())
		_, err := c.RunCycles(20)
		Expect(err).NotTo(HaveOccurred())

		stats := c.Stats()
		Expect(stats.Instructions).To(Equal(uint64(10)))
		Expect(stats.PredecodeMisses).To(Equal(uint64(1)))
		Expect(stats.PredecodeHits).To(Equal(uint64(9)))
	})

	It("should convert virtual time at a custom clock", func() {
		c = core.NewCore(core.WithClock(8_000_000), core.WithLogger(logger),
			core.WithoutPredecode())
		Expect(c.Load(program(segment(0, nop, insts.Instruction{Op: insts.OpRJMP, Offset: -2})))).To(Succeed())

		_, err := c.RunFor(time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Cycles()).To(BeNumerically(">=", 8_000))
		Expect(c.Micros()).To(BeNumerically(">=", 1_000))
		Expect(c.Stats().PredecodeHits).To(BeZero())
	})
})
