package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/insts"
)

func load(e *emu.Emulator, program ...insts.Instruction) {
	image, err := insts.Assemble(program...)
	Expect(err).NotTo(HaveOccurred())
	Expect(e.LoadProgram(0, image)).To(Succeed())
}

func run(e *emu.Emulator, n int) {
	for i := 0; i < n; i++ {
		result := e.Step()
		Expect(result.Err).NotTo(HaveOccurred())
	}
}

func reg(e *emu.Emulator, i int) uint8 {
	v, err := e.RegFile().ReadRegister(i)
	Expect(err).NotTo(HaveOccurred())
	return v
}

func data(e *emu.Emulator, addr uint16) uint8 {
	v, err := e.ReadData(addr)
	Expect(err).NotTo(HaveOccurred())
	return v
}

func ldi(rd, k uint8) insts.Instruction {
	return insts.Instruction{Op: insts.OpLDI, Rd: rd, K: k}
}

var nop = insts.Instruction{Op: insts.OpNOP}

type mapCache struct {
	entries map[uint32]*insts.Instruction
	hits    int
	puts    int
}

func (c *mapCache) Get(pc uint32) (*insts.Instruction, bool) {
	inst, ok := c.entries[pc]
	if ok {
		c.hits++
	}
	return inst, ok
}

func (c *mapCache) Put(pc uint32, inst *insts.Instruction) {
	c.puts++
	c.entries[pc] = inst
}

func (c *mapCache) Invalidate() {
	c.entries = make(map[uint32]*insts.Instruction)
}

var _ = Describe("Emulator", func() {
	var (
		e      *emu.Emulator
		hook   *test.Hook
		logger *logrus.Logger
	)

	BeforeEach(func() {
		logger, hook = test.NewNullLogger()
		e = emu.NewEmulator(emu.WithLogger(logger))
	})

	Describe("NewEmulator", func() {
		It("should start at the reset vector with SP at RAMEND", func() {
			Expect(e.RegFile().PC()).To(Equal(uint32(0)))
			Expect(e.RegFile().SP()).To(Equal(uint16(0x08FF)))
			Expect(e.Memory().FlashSize()).To(Equal(uint32(32 * 1024)))
		})

		It("should erase flash to 0xFF", func() {
			w, err := e.Memory().ReadFlashWord(0x100)
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(uint16(0xFFFF)))
		})
	})

	Describe("ALU instructions", func() {
		It("should set carry, zero and half carry on 8-bit wrap", func() {
			load(e, ldi(16, 0xFF), ldi(17, 0x01),
				insts.Instruction{Op: insts.OpADD, Rd: 16, Rr: 17})
			run(e, 3)

			Expect(reg(e, 16)).To(Equal(uint8(0)))
			flags := e.RegFile().FlagsSnapshot()
			Expect(flags.C).To(BeTrue())
			Expect(flags.Z).To(BeTrue())
			Expect(flags.H).To(BeTrue())
			Expect(flags.N).To(BeFalse())
			Expect(flags.V).To(BeFalse())
		})

		It("should set V and clear S on signed overflow", func() {
			load(e, ldi(16, 0x7F), ldi(17, 0x01),
				insts.Instruction{Op: insts.OpADD, Rd: 16, Rr: 17})
			run(e, 3)

			Expect(reg(e, 16)).To(Equal(uint8(0x80)))
			flags := e.RegFile().FlagsSnapshot()
			Expect(flags.V).To(BeTrue())
			Expect(flags.N).To(BeTrue())
			Expect(flags.S).To(BeFalse())
		})

		It("should borrow on SUB below zero", func() {
			load(e, ldi(16, 0x00), ldi(17, 0x01),
				insts.Instruction{Op: insts.OpSUB, Rd: 16, Rr: 17})
			run(e, 3)

			Expect(reg(e, 16)).To(Equal(uint8(0xFF)))
			flags := e.RegFile().FlagsSnapshot()
			Expect(flags.C).To(BeTrue())
			Expect(flags.N).To(BeTrue())
			Expect(flags.S).To(BeTrue())
			Expect(flags.Z).To(BeFalse())
		})

		DescribeTable("16-bit compare with CP/CPC",
			func(lo uint8, equal bool) {
				load(e,
					ldi(24, lo), ldi(25, 0x12),
					ldi(18, 0x34), ldi(19, 0x12),
					insts.Instruction{Op: insts.OpCP, Rd: 24, Rr: 18},
					insts.Instruction{Op: insts.OpCPC, Rd: 25, Rr: 19},
				)
				run(e, 6)

				Expect(e.RegFile().Flag(emu.FlagZ)).To(Equal(equal))
			},
			Entry("equal words", uint8(0x34), true),
			Entry("low bytes differ", uint8(0x35), false),
		)

		It("should keep C unchanged on INC", func() {
			load(e, insts.Instruction{Op: insts.OpBSET, Bit: 0}, ldi(16, 0x7F),
				insts.Instruction{Op: insts.OpINC, Rd: 16})
			run(e, 3)

			Expect(reg(e, 16)).To(Equal(uint8(0x80)))
			flags := e.RegFile().FlagsSnapshot()
			Expect(flags.C).To(BeTrue())
			Expect(flags.V).To(BeTrue())
			Expect(flags.N).To(BeTrue())
		})

		It("should add and subtract immediates on register pairs", func() {
			load(e, ldi(24, 0xFF), ldi(25, 0x00),
				insts.Instruction{Op: insts.OpADIW, Rd: 24, K: 1})
			run(e, 3)

			Expect(e.RegFile().Pair(24)).To(Equal(uint16(0x0100)))
			Expect(e.RegFile().Flag(emu.FlagC)).To(BeFalse())

			e.Reset()
			load(e, ldi(24, 0x00), ldi(25, 0x00),
				insts.Instruction{Op: insts.OpSBIW, Rd: 24, K: 1})
			run(e, 3)

			Expect(e.RegFile().Pair(24)).To(Equal(uint16(0xFFFF)))
			Expect(e.RegFile().Flag(emu.FlagC)).To(BeTrue())
			Expect(e.RegFile().Flag(emu.FlagN)).To(BeTrue())
		})

		It("should multiply into r1:r0", func() {
			load(e, ldi(16, 200), ldi(17, 100),
				insts.Instruction{Op: insts.OpMUL, Rd: 16, Rr: 17})
			run(e, 3)

			Expect(reg(e, 0)).To(Equal(uint8(0x20)))
			Expect(reg(e, 1)).To(Equal(uint8(0x4E)))
		})

		It("should rotate through carry", func() {
			load(e, insts.Instruction{Op: insts.OpBSET, Bit: 0}, ldi(16, 0x02),
				insts.Instruction{Op: insts.OpROR, Rd: 16})
			run(e, 3)

			Expect(reg(e, 16)).To(Equal(uint8(0x81)))
			Expect(e.RegFile().Flag(emu.FlagC)).To(BeFalse())
		})
	})

	Describe("data space", func() {
		It("should store and load SRAM with STS/LDS", func() {
			load(e, ldi(16, 0x5A),
				insts.Instruction{Op: insts.OpSTS, Rd: 16, Address: 0x0200},
				insts.Instruction{Op: insts.OpLDS, Rd: 17, Address: 0x0200},
			)
			run(e, 3)

			Expect(reg(e, 17)).To(Equal(uint8(0x5A)))
			Expect(e.RegFile().PC()).To(Equal(uint32(10)))
		})

		It("should post-increment X on ST X+", func() {
			load(e, ldi(26, 0x00), ldi(27, 0x01), ldi(16, 7),
				insts.Instruction{Op: insts.OpST, Rd: 16, Ptr: insts.PtrXInc})
			run(e, 4)

			Expect(data(e, 0x0100)).To(Equal(uint8(7)))
			Expect(e.RegFile().Pair(emu.RegX)).To(Equal(uint16(0x0101)))
		})

		It("should pre-decrement Y on LD -Y and honor LDD displacements", func() {
			Expect(e.WriteData(0x0100, 9)).To(Succeed())
			Expect(e.WriteData(0x0105, 3)).To(Succeed())

			load(e, ldi(28, 0x01), ldi(29, 0x01),
				insts.Instruction{Op: insts.OpLD, Rd: 0, Ptr: insts.PtrYDec},
				insts.Instruction{Op: insts.OpLDD, Rd: 5, Ptr: insts.PtrY, Q: 5},
			)
			run(e, 4)

			Expect(reg(e, 0)).To(Equal(uint8(9)))
			Expect(reg(e, 5)).To(Equal(uint8(3)))
			Expect(e.RegFile().Pair(emu.RegY)).To(Equal(uint16(0x0100)))
		})

		It("should alias the register file at data addresses 0x00-0x1F", func() {
			load(e, ldi(17, 0x42),
				insts.Instruction{Op: insts.OpSTS, Rd: 17, Address: 0x0010})
			run(e, 2)

			Expect(reg(e, 16)).To(Equal(uint8(0x42)))
		})

		It("should fault on access beyond RAMEND", func() {
			load(e, nop, insts.Instruction{Op: insts.OpLDS, Rd: 16, Address: 0x0900})
			run(e, 1)

			result := e.Step()
			Expect(result.Err).To(MatchError(emu.ErrAddressOutOfRange))

			var aerr *emu.AddressOutOfRangeError
			Expect(errors.As(result.Err, &aerr)).To(BeTrue())
			Expect(aerr.Addr).To(Equal(uint32(0x0900)))
			Expect(aerr.PC).To(Equal(uint32(2)))
		})

		It("should fault on fetch beyond the end of flash", func() {
			e.RegFile().SetPC(32 * 1024)

			result := e.Step()
			Expect(result.Err).To(MatchError(emu.ErrAddressOutOfRange))
		})

		It("should read program memory with LPM Z+", func() {
			load(e, ldi(30, 0x10), ldi(31, 0x00),
				insts.Instruction{Op: insts.OpLPM, Format: insts.FormatRd, Rd: 24, Ptr: insts.PtrZInc})
			Expect(e.LoadProgram(0x10, []byte{0xAB})).To(Succeed())
			run(e, 3)

			Expect(reg(e, 24)).To(Equal(uint8(0xAB)))
			Expect(e.RegFile().Pair(emu.RegZ)).To(Equal(uint16(0x11)))
		})
	})

	Describe("I/O", func() {
		It("should map SPL, SPH and SREG onto core registers", func() {
			load(e, ldi(16, 0x04),
				insts.Instruction{Op: insts.OpOUT, Rd: 16, A: 0x3E},
				ldi(16, 0x00),
				insts.Instruction{Op: insts.OpOUT, Rd: 16, A: 0x3D},
				insts.Instruction{Op: insts.OpBSET, Bit: 1},
				insts.Instruction{Op: insts.OpIN, Rd: 17, A: 0x3F},
			)
			run(e, 6)

			Expect(e.RegFile().SP()).To(Equal(uint16(0x0400)))
			Expect(reg(e, 17)).To(Equal(uint8(0x02)))
		})

		It("should forward other registers to the I/O bus", func() {
			load(e, ldi(16, 0x20),
				insts.Instruction{Op: insts.OpOUT, Rd: 16, A: 0x05},
				insts.Instruction{Op: insts.OpSBI, A: 0x05, Bit: 1},
			)
			run(e, 3)

			Expect(e.IOBus().ReadIO(0x25)).To(Equal(uint8(0x22)))
		})

		It("should skip on SBIS when the I/O bit is set", func() {
			load(e,
				insts.Instruction{Op: insts.OpSBI, A: 0x05, Bit: 2},
				insts.Instruction{Op: insts.OpSBIS, A: 0x05, Bit: 2},
				nop, nop,
			)
			run(e, 1)

			result := e.Step()
			Expect(result.Skipped).To(Equal(uint8(1)))
			Expect(e.RegFile().PC()).To(Equal(uint32(6)))
		})
	})

	Describe("stack", func() {
		It("should round-trip PUSH and POP", func() {
			load(e, ldi(16, 0x11),
				insts.Instruction{Op: insts.OpPUSH, Rd: 16},
				ldi(16, 0x00),
				insts.Instruction{Op: insts.OpPOP, Rd: 16},
			)
			run(e, 2)

			Expect(e.RegFile().SP()).To(Equal(uint16(0x08FE)))
			Expect(data(e, 0x08FF)).To(Equal(uint8(0x11)))

			run(e, 2)
			Expect(reg(e, 16)).To(Equal(uint8(0x11)))
			Expect(e.RegFile().SP()).To(Equal(uint16(0x08FF)))
		})

		It("should fail with underflow when popping an empty stack", func() {
			load(e, insts.Instruction{Op: insts.OpPOP, Rd: 16})

			result := e.Step()
			Expect(result.Err).To(MatchError(emu.ErrStackUnderflow))
		})

		It("should fail with overflow when pushing below SRAM", func() {
			load(e, insts.Instruction{Op: insts.OpPUSH, Rd: 16})
			e.RegFile().SetSP(0x00FF)

			result := e.Step()
			Expect(result.Err).To(MatchError(emu.ErrStackOverflow))
		})
	})

	Describe("program flow", func() {
		It("should return to the instruction after CALL", func() {
			load(e,
				insts.Instruction{Op: insts.OpCALL, Address: 4},
				nop, nop,
				insts.Instruction{Op: insts.OpRET},
			)
			before := e.RegFile().Snapshot()

			run(e, 1)
			Expect(e.RegFile().PC()).To(Equal(uint32(8)))
			Expect(e.RegFile().SP()).To(Equal(uint16(0x08FD)))
			Expect(data(e, 0x08FF)).To(Equal(uint8(0x00)))
			Expect(data(e, 0x08FE)).To(Equal(uint8(0x02)))

			run(e, 1)
			after := e.RegFile().Snapshot()
			Expect(after.PC).To(Equal(uint32(4)))
			Expect(after.SP).To(Equal(before.SP))
			Expect(after.R).To(Equal(before.R))
			Expect(after.SREG).To(Equal(before.SREG))
		})

		It("should call relative with RCALL", func() {
			load(e,
				insts.Instruction{Op: insts.OpRCALL, Offset: 1},
				nop,
				insts.Instruction{Op: insts.OpRET},
			)

			run(e, 1)
			Expect(e.RegFile().PC()).To(Equal(uint32(4)))

			run(e, 1)
			Expect(e.RegFile().PC()).To(Equal(uint32(2)))
		})

		It("should loop on RJMP .-2", func() {
			load(e, insts.Instruction{Op: insts.OpRJMP, Offset: -1})
			run(e, 3)

			Expect(e.RegFile().PC()).To(Equal(uint32(0)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should jump relative to the next instruction", func() {
			load(e, nop, nop, nop, nop,
				insts.Instruction{Op: insts.OpRJMP, Offset: -4}, // at 0x08
			)
			run(e, 5)

			// 0x0A - 4 words
			Expect(e.RegFile().PC()).To(Equal(uint32(0x02)))
		})

		It("should branch backwards relative to the next instruction", func() {
			load(e, ldi(16, 0), nop,
				insts.Instruction{Op: insts.OpCPI, Rd: 16, K: 0},
				insts.Instruction{Op: insts.OpBRBS, Bit: 1, Offset: -3}, // at 0x06
			)
			run(e, 3)

			result := e.Step()
			Expect(result.Taken).To(BeTrue())
			Expect(e.RegFile().PC()).To(Equal(uint32(0x02)))
		})

		It("should take BREQ when Z is set", func() {
			load(e, ldi(16, 0),
				insts.Instruction{Op: insts.OpCPI, Rd: 16, K: 0},
				insts.Instruction{Op: insts.OpBRBS, Bit: 1, Offset: 1},
			)
			run(e, 2)

			result := e.Step()
			Expect(result.Taken).To(BeTrue())
			Expect(e.RegFile().PC()).To(Equal(uint32(8)))
		})

		It("should fall through BRNE when Z is set", func() {
			load(e, ldi(16, 0),
				insts.Instruction{Op: insts.OpCPI, Rd: 16, K: 0},
				insts.Instruction{Op: insts.OpBRBC, Bit: 1, Offset: 1},
			)
			run(e, 2)

			result := e.Step()
			Expect(result.Taken).To(BeFalse())
			Expect(e.RegFile().PC()).To(Equal(uint32(6)))
		})

		It("should skip a two-word instruction", func() {
			load(e, ldi(16, 1),
				insts.Instruction{Op: insts.OpSBRS, Rd: 16, Bit: 0},
				insts.Instruction{Op: insts.OpJMP, Address: 0x100},
				nop,
			)
			run(e, 1)

			result := e.Step()
			Expect(result.Skipped).To(Equal(uint8(2)))
			Expect(e.RegFile().PC()).To(Equal(uint32(8)))
		})

		It("should not skip on CPSE with different registers", func() {
			load(e, ldi(16, 1), ldi(17, 2),
				insts.Instruction{Op: insts.OpCPSE, Rd: 16, Rr: 17},
				nop,
			)
			run(e, 2)

			result := e.Step()
			Expect(result.Skipped).To(Equal(uint8(0)))
			Expect(e.RegFile().PC()).To(Equal(uint32(6)))
		})
	})

	Describe("unknown opcodes", func() {
		It("should log a warning and continue as NOP", func() {
			Expect(e.LoadProgram(0, []byte{0xFF, 0xFF})).To(Succeed())

			result := e.Step()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Unknown).To(BeTrue())
			Expect(e.RegFile().PC()).To(Equal(uint32(2)))
			Expect(e.UnknownCount()).To(Equal(uint64(1)))

			Expect(hook.LastEntry()).NotTo(BeNil())
			Expect(hook.LastEntry().Level).To(Equal(logrus.WarnLevel))
			Expect(hook.LastEntry().Data).To(HaveKeyWithValue("pc", "0x0000"))
			Expect(hook.LastEntry().Data).To(HaveKeyWithValue("opcode", "0xffff"))
		})
	})

	Describe("interrupts", func() {
		It("should hold interrupts off for one instruction after SEI", func() {
			load(e, insts.Instruction{Op: insts.OpBSET, Bit: 7}, nop, nop)

			run(e, 1)
			Expect(e.RegFile().Flag(emu.FlagI)).To(BeTrue())
			Expect(e.InterruptsEnabled()).To(BeFalse())

			run(e, 1)
			Expect(e.InterruptsEnabled()).To(BeTrue())
		})

		It("should enter the vector and come back with RETI", func() {
			load(e, insts.Instruction{Op: insts.OpBSET, Bit: 7}, nop, nop)
			reti, err := insts.Assemble(insts.Instruction{Op: insts.OpRETI})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.LoadProgram(16*4, reti)).To(Succeed())
			run(e, 2)

			Expect(e.Interrupt(16)).To(Succeed())
			Expect(e.RegFile().PC()).To(Equal(uint32(64)))
			Expect(e.RegFile().Flag(emu.FlagI)).To(BeFalse())
			Expect(e.RegFile().SP()).To(Equal(uint16(0x08FD)))

			run(e, 1)
			Expect(e.RegFile().PC()).To(Equal(uint32(4)))
			Expect(e.RegFile().Flag(emu.FlagI)).To(BeTrue())
			Expect(e.InterruptsEnabled()).To(BeFalse())
			Expect(e.RegFile().SP()).To(Equal(uint16(0x08FF)))
		})

		It("should sleep until an interrupt arrives", func() {
			load(e, insts.Instruction{Op: insts.OpSLEEP}, nop)
			run(e, 1)
			Expect(e.Sleeping()).To(BeTrue())

			result := e.Step()
			Expect(result.Sleeping).To(BeTrue())
			Expect(e.RegFile().PC()).To(Equal(uint32(2)))

			Expect(e.Interrupt(1)).To(Succeed())
			Expect(e.Sleeping()).To(BeFalse())
			Expect(e.RegFile().PC()).To(Equal(uint32(4)))
		})
	})

	Describe("options", func() {
		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithLogger(logger), emu.WithMaxInstructions(1))
			load(e, nop, nop)

			Expect(e.Step().Err).NotTo(HaveOccurred())
			Expect(e.Step().Err).To(MatchError(emu.ErrInstructionLimit))
		})

		It("should reuse cached decodes", func() {
			cache := &mapCache{entries: map[uint32]*insts.Instruction{}}
			e = emu.NewEmulator(emu.WithLogger(logger), emu.WithInstructionCache(cache))
			load(e, insts.Instruction{Op: insts.OpRJMP, Offset: -1})

			run(e, 3)

			Expect(cache.puts).To(Equal(1))
			Expect(cache.hits).To(Equal(2))
		})
	})

	Describe("Reset", func() {
		It("should clear state but keep the program", func() {
			load(e, ldi(16, 0x11), insts.Instruction{Op: insts.OpPUSH, Rd: 16})
			run(e, 2)

			e.Reset()

			Expect(e.RegFile().PC()).To(Equal(uint32(0)))
			Expect(e.RegFile().SP()).To(Equal(uint16(0x08FF)))
			Expect(reg(e, 16)).To(Equal(uint8(0)))
			Expect(data(e, 0x08FF)).To(Equal(uint8(0)))

			run(e, 1)
			Expect(reg(e, 16)).To(Equal(uint8(0x11)))
		})
	})
})
