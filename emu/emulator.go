package emu

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/avrsim/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Inst is the instruction that was executed. It is nil when the core
	// was asleep or the fetch failed.
	Inst *insts.Instruction

	// Taken is true if a conditional branch was taken.
	Taken bool

	// Skipped is the number of words a skip instruction stepped over.
	Skipped uint8

	// Sleeping is true if the core is in SLEEP and executed nothing.
	Sleeping bool

	// Unknown is true if the opcode was not recognized and ran as a NOP.
	Unknown bool

	// Err is set if a fatal error occurred during execution.
	Err error
}

// InstructionCache holds decoded instructions by program address so the
// emulator does not decode the same flash word twice.
type InstructionCache interface {
	Get(pc uint32) (*insts.Instruction, bool)
	Put(pc uint32, inst *insts.Instruction)
	Invalidate()
}

// Emulator executes AVR instructions functionally.
type Emulator struct {
	layout  Layout
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder
	io      IOBus
	cache   InstructionCache
	logger  logrus.FieldLogger

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// Execution state
	curPC            uint32
	sleeping         bool
	interruptShadow  bool
	instructionCount uint64
	unknownCount     uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithLayout sets the memory layout. The default is ATmega328P().
func WithLayout(layout Layout) EmulatorOption {
	return func(e *Emulator) {
		e.layout = layout
	}
}

// WithIOBus connects the I/O register window to a peripheral bus.
func WithIOBus(bus IOBus) EmulatorOption {
	return func(e *Emulator) {
		e.io = bus
	}
}

// WithLogger sets the logger for execution diagnostics.
func WithLogger(logger logrus.FieldLogger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithInstructionCache sets a cache for decoded instructions.
func WithInstructionCache(cache InstructionCache) EmulatorOption {
	return func(e *Emulator) {
		e.cache = cache
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new AVR emulator with the stack pointer at RAMEnd.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		layout:  ATmega328P(),
		decoder: insts.NewDecoder(),
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.io == nil {
		e.io = NewScratchIO()
	}

	e.regFile = &RegFile{}
	e.regFile.reset(e.layout.RAMEnd)
	e.memory = NewMemory(e.layout)

	// Create execution units
	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory, e)
	e.branchUnit = NewBranchUnit(e.regFile)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// IOBus returns the bus the I/O window is routed to.
func (e *Emulator) IOBus() IOBus {
	return e.io
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// UnknownCount returns the number of unrecognized opcodes executed as NOP.
func (e *Emulator) UnknownCount() uint64 {
	return e.unknownCount
}

// Sleeping reports whether the core is halted in SLEEP waiting for an
// interrupt.
func (e *Emulator) Sleeping() bool {
	return e.sleeping
}

// LoadProgram copies an image into flash at byte address addr.
func (e *Emulator) LoadProgram(addr uint32, data []byte) error {
	if err := e.memory.LoadFlash(addr, data); err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	if e.cache != nil {
		e.cache.Invalidate()
	}
	return nil
}

// EraseProgram erases flash and drops every predecoded instruction.
func (e *Emulator) EraseProgram() {
	e.memory.EraseFlash()
	if e.cache != nil {
		e.cache.Invalidate()
	}
}

// Reset puts the core in its power-on state: registers and SRAM cleared,
// SP at RAMEnd and PC at the reset vector. Flash keeps the loaded program.
func (e *Emulator) Reset() {
	e.regFile.reset(e.layout.RAMEnd)
	e.memory.ClearSRAM()
	e.curPC = 0
	e.sleeping = false
	e.interruptShadow = false
	e.instructionCount = 0
	e.unknownCount = 0
}

// InterruptsEnabled reports whether an interrupt may be taken now: I is set
// and the previous instruction was not SEI or RETI.
func (e *Emulator) InterruptsEnabled() bool {
	return e.regFile.Flag(FlagI) && !e.interruptShadow
}

// Interrupt enters the handler for the given vector: the current PC is
// pushed like a CALL, I is cleared and PC moves to the vector table entry.
func (e *Emulator) Interrupt(vector uint8) error {
	e.curPC = e.regFile.PC()
	e.sleeping = false

	if err := e.pushReturn(e.regFile.PC() >> 1); err != nil {
		return err
	}

	e.regFile.ClearFlag(FlagI)
	e.branchUnit.JMP(uint32(vector) * 2)

	return nil
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	// Check instruction limit before executing
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrInstructionLimit}
	}

	if e.sleeping {
		return StepResult{Sleeping: true}
	}

	e.interruptShadow = false
	pc := e.regFile.PC()
	e.curPC = pc

	// 1. Fetch and decode
	inst, err := e.fetch(pc)
	if err != nil {
		return StepResult{Err: err}
	}

	// 2. Execute with PC pointing at the next instruction
	e.regFile.SetPC(pc + 2*uint32(inst.Words))
	result := e.execute(inst)
	result.Inst = inst

	e.instructionCount++

	return result
}

func (e *Emulator) fetch(pc uint32) (*insts.Instruction, error) {
	if e.cache != nil {
		if inst, ok := e.cache.Get(pc); ok {
			return inst, nil
		}
	}

	opcode, err := e.memory.ReadFlashWord(pc)
	if err != nil {
		return nil, e.annotate(err)
	}

	var next uint16
	if insts.IsTwoWord(opcode) {
		next, err = e.memory.ReadFlashWord(pc + 2)
		if err != nil {
			return nil, e.annotate(err)
		}
	}

	inst := e.decoder.Decode(opcode, next)
	if e.cache != nil {
		e.cache.Put(pc, inst)
	}

	return inst, nil
}

// execute dispatches a decoded instruction.
//
//nolint:gocyclo // one case per AVR operation
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	var err error

	switch inst.Op {
	// Arithmetic and logic
	case insts.OpADD:
		e.alu.ADD(inst.Rd, inst.Rr)
	case insts.OpADC:
		e.alu.ADC(inst.Rd, inst.Rr)
	case insts.OpSUB:
		e.alu.SUB(inst.Rd, inst.Rr)
	case insts.OpSBC:
		e.alu.SBC(inst.Rd, inst.Rr)
	case insts.OpSUBI:
		e.alu.SUBI(inst.Rd, inst.K)
	case insts.OpSBCI:
		e.alu.SBCI(inst.Rd, inst.K)
	case insts.OpCP:
		e.alu.CP(inst.Rd, inst.Rr)
	case insts.OpCPC:
		e.alu.CPC(inst.Rd, inst.Rr)
	case insts.OpCPI:
		e.alu.CPI(inst.Rd, inst.K)
	case insts.OpAND:
		e.alu.AND(inst.Rd, inst.Rr)
	case insts.OpANDI:
		e.alu.ANDI(inst.Rd, inst.K)
	case insts.OpOR:
		e.alu.OR(inst.Rd, inst.Rr)
	case insts.OpORI:
		e.alu.ORI(inst.Rd, inst.K)
	case insts.OpEOR:
		e.alu.EOR(inst.Rd, inst.Rr)
	case insts.OpCOM:
		e.alu.COM(inst.Rd)
	case insts.OpNEG:
		e.alu.NEG(inst.Rd)
	case insts.OpINC:
		e.alu.INC(inst.Rd)
	case insts.OpDEC:
		e.alu.DEC(inst.Rd)
	case insts.OpASR:
		e.alu.ASR(inst.Rd)
	case insts.OpLSR:
		e.alu.LSR(inst.Rd)
	case insts.OpROR:
		e.alu.ROR(inst.Rd)
	case insts.OpSWAP:
		e.alu.SWAP(inst.Rd)
	case insts.OpADIW:
		e.alu.ADIW(inst.Rd, inst.K)
	case insts.OpSBIW:
		e.alu.SBIW(inst.Rd, inst.K)
	case insts.OpMUL:
		e.alu.MUL(inst.Rd, inst.Rr)
	case insts.OpMULS:
		e.alu.MULS(inst.Rd, inst.Rr)
	case insts.OpMULSU:
		e.alu.MULSU(inst.Rd, inst.Rr)
	case insts.OpFMUL:
		e.alu.FMUL(inst.Rd, inst.Rr)
	case insts.OpFMULS:
		e.alu.FMULS(inst.Rd, inst.Rr)
	case insts.OpFMULSU:
		e.alu.FMULSU(inst.Rd, inst.Rr)
	case insts.OpMOV:
		e.alu.MOV(inst.Rd, inst.Rr)
	case insts.OpMOVW:
		e.alu.MOVW(inst.Rd, inst.Rr)
	case insts.OpLDI:
		e.alu.LDI(inst.Rd, inst.K)
	case insts.OpBST:
		e.alu.BST(inst.Rd, inst.Bit)
	case insts.OpBLD:
		e.alu.BLD(inst.Rd, inst.Bit)

	// Data transfer
	case insts.OpLD, insts.OpLDD:
		err = e.lsu.LD(inst.Rd, inst.Ptr, inst.Q)
	case insts.OpST, insts.OpSTD:
		err = e.lsu.ST(inst.Rd, inst.Ptr, inst.Q)
	case insts.OpLDS:
		err = e.lsu.LDS(inst.Rd, inst.Address)
	case insts.OpSTS:
		err = e.lsu.STS(inst.Rd, inst.Address)
	case insts.OpLPM:
		err = e.lsu.LPM(inst.Rd, inst.Ptr)
	case insts.OpPUSH:
		err = e.Push(e.regFile.get(inst.Rd))
	case insts.OpPOP:
		var v uint8
		v, err = e.Pop()
		if err == nil {
			e.regFile.set(inst.Rd, v)
		}

	// I/O
	case insts.OpIN:
		e.regFile.set(inst.Rd, e.readIO(ioAddr(inst.A)))
	case insts.OpOUT:
		e.writeIO(ioAddr(inst.A), e.regFile.get(inst.Rd))
	case insts.OpSBI:
		e.writeIOBit(ioAddr(inst.A), inst.Bit, true)
	case insts.OpCBI:
		e.writeIOBit(ioAddr(inst.A), inst.Bit, false)

	// Skips
	case insts.OpCPSE:
		if e.regFile.get(inst.Rd) == e.regFile.get(inst.Rr) {
			return e.skip()
		}
	case insts.OpSBRC:
		if e.regFile.get(inst.Rd)&(1<<inst.Bit) == 0 {
			return e.skip()
		}
	case insts.OpSBRS:
		if e.regFile.get(inst.Rd)&(1<<inst.Bit) != 0 {
			return e.skip()
		}
	case insts.OpSBIC:
		if e.readIO(ioAddr(inst.A))&(1<<inst.Bit) == 0 {
			return e.skip()
		}
	case insts.OpSBIS:
		if e.readIO(ioAddr(inst.A))&(1<<inst.Bit) != 0 {
			return e.skip()
		}

	// Program flow
	case insts.OpRJMP:
		e.branchUnit.RJMP(inst.Offset)
	case insts.OpJMP:
		e.branchUnit.JMP(inst.Address)
	case insts.OpIJMP:
		e.branchUnit.IJMP()
	case insts.OpRCALL:
		err = e.pushReturn(e.regFile.PC() >> 1)
		if err == nil {
			e.branchUnit.RJMP(inst.Offset)
		}
	case insts.OpCALL:
		err = e.pushReturn(e.regFile.PC() >> 1)
		if err == nil {
			e.branchUnit.JMP(inst.Address)
		}
	case insts.OpICALL:
		err = e.pushReturn(e.regFile.PC() >> 1)
		if err == nil {
			e.branchUnit.IJMP()
		}
	case insts.OpRET, insts.OpRETI:
		var word uint32
		word, err = e.popReturn()
		if err == nil {
			e.branchUnit.JMP(word)
			if inst.Op == insts.OpRETI {
				e.regFile.SetFlag(FlagI)
				e.interruptShadow = true
			}
		}
	case insts.OpBRBS:
		return StepResult{Taken: e.branchUnit.Branch(inst.Bit, true, inst.Offset)}
	case insts.OpBRBC:
		return StepResult{Taken: e.branchUnit.Branch(inst.Bit, false, inst.Offset)}

	// Status register
	case insts.OpBSET:
		e.regFile.SetFlag(Flag(inst.Bit))
		if Flag(inst.Bit) == FlagI {
			e.interruptShadow = true
		}
	case insts.OpBCLR:
		e.regFile.ClearFlag(Flag(inst.Bit))

	// MCU control
	case insts.OpSLEEP:
		e.sleeping = true
	case insts.OpNOP, insts.OpWDR, insts.OpBREAK:

	default:
		e.unknownCount++
		e.logger.WithFields(logrus.Fields{
			"pc":     fmt.Sprintf("0x%04x", e.curPC),
			"opcode": fmt.Sprintf("0x%04x", inst.Opcode),
		}).Warn("unknown opcode, executing as nop")
		return StepResult{Unknown: true}
	}

	if err != nil {
		return StepResult{Err: err}
	}

	return StepResult{}
}

// skip steps over the next instruction, which may be one or two words.
func (e *Emulator) skip() StepResult {
	pc := e.regFile.PC()

	opcode, err := e.memory.ReadFlashWord(pc)
	if err != nil {
		return StepResult{Err: e.annotate(err)}
	}

	words := uint8(1)
	if insts.IsTwoWord(opcode) {
		words = 2
	}
	e.regFile.SetPC(pc + 2*uint32(words))

	return StepResult{Skipped: words}
}

// ioAddr converts an I/O address (IN/OUT/SBI/CBI operand) to a data address.
func ioAddr(a uint8) uint16 {
	return uint16(a) + 0x20
}
