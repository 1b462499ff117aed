package benchmarks

import (
	"fmt"

	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/insts"
)

// Shorthand constructors keep the programs below readable.

func ldi(rd, k uint8) insts.Instruction {
	return insts.Instruction{Op: insts.OpLDI, Rd: rd, K: k}
}

func inc(rd uint8) insts.Instruction {
	return insts.Instruction{Op: insts.OpINC, Rd: rd}
}

func sleep() insts.Instruction {
	return insts.Instruction{Op: insts.OpSLEEP}
}

func expectReg(regs emu.RegisterSnapshot, r int, want uint8) error {
	if regs.R[r] != want {
		return fmt.Errorf("r%d = 0x%02X, want 0x%02X", r, regs.R[r], want)
	}
	return nil
}

// GetMicrobenchmarks returns the calibration suite. Each program covers one
// instruction class and ends in SLEEP with interrupts disabled.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		delayLoop(),
		memorySequential(),
		functionCalls(),
		callJumpLong(),
		skipChain(),
		mulAccumulate(),
		pushPop(),
	}
}

// GetCoreBenchmarks returns the benchmarks that exercise control flow, the
// part of the cycle model most sensitive to regressions.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		delayLoop(),
		functionCalls(),
		skipChain(),
	}
}

// arithmeticSequential measures single-cycle ALU throughput.
func arithmeticSequential() Benchmark {
	program := []insts.Instruction{ldi(16, 0)}
	for i := 0; i < 20; i++ {
		program = append(program, inc(16))
	}
	program = append(program, sleep())

	return Benchmark{
		Name:           "arithmetic_sequential",
		Description:    "20 independent INCs - ALU throughput",
		Program:        program,
		ExpectedCycles: 22,
		Verify: func(regs emu.RegisterSnapshot) error {
			return expectReg(regs, 16, 20)
		},
	}
}

// delayLoop is the SBIW/BRNE loop avr-libc uses for busy waits.
func delayLoop() Benchmark {
	return Benchmark{
		Name:        "delay_loop",
		Description: "100 iterations of SBIW/BRNE - taken and not-taken branches",
		Program: []insts.Instruction{
			ldi(24, 100),
			ldi(25, 0),
			{Op: insts.OpSBIW, Rd: 24, K: 1},
			{Op: insts.OpBRBC, Bit: 1, Offset: -2},
			sleep(),
		},
		// 2 + 100*SBIW(2) + 99*taken(2) + 1*not-taken(1) + SLEEP
		ExpectedCycles: 402,
		Verify: func(regs emu.RegisterSnapshot) error {
			if err := expectReg(regs, 24, 0); err != nil {
				return err
			}
			return expectReg(regs, 25, 0)
		},
	}
}

// memorySequential stores and reloads a block of SRAM through X.
func memorySequential() Benchmark {
	program := []insts.Instruction{
		ldi(26, 0x00),
		ldi(27, 0x01),
		ldi(16, 0x55),
	}
	for i := 0; i < 8; i++ {
		program = append(program, insts.Instruction{Op: insts.OpST, Rd: 16, Ptr: insts.PtrXInc})
	}
	program = append(program, ldi(26, 0x00))
	for i := 0; i < 8; i++ {
		program = append(program, insts.Instruction{Op: insts.OpLD, Rd: 17, Ptr: insts.PtrXInc})
	}
	program = append(program, sleep())

	return Benchmark{
		Name:           "memory_sequential",
		Description:    "8 ST X+ then 8 LD X+ - data space access",
		Program:        program,
		ExpectedCycles: 37,
		Verify: func(regs emu.RegisterSnapshot) error {
			if err := expectReg(regs, 17, 0x55); err != nil {
				return err
			}
			return expectReg(regs, 26, 0x08)
		},
	}
}

// functionCalls calls a two-instruction leaf function three times.
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "3 RCALL/RET pairs - call and return overhead",
		Program: []insts.Instruction{
			{Op: insts.OpRCALL, Offset: 3}, // 0x00 -> 0x08
			{Op: insts.OpRCALL, Offset: 2}, // 0x02 -> 0x08
			{Op: insts.OpRCALL, Offset: 1}, // 0x04 -> 0x08
			sleep(),                        // 0x06
			inc(16),                        // 0x08
			{Op: insts.OpRET},
		},
		ExpectedCycles: 25,
		Verify: func(regs emu.RegisterSnapshot) error {
			return expectReg(regs, 16, 3)
		},
	}
}

// callJumpLong exercises the two-word CALL and JMP.
func callJumpLong() Benchmark {
	return Benchmark{
		Name:        "call_jump_long",
		Description: "CALL, RET and JMP - absolute control transfer",
		Program: []insts.Instruction{
			{Op: insts.OpCALL, Address: 4}, // 0x00 -> 0x08
			{Op: insts.OpJMP, Address: 6},  // 0x04 -> 0x0C
			ldi(16, 7),                     // 0x08
			{Op: insts.OpRET},              // 0x0A
			sleep(),                        // 0x0C
		},
		ExpectedCycles: 13,
		Verify: func(regs emu.RegisterSnapshot) error {
			return expectReg(regs, 16, 7)
		},
	}
}

// skipChain covers skips over one-word and two-word instructions and a
// skip that does not fire.
func skipChain() Benchmark {
	return Benchmark{
		Name:        "skip_chain",
		Description: "SBRS, SBRC and CPSE - skip cost by skipped width",
		Program: []insts.Instruction{
			ldi(16, 1),
			{Op: insts.OpSBRS, Rd: 16, Bit: 0},
			ldi(17, 0xFF),
			{Op: insts.OpSBRC, Rd: 16, Bit: 0},
			ldi(18, 0x11),
			{Op: insts.OpCPSE, Rd: 16, Rr: 16},
			{Op: insts.OpSTS, Rd: 16, Address: 0x0100},
			sleep(),
		},
		ExpectedCycles: 9,
		Verify: func(regs emu.RegisterSnapshot) error {
			if err := expectReg(regs, 17, 0); err != nil {
				return err
			}
			return expectReg(regs, 18, 0x11)
		},
	}
}

// mulAccumulate multiplies two bytes and adds to the product pair.
func mulAccumulate() Benchmark {
	return Benchmark{
		Name:        "mul_accumulate",
		Description: "MUL, MOVW and ADIW - two-cycle arithmetic",
		Program: []insts.Instruction{
			ldi(16, 12),
			ldi(17, 11),
			{Op: insts.OpMUL, Rd: 16, Rr: 17},
			{Op: insts.OpMOVW, Rd: 24, Rr: 0},
			{Op: insts.OpADIW, Rd: 24, K: 10},
			sleep(),
		},
		ExpectedCycles: 8,
		Verify: func(regs emu.RegisterSnapshot) error {
			if err := expectReg(regs, 24, 142); err != nil {
				return err
			}
			return expectReg(regs, 25, 0)
		},
	}
}

// pushPop round-trips a byte through the stack.
func pushPop() Benchmark {
	return Benchmark{
		Name:        "push_pop",
		Description: "PUSH and POP - stack access",
		Program: []insts.Instruction{
			ldi(16, 0xAA),
			{Op: insts.OpPUSH, Rd: 16},
			{Op: insts.OpPOP, Rd: 17},
			sleep(),
		},
		ExpectedCycles: 6,
		Verify: func(regs emu.RegisterSnapshot) error {
			return expectReg(regs, 17, 0xAA)
		},
	}
}
