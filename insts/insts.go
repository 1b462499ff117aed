// Package insts provides AVR instruction definitions and decoding.
//
// This package implements decoding of AVR (ATmega328P class) machine code
// into structured instruction representations. Decoding is pure: it never
// touches processor state. It supports:
//   - Arithmetic and logic: ADD, ADC, SUB, SBC, AND, OR, EOR, COM, NEG, INC,
//     DEC, the immediate forms, ADIW/SBIW and the multiply family
//   - Data transfer: LDI, MOV, MOVW, LDS, STS, LD/ST through X, Y and Z,
//     LDD/STD, LPM, IN, OUT, PUSH, POP
//   - Control flow: RJMP, JMP, IJMP, RCALL, CALL, ICALL, RET, RETI, BRBS,
//     BRBC, CPSE and the skip instructions
//   - Bit and status operations: SBI, CBI, BSET, BCLR, BST, BLD, LSR, ROR,
//     ASR, SWAP
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xE2AA, 0) // LDI r26, 0x2A
//	fmt.Printf("Op: %v, Rd: %d, K: %d\n", inst.Op, inst.Rd, inst.K)
package insts
