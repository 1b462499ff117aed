// Package emu provides functional AVR emulation.
package emu

import "fmt"

// Flag is a bit position in the status register (SREG).
type Flag uint8

// SREG flag bits.
const (
	FlagC Flag = iota // Carry
	FlagZ             // Zero
	FlagN             // Negative
	FlagV             // Two's complement overflow
	FlagS             // Sign, N xor V
	FlagH             // Half carry
	FlagT             // Bit copy storage
	FlagI             // Global interrupt enable
)

// NumRegisters is the number of general-purpose registers.
const NumRegisters = 32

// Index register pairs.
const (
	RegX uint8 = 26
	RegY uint8 = 28
	RegZ uint8 = 30
)

// RegFile represents the AVR register file.
// It contains 32 general-purpose 8-bit registers (r0-r31), the status
// register (SREG), the stack pointer and the program counter. Register
// pairs r27:r26, r29:r28 and r31:r30 double as the X, Y and Z pointers.
type RegFile struct {
	r    [NumRegisters]uint8
	sreg uint8
	sp   uint16
	pc   uint32 // byte address
}

// ReadRegister reads general-purpose register i.
func (rf *RegFile) ReadRegister(i int) (uint8, error) {
	if i < 0 || i >= NumRegisters {
		return 0, fmt.Errorf("%w: r%d", ErrRegisterOutOfRange, i)
	}
	return rf.r[i], nil
}

// WriteRegister writes general-purpose register i.
func (rf *RegFile) WriteRegister(i int, v uint8) error {
	if i < 0 || i >= NumRegisters {
		return fmt.Errorf("%w: r%d", ErrRegisterOutOfRange, i)
	}
	rf.r[i] = v
	return nil
}

// get and set are the decoder-side accessors. Decoded register fields are at
// most five bits wide, so they never leave the register file.
func (rf *RegFile) get(i uint8) uint8 {
	return rf.r[i&0x1F]
}

func (rf *RegFile) set(i uint8, v uint8) {
	rf.r[i&0x1F] = v
}

// Pair reads the 16-bit value of the register pair starting at lo.
func (rf *RegFile) Pair(lo uint8) uint16 {
	return uint16(rf.get(lo+1))<<8 | uint16(rf.get(lo))
}

// SetPair writes a 16-bit value to the register pair starting at lo.
func (rf *RegFile) SetPair(lo uint8, v uint16) {
	rf.set(lo, uint8(v))
	rf.set(lo+1, uint8(v>>8))
}

// Flag reports whether the given SREG flag is set.
func (rf *RegFile) Flag(f Flag) bool {
	return rf.sreg&(1<<f) != 0
}

// SetFlag sets the given SREG flag.
func (rf *RegFile) SetFlag(f Flag) {
	rf.sreg |= 1 << f
}

// ClearFlag clears the given SREG flag.
func (rf *RegFile) ClearFlag(f Flag) {
	rf.sreg &^= 1 << f
}

// PutFlag sets or clears the given SREG flag.
func (rf *RegFile) PutFlag(f Flag, on bool) {
	if on {
		rf.SetFlag(f)
	} else {
		rf.ClearFlag(f)
	}
}

// SREG returns the raw status register.
func (rf *RegFile) SREG() uint8 {
	return rf.sreg
}

// SetSREG overwrites the raw status register.
func (rf *RegFile) SetSREG(v uint8) {
	rf.sreg = v
}

// UpdateZeroNegativeFlags is the post-operation hook shared by every
// arithmetic and logical instruction. Z is set iff the 8-bit result is zero
// and N iff bit 7 of the result is set.
func (rf *RegFile) UpdateZeroNegativeFlags(result uint8) {
	rf.PutFlag(FlagZ, result == 0)
	rf.PutFlag(FlagN, result&0x80 != 0)
}

// updateSign recomputes S = N xor V. It runs after every instruction that
// changes N or V.
func (rf *RegFile) updateSign() {
	rf.PutFlag(FlagS, rf.Flag(FlagN) != rf.Flag(FlagV))
}

// PC returns the program counter as a byte address.
func (rf *RegFile) PC() uint32 {
	return rf.pc
}

// SetPC sets the program counter to a byte address.
func (rf *RegFile) SetPC(pc uint32) {
	rf.pc = pc
}

// SP returns the stack pointer.
func (rf *RegFile) SP() uint16 {
	return rf.sp
}

// SetSP sets the stack pointer.
func (rf *RegFile) SetSP(sp uint16) {
	rf.sp = sp
}

// Flags is a decoded view of SREG.
type Flags struct {
	C, Z, N, V, S, H, T, I bool
}

// FlagsSnapshot returns the decoded status flags.
func (rf *RegFile) FlagsSnapshot() Flags {
	return Flags{
		C: rf.Flag(FlagC),
		Z: rf.Flag(FlagZ),
		N: rf.Flag(FlagN),
		V: rf.Flag(FlagV),
		S: rf.Flag(FlagS),
		H: rf.Flag(FlagH),
		T: rf.Flag(FlagT),
		I: rf.Flag(FlagI),
	}
}

// RegisterSnapshot is a copy of the architectural register state.
type RegisterSnapshot struct {
	R    [NumRegisters]uint8
	PC   uint32
	SP   uint16
	SREG uint8
}

// Snapshot returns a copy of the register state.
func (rf *RegFile) Snapshot() RegisterSnapshot {
	return RegisterSnapshot{R: rf.r, PC: rf.pc, SP: rf.sp, SREG: rf.sreg}
}

func (rf *RegFile) reset(sp uint16) {
	*rf = RegFile{sp: sp}
}
