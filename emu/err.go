package emu

import (
	"errors"
	"fmt"
)

var (
	// ErrRegisterOutOfRange is returned for register indices outside r0-r31.
	ErrRegisterOutOfRange = errors.New("register out of range")

	// ErrAddressOutOfRange is returned for flash or data accesses beyond
	// the end of the memory. It is fatal to a run.
	ErrAddressOutOfRange = errors.New("address out of range")

	// ErrStackOverflow is returned when a push moves the stack pointer
	// below the start of SRAM.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrStackUnderflow is returned when a pop moves the stack pointer
	// above the end of SRAM.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrInstructionLimit is returned by Step once the configured maximum
	// instruction count has been executed.
	ErrInstructionLimit = errors.New("max instructions reached")
)

// Space identifies an address space.
type Space uint8

// Address spaces.
const (
	SpaceFlash Space = iota
	SpaceData
)

func (s Space) String() string {
	if s == SpaceFlash {
		return "flash"
	}
	return "data"
}

// AddressOutOfRangeError carries the failing address and the program
// counter of the instruction that caused it.
type AddressOutOfRangeError struct {
	Space Space
	Addr  uint32
	PC    uint32
}

func (err *AddressOutOfRangeError) Error() string {
	return fmt.Sprintf("%s address 0x%04x out of range at PC=0x%04x", err.Space, err.Addr, err.PC)
}

func (err *AddressOutOfRangeError) Is(target error) bool {
	return target == ErrAddressOutOfRange
}

// StackError reports a stack pointer that left SRAM.
type StackError struct {
	Overflow bool
	SP       uint16
	PC       uint32
}

func (err *StackError) Error() string {
	kind := "underflow"
	if err.Overflow {
		kind = "overflow"
	}
	return fmt.Sprintf("stack %s: SP=0x%04x at PC=0x%04x", kind, err.SP, err.PC)
}

func (err *StackError) Is(target error) bool {
	if err.Overflow {
		return target == ErrStackOverflow
	}
	return target == ErrStackUnderflow
}
