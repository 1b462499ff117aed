package emu

// Data addresses of the core registers in the I/O window. The CPU decodes
// these itself; every other I/O address is forwarded to the IOBus.
const (
	AddrSPL  uint16 = 0x5D
	AddrSPH  uint16 = 0x5E
	AddrSREG uint16 = 0x5F
)

// IOBus is the interface for the memory-mapped peripheral registers.
// Addresses are data-space addresses in the I/O window (0x20-0xFF); IN/OUT
// and the bit instructions add 0x20 to their I/O address before calling it.
type IOBus interface {
	// ReadIO reads an I/O register.
	ReadIO(addr uint16) uint8

	// WriteIO writes an I/O register.
	WriteIO(addr uint16, v uint8)

	// WriteIOBit sets or clears a single bit, as done by SBI and CBI.
	// Registers with write-one semantics (flag registers, PINx toggles)
	// must only act on the addressed bit.
	WriteIOBit(addr uint16, bit uint8, set bool)
}

// ScratchIO is an IOBus with no peripherals: every register is plain
// storage that reads back its last written value.
type ScratchIO struct {
	regs [0x100]uint8
}

// NewScratchIO creates an inert I/O bus.
func NewScratchIO() *ScratchIO {
	return &ScratchIO{}
}

// ReadIO returns the last value written to addr.
func (s *ScratchIO) ReadIO(addr uint16) uint8 {
	return s.regs[uint8(addr)]
}

// WriteIO stores v at addr.
func (s *ScratchIO) WriteIO(addr uint16, v uint8) {
	s.regs[uint8(addr)] = v
}

// WriteIOBit sets or clears one bit at addr.
func (s *ScratchIO) WriteIOBit(addr uint16, bit uint8, set bool) {
	if set {
		s.regs[uint8(addr)] |= 1 << bit
	} else {
		s.regs[uint8(addr)] &^= 1 << bit
	}
}
