package emu

// Layout describes the memory map of the target chip.
type Layout struct {
	// FlashSize is the program memory size in bytes.
	FlashSize uint32
	// IOStart is the first data address of the I/O register window.
	// Addresses below it alias the register file.
	IOStart uint16
	// SRAMStart is the first data address of internal SRAM. Addresses in
	// [IOStart, SRAMStart) are I/O registers.
	SRAMStart uint16
	// RAMEnd is the last valid data address and the reset stack pointer.
	RAMEnd uint16
}

// ATmega328P returns the memory layout of the ATmega328P (Arduino Uno):
// 32 KiB flash, 32 registers, 64 + 160 I/O registers and 2 KiB SRAM.
func ATmega328P() Layout {
	return Layout{
		FlashSize: 32 * 1024,
		IOStart:   0x0020,
		SRAMStart: 0x0100,
		RAMEnd:    0x08FF,
	}
}

// Memory holds program flash and data SRAM. All accesses are bounds checked
// and fail with an *AddressOutOfRangeError instead of wrapping.
type Memory struct {
	layout Layout
	flash  []byte
	sram   []byte
}

// NewMemory creates flash and SRAM sized for the layout. Flash is erased to
// 0xFF like a blank part.
func NewMemory(layout Layout) *Memory {
	m := &Memory{
		layout: layout,
		flash:  make([]byte, layout.FlashSize),
		sram:   make([]byte, int(layout.RAMEnd)-int(layout.SRAMStart)+1),
	}
	m.EraseFlash()
	return m
}

// Layout returns the memory layout.
func (m *Memory) Layout() Layout {
	return m.layout
}

// FlashSize returns the flash size in bytes.
func (m *Memory) FlashSize() uint32 {
	return uint32(len(m.flash))
}

// ReadFlash reads one byte of program memory.
func (m *Memory) ReadFlash(addr uint32) (uint8, error) {
	if addr >= uint32(len(m.flash)) {
		return 0, &AddressOutOfRangeError{Space: SpaceFlash, Addr: addr}
	}
	return m.flash[addr], nil
}

// ReadFlashWord reads the little-endian program word at byte address addr.
func (m *Memory) ReadFlashWord(addr uint32) (uint16, error) {
	if addr+1 >= uint32(len(m.flash)) {
		return 0, &AddressOutOfRangeError{Space: SpaceFlash, Addr: addr}
	}
	return uint16(m.flash[addr]) | uint16(m.flash[addr+1])<<8, nil
}

// LoadFlash copies data into flash at byte address addr.
func (m *Memory) LoadFlash(addr uint32, data []byte) error {
	end := uint64(addr) + uint64(len(data))
	if end > uint64(len(m.flash)) {
		return &AddressOutOfRangeError{Space: SpaceFlash, Addr: uint32(end - 1)}
	}
	copy(m.flash[addr:], data)
	return nil
}

// EraseFlash sets every flash byte to 0xFF.
func (m *Memory) EraseFlash() {
	for i := range m.flash {
		m.flash[i] = 0xFF
	}
}

// ReadSRAM reads one byte of internal SRAM by data address.
func (m *Memory) ReadSRAM(addr uint16) (uint8, error) {
	if addr < m.layout.SRAMStart || addr > m.layout.RAMEnd {
		return 0, &AddressOutOfRangeError{Space: SpaceData, Addr: uint32(addr)}
	}
	return m.sram[addr-m.layout.SRAMStart], nil
}

// WriteSRAM writes one byte of internal SRAM by data address.
func (m *Memory) WriteSRAM(addr uint16, v uint8) error {
	if addr < m.layout.SRAMStart || addr > m.layout.RAMEnd {
		return &AddressOutOfRangeError{Space: SpaceData, Addr: uint32(addr)}
	}
	m.sram[addr-m.layout.SRAMStart] = v
	return nil
}

// ClearSRAM zeroes SRAM.
func (m *Memory) ClearSRAM() {
	for i := range m.sram {
		m.sram[i] = 0
	}
}
