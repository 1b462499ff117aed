package emu

// ReadData reads a byte from the data space. Addresses below the I/O window
// alias the register file, the I/O window is routed to the core registers
// or the IOBus, and the rest is SRAM.
func (e *Emulator) ReadData(addr uint16) (uint8, error) {
	layout := e.memory.Layout()

	switch {
	case addr < layout.IOStart:
		return e.regFile.get(uint8(addr)), nil
	case addr < layout.SRAMStart:
		return e.readIO(addr), nil
	default:
		v, err := e.memory.ReadSRAM(addr)
		if err != nil {
			return 0, e.annotate(err)
		}
		return v, nil
	}
}

// WriteData writes a byte to the data space.
func (e *Emulator) WriteData(addr uint16, v uint8) error {
	layout := e.memory.Layout()

	switch {
	case addr < layout.IOStart:
		e.regFile.set(uint8(addr), v)
		return nil
	case addr < layout.SRAMStart:
		e.writeIO(addr, v)
		return nil
	default:
		return e.annotate(e.memory.WriteSRAM(addr, v))
	}
}

func (e *Emulator) readIO(addr uint16) uint8 {
	switch addr {
	case AddrSPL:
		return uint8(e.regFile.SP())
	case AddrSPH:
		return uint8(e.regFile.SP() >> 8)
	case AddrSREG:
		return e.regFile.SREG()
	default:
		return e.io.ReadIO(addr)
	}
}

func (e *Emulator) writeIO(addr uint16, v uint8) {
	switch addr {
	case AddrSPL:
		e.regFile.SetSP(e.regFile.SP()&0xFF00 | uint16(v))
	case AddrSPH:
		e.regFile.SetSP(e.regFile.SP()&0x00FF | uint16(v)<<8)
	case AddrSREG:
		if v&(1<<FlagI) != 0 && !e.regFile.Flag(FlagI) {
			e.interruptShadow = true
		}
		e.regFile.SetSREG(v)
	default:
		e.io.WriteIO(addr, v)
	}
}

func (e *Emulator) writeIOBit(addr uint16, bit uint8, set bool) {
	switch addr {
	case AddrSPL, AddrSPH, AddrSREG:
		v := e.readIO(addr)
		if set {
			v |= 1 << bit
		} else {
			v &^= 1 << bit
		}
		e.writeIO(addr, v)
	default:
		e.io.WriteIOBit(addr, bit, set)
	}
}

// annotate fills in the program counter of a memory fault with the address
// of the instruction being executed.
func (e *Emulator) annotate(err error) error {
	if aerr, ok := err.(*AddressOutOfRangeError); ok {
		aerr.PC = e.curPC
	}
	return err
}
