package emu

// Push writes v at [SP] and decrements SP. The stack grows down from RAMEnd;
// SP always names the next free byte.
func (e *Emulator) Push(v uint8) error {
	sp := e.regFile.SP()
	layout := e.memory.Layout()

	if sp < layout.SRAMStart || sp > layout.RAMEnd {
		return &StackError{Overflow: true, SP: sp, PC: e.curPC}
	}

	if err := e.memory.WriteSRAM(sp, v); err != nil {
		return e.annotate(err)
	}
	e.regFile.SetSP(sp - 1)

	return nil
}

// Pop increments SP and reads [SP].
func (e *Emulator) Pop() (uint8, error) {
	sp := e.regFile.SP() + 1
	layout := e.memory.Layout()

	if sp > layout.RAMEnd || sp < layout.SRAMStart {
		return 0, &StackError{SP: sp, PC: e.curPC}
	}

	v, err := e.memory.ReadSRAM(sp)
	if err != nil {
		return 0, e.annotate(err)
	}
	e.regFile.SetSP(sp)

	return v, nil
}

// pushReturn pushes a word address as a return address, high byte first.
func (e *Emulator) pushReturn(word uint32) error {
	if err := e.Push(uint8(word >> 8)); err != nil {
		return err
	}
	return e.Push(uint8(word))
}

// popReturn pops a return address, low byte first, and returns it as a word
// address.
func (e *Emulator) popReturn() (uint32, error) {
	lo, err := e.Pop()
	if err != nil {
		return 0, err
	}
	hi, err := e.Pop()
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<8 | uint32(lo), nil
}
