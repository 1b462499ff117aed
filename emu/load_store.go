package emu

import "github.com/sarchlab/avrsim/insts"

// dataBus is the data-space view the load/store unit goes through, so that
// register, I/O and SRAM addresses are all routed the same way.
type dataBus interface {
	ReadData(addr uint16) (uint8, error)
	WriteData(addr uint16, v uint8) error
}

// LoadStoreUnit implements AVR load and store operations.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
	bus     dataBus
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file, flash memory and data bus.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory, bus dataBus) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
		bus:     bus,
	}
}

// address resolves the effective address of an indirect access and applies
// the pointer pre-decrement. The post-increment is applied by commit.
func (lsu *LoadStoreUnit) address(ptr insts.PtrMode, q uint8) uint16 {
	base := ptr.Base()
	p := lsu.regFile.Pair(base)
	if ptr.PreDecrement() {
		p--
		lsu.regFile.SetPair(base, p)
	}
	return p + uint16(q)
}

func (lsu *LoadStoreUnit) commit(ptr insts.PtrMode) {
	if ptr.PostIncrement() {
		base := ptr.Base()
		lsu.regFile.SetPair(base, lsu.regFile.Pair(base)+1)
	}
}

// LD loads Rd from the data space through X, Y or Z (LD and LDD).
func (lsu *LoadStoreUnit) LD(rd uint8, ptr insts.PtrMode, q uint8) error {
	v, err := lsu.bus.ReadData(lsu.address(ptr, q))
	if err != nil {
		return err
	}
	lsu.commit(ptr)
	lsu.regFile.set(rd, v)
	return nil
}

// ST stores Rr to the data space through X, Y or Z (ST and STD).
func (lsu *LoadStoreUnit) ST(rr uint8, ptr insts.PtrMode, q uint8) error {
	v := lsu.regFile.get(rr)
	if err := lsu.bus.WriteData(lsu.address(ptr, q), v); err != nil {
		return err
	}
	lsu.commit(ptr)
	return nil
}

// LDS loads Rd from an absolute data address.
func (lsu *LoadStoreUnit) LDS(rd uint8, addr uint32) error {
	v, err := lsu.bus.ReadData(uint16(addr))
	if err != nil {
		return err
	}
	lsu.regFile.set(rd, v)
	return nil
}

// STS stores Rr to an absolute data address.
func (lsu *LoadStoreUnit) STS(rr uint8, addr uint32) error {
	return lsu.bus.WriteData(uint16(addr), lsu.regFile.get(rr))
}

// LPM loads Rd from the flash byte addressed by Z.
func (lsu *LoadStoreUnit) LPM(rd uint8, ptr insts.PtrMode) error {
	v, err := lsu.memory.ReadFlash(uint32(lsu.regFile.Pair(RegZ)))
	if err != nil {
		return err
	}
	lsu.commit(ptr)
	lsu.regFile.set(rd, v)
	return nil
}
