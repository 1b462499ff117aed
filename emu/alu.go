package emu

// ALU implements AVR arithmetic and logic operations.
//
// Every operation that produces an 8-bit result finishes through
// RegFile.UpdateZeroNegativeFlags and then recomputes S. C, V and H are set
// per instruction as the AVR instruction set defines them.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

func (a *ALU) carry() uint8 {
	if a.regFile.Flag(FlagC) {
		return 1
	}
	return 0
}

// ADD performs Rd = Rd + Rr.
func (a *ALU) ADD(rd, rr uint8) {
	a.add(rd, a.regFile.get(rr), 0)
}

// ADC performs Rd = Rd + Rr + C.
func (a *ALU) ADC(rd, rr uint8) {
	a.add(rd, a.regFile.get(rr), a.carry())
}

func (a *ALU) add(rd, s, c uint8) {
	d := a.regFile.get(rd)
	r := d + s + c
	a.regFile.set(rd, r)
	a.setAddFlags(d, s, r)
}

// SUB performs Rd = Rd - Rr.
func (a *ALU) SUB(rd, rr uint8) {
	a.regFile.set(rd, a.sub(a.regFile.get(rd), a.regFile.get(rr), 0, false))
}

// SUBI performs Rd = Rd - K.
func (a *ALU) SUBI(rd, k uint8) {
	a.regFile.set(rd, a.sub(a.regFile.get(rd), k, 0, false))
}

// SBC performs Rd = Rd - Rr - C. Z is only kept set if it was already set.
func (a *ALU) SBC(rd, rr uint8) {
	a.regFile.set(rd, a.sub(a.regFile.get(rd), a.regFile.get(rr), a.carry(), true))
}

// SBCI performs Rd = Rd - K - C.
func (a *ALU) SBCI(rd, k uint8) {
	a.regFile.set(rd, a.sub(a.regFile.get(rd), k, a.carry(), true))
}

// CP compares Rd with Rr.
func (a *ALU) CP(rd, rr uint8) {
	a.sub(a.regFile.get(rd), a.regFile.get(rr), 0, false)
}

// CPC compares Rd with Rr and the carry.
func (a *ALU) CPC(rd, rr uint8) {
	a.sub(a.regFile.get(rd), a.regFile.get(rr), a.carry(), true)
}

// CPI compares Rd with an immediate.
func (a *ALU) CPI(rd, k uint8) {
	a.sub(a.regFile.get(rd), k, 0, false)
}

func (a *ALU) sub(d, s, c uint8, keepZ bool) uint8 {
	r := d - s - c
	a.setSubFlags(d, s, r, keepZ)
	return r
}

// AND performs Rd = Rd & Rr.
func (a *ALU) AND(rd, rr uint8) {
	a.logic(rd, a.regFile.get(rd)&a.regFile.get(rr))
}

// ANDI performs Rd = Rd & K.
func (a *ALU) ANDI(rd, k uint8) {
	a.logic(rd, a.regFile.get(rd)&k)
}

// OR performs Rd = Rd | Rr.
func (a *ALU) OR(rd, rr uint8) {
	a.logic(rd, a.regFile.get(rd)|a.regFile.get(rr))
}

// ORI performs Rd = Rd | K.
func (a *ALU) ORI(rd, k uint8) {
	a.logic(rd, a.regFile.get(rd)|k)
}

// EOR performs Rd = Rd ^ Rr.
func (a *ALU) EOR(rd, rr uint8) {
	a.logic(rd, a.regFile.get(rd)^a.regFile.get(rr))
}

func (a *ALU) logic(rd, r uint8) {
	a.regFile.set(rd, r)
	a.regFile.ClearFlag(FlagV)
	a.regFile.UpdateZeroNegativeFlags(r)
	a.regFile.updateSign()
}

// COM performs the one's complement Rd = 0xFF - Rd.
func (a *ALU) COM(rd uint8) {
	r := ^a.regFile.get(rd)
	a.logic(rd, r)
	a.regFile.SetFlag(FlagC)
}

// NEG performs the two's complement Rd = 0x00 - Rd.
func (a *ALU) NEG(rd uint8) {
	d := a.regFile.get(rd)
	a.regFile.set(rd, a.sub(0, d, 0, false))
}

// INC performs Rd = Rd + 1. C is not affected.
func (a *ALU) INC(rd uint8) {
	r := a.regFile.get(rd) + 1
	a.regFile.set(rd, r)
	a.regFile.PutFlag(FlagV, r == 0x80)
	a.regFile.UpdateZeroNegativeFlags(r)
	a.regFile.updateSign()
}

// DEC performs Rd = Rd - 1. C is not affected.
func (a *ALU) DEC(rd uint8) {
	r := a.regFile.get(rd) - 1
	a.regFile.set(rd, r)
	a.regFile.PutFlag(FlagV, r == 0x7F)
	a.regFile.UpdateZeroNegativeFlags(r)
	a.regFile.updateSign()
}

// ASR shifts Rd right one bit, keeping bit 7.
func (a *ALU) ASR(rd uint8) {
	d := a.regFile.get(rd)
	a.shiftRight(rd, d, d&0x80)
}

// LSR shifts Rd right one bit, shifting in zero.
func (a *ALU) LSR(rd uint8) {
	a.shiftRight(rd, a.regFile.get(rd), 0)
}

// ROR rotates Rd right one bit through the carry.
func (a *ALU) ROR(rd uint8) {
	a.shiftRight(rd, a.regFile.get(rd), a.carry()<<7)
}

func (a *ALU) shiftRight(rd, d, top uint8) {
	r := d>>1 | top
	a.regFile.set(rd, r)
	a.regFile.PutFlag(FlagC, d&0x01 != 0)
	a.regFile.UpdateZeroNegativeFlags(r)
	a.regFile.PutFlag(FlagV, a.regFile.Flag(FlagN) != a.regFile.Flag(FlagC))
	a.regFile.updateSign()
}

// SWAP exchanges the nibbles of Rd.
func (a *ALU) SWAP(rd uint8) {
	d := a.regFile.get(rd)
	a.regFile.set(rd, d<<4|d>>4)
}

// ADIW adds an immediate to a register pair.
func (a *ALU) ADIW(rd, k uint8) {
	d := a.regFile.Pair(rd)
	r := d + uint16(k)
	a.regFile.SetPair(rd, r)

	a.regFile.PutFlag(FlagV, d&0x8000 == 0 && r&0x8000 != 0)
	a.regFile.PutFlag(FlagC, d&0x8000 != 0 && r&0x8000 == 0)
	a.setWordFlags(r)
}

// SBIW subtracts an immediate from a register pair.
func (a *ALU) SBIW(rd, k uint8) {
	d := a.regFile.Pair(rd)
	r := d - uint16(k)
	a.regFile.SetPair(rd, r)

	a.regFile.PutFlag(FlagV, d&0x8000 != 0 && r&0x8000 == 0)
	a.regFile.PutFlag(FlagC, d&0x8000 == 0 && r&0x8000 != 0)
	a.setWordFlags(r)
}

func (a *ALU) setWordFlags(r uint16) {
	a.regFile.PutFlag(FlagZ, r == 0)
	a.regFile.PutFlag(FlagN, r&0x8000 != 0)
	a.regFile.updateSign()
}

// MUL performs the unsigned multiply r1:r0 = Rd * Rr.
func (a *ALU) MUL(rd, rr uint8) {
	p := uint16(a.regFile.get(rd)) * uint16(a.regFile.get(rr))
	a.product(p, false)
}

// MULS performs the signed multiply r1:r0 = Rd * Rr.
func (a *ALU) MULS(rd, rr uint8) {
	p := int16(int8(a.regFile.get(rd))) * int16(int8(a.regFile.get(rr)))
	a.product(uint16(p), false)
}

// MULSU multiplies signed Rd with unsigned Rr.
func (a *ALU) MULSU(rd, rr uint8) {
	p := int16(int8(a.regFile.get(rd))) * int16(a.regFile.get(rr))
	a.product(uint16(p), false)
}

// FMUL is the unsigned fractional multiply.
func (a *ALU) FMUL(rd, rr uint8) {
	p := uint16(a.regFile.get(rd)) * uint16(a.regFile.get(rr))
	a.product(p, true)
}

// FMULS is the signed fractional multiply.
func (a *ALU) FMULS(rd, rr uint8) {
	p := int16(int8(a.regFile.get(rd))) * int16(int8(a.regFile.get(rr)))
	a.product(uint16(p), true)
}

// FMULSU is the signed-by-unsigned fractional multiply.
func (a *ALU) FMULSU(rd, rr uint8) {
	p := int16(int8(a.regFile.get(rd))) * int16(a.regFile.get(rr))
	a.product(uint16(p), true)
}

// product stores a 16-bit product in r1:r0. C takes bit 15 of the product
// before the fractional shift.
func (a *ALU) product(p uint16, fractional bool) {
	a.regFile.PutFlag(FlagC, p&0x8000 != 0)
	if fractional {
		p <<= 1
	}
	a.regFile.SetPair(0, p)
	a.regFile.PutFlag(FlagZ, p == 0)
}

// MOV copies Rr to Rd.
func (a *ALU) MOV(rd, rr uint8) {
	a.regFile.set(rd, a.regFile.get(rr))
}

// MOVW copies the register pair starting at Rr to the pair starting at Rd.
func (a *ALU) MOVW(rd, rr uint8) {
	a.regFile.SetPair(rd, a.regFile.Pair(rr))
}

// LDI loads an immediate into Rd.
func (a *ALU) LDI(rd, k uint8) {
	a.regFile.set(rd, k)
}

// BST stores bit b of Rd in T.
func (a *ALU) BST(rd, b uint8) {
	a.regFile.PutFlag(FlagT, a.regFile.get(rd)&(1<<b) != 0)
}

// BLD loads T into bit b of Rd.
func (a *ALU) BLD(rd, b uint8) {
	d := a.regFile.get(rd)
	if a.regFile.Flag(FlagT) {
		d |= 1 << b
	} else {
		d &^= 1 << b
	}
	a.regFile.set(rd, d)
}

// setAddFlags sets H, V, C, N, Z and S after d + s (+ carry) = r.
func (a *ALU) setAddFlags(d, s, r uint8) {
	carries := d&s | s&^r | ^r&d
	a.regFile.PutFlag(FlagH, carries&0x08 != 0)
	a.regFile.PutFlag(FlagC, carries&0x80 != 0)
	a.regFile.PutFlag(FlagV, (d&s&^r|^d&^s&r)&0x80 != 0)
	a.regFile.UpdateZeroNegativeFlags(r)
	a.regFile.updateSign()
}

// setSubFlags sets H, V, C, N, Z and S after d - s (- carry) = r. With keepZ
// a zero result leaves Z unchanged, so multi-byte compares chain correctly.
func (a *ALU) setSubFlags(d, s, r uint8, keepZ bool) {
	borrows := ^d&s | s&r | r&^d
	a.regFile.PutFlag(FlagH, borrows&0x08 != 0)
	a.regFile.PutFlag(FlagC, borrows&0x80 != 0)
	a.regFile.PutFlag(FlagV, (d&^s&^r|^d&s&r)&0x80 != 0)

	z := a.regFile.Flag(FlagZ)
	a.regFile.UpdateZeroNegativeFlags(r)
	if keepZ {
		a.regFile.PutFlag(FlagZ, r == 0 && z)
	}
	a.regFile.updateSign()
}
