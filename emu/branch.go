package emu

// BranchUnit implements AVR program-flow changes that do not touch the
// stack. All offsets and targets are in words; the PC is a byte address and
// already points past the current instruction when these run.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// RJMP jumps relative to the next instruction.
func (b *BranchUnit) RJMP(offset int32) {
	b.regFile.pc = uint32(int32(b.regFile.pc) + 2*offset)
}

// JMP jumps to an absolute word address.
func (b *BranchUnit) JMP(word uint32) {
	b.regFile.pc = word << 1
}

// IJMP jumps to the word address held in Z.
func (b *BranchUnit) IJMP() {
	b.JMP(uint32(b.regFile.Pair(RegZ)))
}

// Branch performs BRBS (set=true) or BRBC (set=false) on SREG bit s and
// reports whether the branch was taken.
func (b *BranchUnit) Branch(s uint8, set bool, offset int32) bool {
	if !b.CheckCondition(s, set) {
		return false
	}
	b.RJMP(offset)
	return true
}

// CheckCondition reports whether SREG bit s equals set. Every AVR
// conditional branch (BREQ, BRNE, BRLO, BRGE, ...) is one of these tests.
func (b *BranchUnit) CheckCondition(s uint8, set bool) bool {
	return b.regFile.Flag(Flag(s&0x07)) == set
}
