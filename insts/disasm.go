package insts

import "fmt"

// String renders the instruction in assembler syntax. Relative targets are
// printed as signed word offsets (".+n"), absolute targets as byte
// addresses.
func (i *Instruction) String() string {
	name := i.Op.String()

	switch i.Format {
	case FormatNone:
		if i.Op == OpUnknown {
			return fmt.Sprintf(".word 0x%04x", i.Opcode)
		}
		return name
	case FormatRdRr, FormatRdRrHigh, FormatRdRrMid:
		return fmt.Sprintf("%s r%d, r%d", name, i.Rd, i.Rr)
	case FormatRdRrPair:
		return fmt.Sprintf("%s r%d:r%d, r%d:r%d", name, i.Rd+1, i.Rd, i.Rr+1, i.Rr)
	case FormatRdK:
		return fmt.Sprintf("%s r%d, 0x%02x", name, i.Rd, i.K)
	case FormatRdDisp:
		if i.Op == OpLDD {
			return fmt.Sprintf("%s r%d, %v+%d", name, i.Rd, i.Ptr, i.Q)
		}
		return fmt.Sprintf("%s %v+%d, r%d", name, i.Ptr, i.Q, i.Rd)
	case FormatRd:
		switch i.Op {
		case OpLD, OpLPM:
			return fmt.Sprintf("%s r%d, %v", name, i.Rd, i.Ptr)
		case OpST:
			return fmt.Sprintf("%s %v, r%d", name, i.Ptr, i.Rd)
		}
		return fmt.Sprintf("%s r%d", name, i.Rd)
	case FormatRdAbs:
		if i.Op == OpLDS {
			return fmt.Sprintf("%s r%d, 0x%04x", name, i.Rd, i.Address)
		}
		return fmt.Sprintf("%s 0x%04x, r%d", name, i.Address, i.Rd)
	case FormatAbsJump:
		return fmt.Sprintf("%s 0x%x", name, i.Address*2)
	case FormatSREGBit:
		return fmt.Sprintf("%s %d", name, i.Bit)
	case FormatRdPairK:
		return fmt.Sprintf("%s r%d, %d", name, i.Rd, i.K)
	case FormatIOBit:
		return fmt.Sprintf("%s 0x%02x, %d", name, i.A, i.Bit)
	case FormatRdIO:
		if i.Op == OpIN {
			return fmt.Sprintf("%s r%d, 0x%02x", name, i.Rd, i.A)
		}
		return fmt.Sprintf("%s 0x%02x, r%d", name, i.A, i.Rd)
	case FormatRel12:
		return fmt.Sprintf("%s .%+d", name, i.Offset*2)
	case FormatBranch:
		return fmt.Sprintf("%s %d, .%+d", name, i.Bit, i.Offset*2)
	case FormatRdBit:
		return fmt.Sprintf("%s r%d, %d", name, i.Rd, i.Bit)
	}

	return name
}
