package insts

import (
	"errors"
	"fmt"
)

// ErrEncode is returned when an instruction cannot be encoded.
var ErrEncode = errors.New("cannot encode instruction")

// Encode encodes inst into one or two program words. It is the inverse of
// Decode for every supported instruction. LD and ST through plain Y or Z
// are encoded as LDD/STD with a zero displacement, like the assembler does.
func Encode(inst *Instruction) ([]uint16, error) {
	op, ptr := inst.Op, inst.Ptr
	switch {
	case op == OpLD && (ptr == PtrY || ptr == PtrZ):
		op = OpLDD
	case op == OpST && (ptr == PtrY || ptr == PtrZ):
		op = OpSTD
	}

	p := findPattern(op, ptr, inst.Format)
	if p == nil {
		return nil, fmt.Errorf("%w: %v %v", ErrEncode, inst.Op, inst.Ptr)
	}

	word := p.match
	var next uint16
	twoWord := false

	rd, rr := uint16(inst.Rd), uint16(inst.Rr)
	k := uint16(inst.K)

	switch p.format {
	case FormatNone:
	case FormatRdRr:
		if rd > 31 || rr > 31 {
			return nil, encodeError(inst, "register out of range")
		}
		word |= rd<<4 | (rr&0x10)<<5 | rr&0x0F
	case FormatRdRrPair:
		if rd > 30 || rr > 30 || rd%2 != 0 || rr%2 != 0 {
			return nil, encodeError(inst, "register pair out of range")
		}
		word |= (rd/2)<<4 | rr/2
	case FormatRdRrHigh:
		if rd < 16 || rd > 31 || rr < 16 || rr > 31 {
			return nil, encodeError(inst, "register must be r16-r31")
		}
		word |= (rd-16)<<4 | (rr - 16)
	case FormatRdRrMid:
		if rd < 16 || rd > 23 || rr < 16 || rr > 23 {
			return nil, encodeError(inst, "register must be r16-r23")
		}
		word |= (rd-16)<<4 | (rr - 16)
	case FormatRdK:
		if rd < 16 || rd > 31 {
			return nil, encodeError(inst, "register must be r16-r31")
		}
		word |= (rd-16)<<4 | (k&0xF0)<<4 | k&0x0F
	case FormatRdDisp:
		q := uint16(inst.Q)
		if rd > 31 || q > 63 {
			return nil, encodeError(inst, "operand out of range")
		}
		word |= rd<<4 | (q&0x20)<<8 | (q&0x18)<<7 | q&0x07
	case FormatRd:
		if rd > 31 {
			return nil, encodeError(inst, "register out of range")
		}
		word |= rd << 4
	case FormatRdAbs:
		if rd > 31 || inst.Address > 0xFFFF {
			return nil, encodeError(inst, "operand out of range")
		}
		word |= rd << 4
		next = uint16(inst.Address)
		twoWord = true
	case FormatAbsJump:
		if inst.Address > 0x3FFFFF {
			return nil, encodeError(inst, "target out of range")
		}
		hi := uint16(inst.Address >> 16)
		word |= (hi&0x3E)<<3 | hi&0x01
		next = uint16(inst.Address)
		twoWord = true
	case FormatSREGBit:
		word |= uint16(inst.Bit&0x07) << 4
	case FormatRdPairK:
		if rd < 24 || rd > 30 || rd%2 != 0 || k > 63 {
			return nil, encodeError(inst, "operand out of range")
		}
		word |= ((rd-24)/2)<<4 | (k&0x30)<<2 | k&0x0F
	case FormatIOBit:
		if inst.A > 31 || inst.Bit > 7 {
			return nil, encodeError(inst, "operand out of range")
		}
		word |= uint16(inst.A)<<3 | uint16(inst.Bit)
	case FormatRdIO:
		if rd > 31 || inst.A > 63 {
			return nil, encodeError(inst, "operand out of range")
		}
		a := uint16(inst.A)
		word |= rd<<4 | (a&0x30)<<5 | a&0x0F
	case FormatRel12:
		if inst.Offset < -2048 || inst.Offset > 2047 {
			return nil, encodeError(inst, "offset out of range")
		}
		word |= uint16(inst.Offset) & 0x0FFF
	case FormatBranch:
		if inst.Offset < -64 || inst.Offset > 63 || inst.Bit > 7 {
			return nil, encodeError(inst, "offset out of range")
		}
		word |= (uint16(inst.Offset)&0x7F)<<3 | uint16(inst.Bit)
	case FormatRdBit:
		if rd > 31 || inst.Bit > 7 {
			return nil, encodeError(inst, "operand out of range")
		}
		word |= rd<<4 | uint16(inst.Bit)
	}

	if twoWord {
		return []uint16{word, next}, nil
	}
	return []uint16{word}, nil
}

// Assemble encodes a sequence of instructions into little-endian program
// bytes, ready to be loaded into flash.
func Assemble(program ...Instruction) ([]byte, error) {
	out := make([]byte, 0, len(program)*2)
	for i := range program {
		words, err := Encode(&program[i])
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		for _, w := range words {
			out = append(out, byte(w), byte(w>>8))
		}
	}
	return out, nil
}

func findPattern(op Op, ptr PtrMode, format Format) *pattern {
	for i := range patterns {
		p := &patterns[i]
		if p.op != op {
			continue
		}
		if format != FormatNone && p.format != format {
			continue
		}
		if p.ptr != PtrNone && p.ptr != ptr {
			continue
		}
		return p
	}
	return nil
}

func encodeError(inst *Instruction, reason string) error {
	return fmt.Errorf("%w: %v: %s", ErrEncode, inst.Op, reason)
}
