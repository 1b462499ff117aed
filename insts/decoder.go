// Package insts provides AVR instruction definitions and decoding.
package insts

// Op represents an AVR opcode.
type Op uint8

// AVR opcodes. Assembler aliases (LSL, ROL, TST, CLR, SER, SEI, BREQ, ...)
// decode to the instruction they are encoded as.
const (
	OpUnknown Op = iota
	OpNOP
	OpMOVW
	OpMULS
	OpMULSU
	OpFMUL
	OpFMULS
	OpFMULSU
	OpCPC
	OpSBC
	OpADD
	OpCPSE
	OpCP
	OpSUB
	OpADC
	OpAND
	OpEOR
	OpOR
	OpMOV
	OpCPI
	OpSBCI
	OpSUBI
	OpORI
	OpANDI
	OpLDD
	OpSTD
	OpLDS
	OpSTS
	OpLD
	OpST
	OpLPM
	OpPOP
	OpPUSH
	OpCOM
	OpNEG
	OpSWAP
	OpINC
	OpASR
	OpLSR
	OpROR
	OpDEC
	OpBSET
	OpBCLR
	OpRET
	OpRETI
	OpSLEEP
	OpBREAK
	OpWDR
	OpIJMP
	OpICALL
	OpJMP
	OpCALL
	OpADIW
	OpSBIW
	OpCBI
	OpSBIC
	OpSBI
	OpSBIS
	OpMUL
	OpIN
	OpOUT
	OpRJMP
	OpRCALL
	OpLDI
	OpBRBS
	OpBRBC
	OpBLD
	OpBST
	OpSBRC
	OpSBRS
	numOps
)

var opNames = [numOps]string{
	OpUnknown: "???",
	OpNOP:     "nop",
	OpMOVW:    "movw",
	OpMULS:    "muls",
	OpMULSU:   "mulsu",
	OpFMUL:    "fmul",
	OpFMULS:   "fmuls",
	OpFMULSU:  "fmulsu",
	OpCPC:     "cpc",
	OpSBC:     "sbc",
	OpADD:     "add",
	OpCPSE:    "cpse",
	OpCP:      "cp",
	OpSUB:     "sub",
	OpADC:     "adc",
	OpAND:     "and",
	OpEOR:     "eor",
	OpOR:      "or",
	OpMOV:     "mov",
	OpCPI:     "cpi",
	OpSBCI:    "sbci",
	OpSUBI:    "subi",
	OpORI:     "ori",
	OpANDI:    "andi",
	OpLDD:     "ldd",
	OpSTD:     "std",
	OpLDS:     "lds",
	OpSTS:     "sts",
	OpLD:      "ld",
	OpST:      "st",
	OpLPM:     "lpm",
	OpPOP:     "pop",
	OpPUSH:    "push",
	OpCOM:     "com",
	OpNEG:     "neg",
	OpSWAP:    "swap",
	OpINC:     "inc",
	OpASR:     "asr",
	OpLSR:     "lsr",
	OpROR:     "ror",
	OpDEC:     "dec",
	OpBSET:    "bset",
	OpBCLR:    "bclr",
	OpRET:     "ret",
	OpRETI:    "reti",
	OpSLEEP:   "sleep",
	OpBREAK:   "break",
	OpWDR:     "wdr",
	OpIJMP:    "ijmp",
	OpICALL:   "icall",
	OpJMP:     "jmp",
	OpCALL:    "call",
	OpADIW:    "adiw",
	OpSBIW:    "sbiw",
	OpCBI:     "cbi",
	OpSBIC:    "sbic",
	OpSBI:     "sbi",
	OpSBIS:    "sbis",
	OpMUL:     "mul",
	OpIN:      "in",
	OpOUT:     "out",
	OpRJMP:    "rjmp",
	OpRCALL:   "rcall",
	OpLDI:     "ldi",
	OpBRBS:    "brbs",
	OpBRBC:    "brbc",
	OpBLD:     "bld",
	OpBST:     "bst",
	OpSBRC:    "sbrc",
	OpSBRS:    "sbrs",
}

func (op Op) String() string {
	if op >= numOps {
		return opNames[OpUnknown]
	}
	return opNames[op]
}

// Format represents an instruction operand encoding.
type Format uint8

// Operand formats.
const (
	FormatNone      Format = iota
	FormatRdRr             // 0000 01rd dddd rrrr
	FormatRdRrPair         // MOVW: dddd rrrr register pairs
	FormatRdRrHigh         // MULS: r16-r31
	FormatRdRrMid          // MULSU/FMUL*: r16-r23
	FormatRdK              // kkkk dddd kkkk, d in r16-r31
	FormatRdDisp           // LDD/STD: 10q0 qq0d dddd yqqq
	FormatRd               // 5-bit register only
	FormatRdAbs            // LDS/STS, second word is the data address
	FormatAbsJump          // JMP/CALL, 22-bit word address
	FormatSREGBit          // BSET/BCLR: 0sss
	FormatRdPairK          // ADIW/SBIW: KKdd KKKK
	FormatIOBit            // AAAA Abbb
	FormatRdIO             // IN/OUT: AAd dddd AAAA
	FormatRel12            // RJMP/RCALL: 12-bit signed word offset
	FormatBranch           // BRBS/BRBC: kk kkkk ksss
	FormatRdBit            // BLD/BST/SBRC/SBRS: d dddd 0bbb
)

// PtrMode represents the pointer register and addressing mode of an
// indirect load or store.
type PtrMode uint8

// Pointer addressing modes.
const (
	PtrNone PtrMode = iota
	PtrX            // X
	PtrXInc         // X+
	PtrXDec         // -X
	PtrY            // Y (+q for LDD/STD)
	PtrYInc         // Y+
	PtrYDec         // -Y
	PtrZ            // Z (+q for LDD/STD)
	PtrZInc         // Z+
	PtrZDec         // -Z
)

var ptrNames = [...]string{"", "X", "X+", "-X", "Y", "Y+", "-Y", "Z", "Z+", "-Z"}

func (p PtrMode) String() string {
	if int(p) >= len(ptrNames) {
		return "?"
	}
	return ptrNames[p]
}

// Base returns the low register index of the pointer pair (26, 28 or 30).
func (p PtrMode) Base() uint8 {
	switch p {
	case PtrX, PtrXInc, PtrXDec:
		return 26
	case PtrY, PtrYInc, PtrYDec:
		return 28
	default:
		return 30
	}
}

// PostIncrement reports whether the pointer is incremented after access.
func (p PtrMode) PostIncrement() bool {
	return p == PtrXInc || p == PtrYInc || p == PtrZInc
}

// PreDecrement reports whether the pointer is decremented before access.
func (p PtrMode) PreDecrement() bool {
	return p == PtrXDec || p == PtrYDec || p == PtrZDec
}

// Instruction represents a decoded AVR instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Operand encoding
	Opcode uint16 // First instruction word as fetched
	Words  uint8  // Instruction width in 16-bit words (1 or 2)

	// Register operands. For stores, OUT, PUSH and the skip-on-bit
	// instructions Rd holds the source register.
	Rd uint8
	Rr uint8

	K   uint8   // 8-bit (or 6-bit for ADIW/SBIW) immediate
	A   uint8   // I/O address (0-63)
	Bit uint8   // Bit number, or SREG bit for BSET/BCLR/BRBS/BRBC
	Q   uint8   // Displacement for LDD/STD
	Ptr PtrMode // Pointer register and mode for LD/ST/LDD/STD/LPM

	// Address is the absolute data address for LDS/STS and the word
	// address for JMP/CALL.
	Address uint32

	// Offset is the signed relative offset in words for RJMP, RCALL and
	// conditional branches.
	Offset int32
}

// Decoder decodes AVR machine code into instructions.
type Decoder struct {
	patterns []pattern
}

// NewDecoder creates a new AVR instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{patterns: patterns}
}

// Decode decodes the instruction whose first word is opcode. next is the
// following program word and is only consumed by two-word instructions.
// Unrecognized words decode to OpUnknown with a width of one word.
func (d *Decoder) Decode(opcode, next uint16) *Instruction {
	inst := &Instruction{Op: OpUnknown, Format: FormatNone, Opcode: opcode, Words: 1}

	for i := range d.patterns {
		p := &d.patterns[i]
		if opcode&p.mask != p.match {
			continue
		}

		inst.Op = p.op
		inst.Format = p.format
		inst.Ptr = p.ptr
		extractOperands(opcode, next, inst)
		return inst
	}

	return inst
}

// IsTwoWord reports whether opcode is the first word of a two-word
// instruction (LDS, STS, JMP, CALL). Skip instructions use it to find how far
// to skip.
func IsTwoWord(opcode uint16) bool {
	switch {
	case opcode&0xFC0F == 0x9000: // LDS / STS
		return true
	case opcode&0xFE0C == 0x940C: // JMP / CALL
		return true
	default:
		return false
	}
}

// extractOperands fills the operand fields of inst according to its format.
func extractOperands(opcode, next uint16, inst *Instruction) {
	switch inst.Format {
	case FormatRdRr:
		inst.Rd = uint8((opcode >> 4) & 0x1F)
		inst.Rr = uint8((opcode>>5)&0x10 | opcode&0x0F)
	case FormatRdRrPair:
		inst.Rd = uint8((opcode>>4)&0x0F) * 2
		inst.Rr = uint8(opcode&0x0F) * 2
	case FormatRdRrHigh:
		inst.Rd = 16 + uint8((opcode>>4)&0x0F)
		inst.Rr = 16 + uint8(opcode&0x0F)
	case FormatRdRrMid:
		inst.Rd = 16 + uint8((opcode>>4)&0x07)
		inst.Rr = 16 + uint8(opcode&0x07)
	case FormatRdK:
		inst.Rd = 16 + uint8((opcode>>4)&0x0F)
		inst.K = uint8((opcode>>4)&0xF0 | opcode&0x0F)
	case FormatRdDisp:
		inst.Rd = uint8((opcode >> 4) & 0x1F)
		inst.Q = uint8((opcode>>8)&0x20 | (opcode>>7)&0x18 | opcode&0x07)
		if opcode&0x0008 != 0 {
			inst.Ptr = PtrY
		} else {
			inst.Ptr = PtrZ
		}
	case FormatRd:
		inst.Rd = uint8((opcode >> 4) & 0x1F)
	case FormatRdAbs:
		inst.Rd = uint8((opcode >> 4) & 0x1F)
		inst.Address = uint32(next)
		inst.Words = 2
	case FormatAbsJump:
		hi := uint32((opcode>>3)&0x3E | opcode&0x01)
		inst.Address = hi<<16 | uint32(next)
		inst.Words = 2
	case FormatSREGBit:
		inst.Bit = uint8((opcode >> 4) & 0x07)
	case FormatRdPairK:
		inst.Rd = 24 + uint8((opcode>>4)&0x03)*2
		inst.K = uint8((opcode>>2)&0x30 | opcode&0x0F)
	case FormatIOBit:
		inst.A = uint8((opcode >> 3) & 0x1F)
		inst.Bit = uint8(opcode & 0x07)
	case FormatRdIO:
		inst.Rd = uint8((opcode >> 4) & 0x1F)
		inst.A = uint8((opcode>>5)&0x30 | opcode&0x0F)
	case FormatRel12:
		inst.Offset = signExtend(uint32(opcode&0x0FFF), 12)
	case FormatBranch:
		inst.Offset = signExtend(uint32((opcode>>3)&0x7F), 7)
		inst.Bit = uint8(opcode & 0x07)
	case FormatRdBit:
		inst.Rd = uint8((opcode >> 4) & 0x1F)
		inst.Bit = uint8(opcode & 0x07)
	}
}

// signExtend sign-extends the low width bits of v.
func signExtend(v uint32, width uint) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}
