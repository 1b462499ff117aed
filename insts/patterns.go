package insts

// pattern is one row of the opcode match table: an opcode belongs to the
// row when opcode&mask == match.
type pattern struct {
	mask   uint16
	match  uint16
	op     Op
	format Format
	ptr    PtrMode
}

// patterns is ordered from the most specific mask to the least specific so
// that the first match is the only valid interpretation of a word. Encodings
// this core does not implement (ELPM, SPM, EIJMP, EICALL, DES, XCH/LAS/LAC/
// LAT) are absent and decode as OpUnknown.
var patterns = []pattern{
	// Fully fixed encodings.
	{0xFFFF, 0x0000, OpNOP, FormatNone, PtrNone},
	{0xFFFF, 0x9508, OpRET, FormatNone, PtrNone},
	{0xFFFF, 0x9518, OpRETI, FormatNone, PtrNone},
	{0xFFFF, 0x9588, OpSLEEP, FormatNone, PtrNone},
	{0xFFFF, 0x9598, OpBREAK, FormatNone, PtrNone},
	{0xFFFF, 0x95A8, OpWDR, FormatNone, PtrNone},
	{0xFFFF, 0x95C8, OpLPM, FormatNone, PtrZ}, // lpm (r0 implied)
	{0xFFFF, 0x9409, OpIJMP, FormatNone, PtrNone},
	{0xFFFF, 0x9509, OpICALL, FormatNone, PtrNone},

	// SREG bit set/clear.
	{0xFF8F, 0x9408, OpBSET, FormatSREGBit, PtrNone},
	{0xFF8F, 0x9488, OpBCLR, FormatSREGBit, PtrNone},

	// 1001 000d dddd xxxx: loads.
	{0xFE0F, 0x9000, OpLDS, FormatRdAbs, PtrNone},
	{0xFE0F, 0x9001, OpLD, FormatRd, PtrZInc},
	{0xFE0F, 0x9002, OpLD, FormatRd, PtrZDec},
	{0xFE0F, 0x9004, OpLPM, FormatRd, PtrZ},
	{0xFE0F, 0x9005, OpLPM, FormatRd, PtrZInc},
	{0xFE0F, 0x9009, OpLD, FormatRd, PtrYInc},
	{0xFE0F, 0x900A, OpLD, FormatRd, PtrYDec},
	{0xFE0F, 0x900C, OpLD, FormatRd, PtrX},
	{0xFE0F, 0x900D, OpLD, FormatRd, PtrXInc},
	{0xFE0F, 0x900E, OpLD, FormatRd, PtrXDec},
	{0xFE0F, 0x900F, OpPOP, FormatRd, PtrNone},

	// 1001 001r rrrr xxxx: stores.
	{0xFE0F, 0x9200, OpSTS, FormatRdAbs, PtrNone},
	{0xFE0F, 0x9201, OpST, FormatRd, PtrZInc},
	{0xFE0F, 0x9202, OpST, FormatRd, PtrZDec},
	{0xFE0F, 0x9209, OpST, FormatRd, PtrYInc},
	{0xFE0F, 0x920A, OpST, FormatRd, PtrYDec},
	{0xFE0F, 0x920C, OpST, FormatRd, PtrX},
	{0xFE0F, 0x920D, OpST, FormatRd, PtrXInc},
	{0xFE0F, 0x920E, OpST, FormatRd, PtrXDec},
	{0xFE0F, 0x920F, OpPUSH, FormatRd, PtrNone},

	// 1001 010d dddd xxxx: one-operand instructions.
	{0xFE0F, 0x9400, OpCOM, FormatRd, PtrNone},
	{0xFE0F, 0x9401, OpNEG, FormatRd, PtrNone},
	{0xFE0F, 0x9402, OpSWAP, FormatRd, PtrNone},
	{0xFE0F, 0x9403, OpINC, FormatRd, PtrNone},
	{0xFE0F, 0x9405, OpASR, FormatRd, PtrNone},
	{0xFE0F, 0x9406, OpLSR, FormatRd, PtrNone},
	{0xFE0F, 0x9407, OpROR, FormatRd, PtrNone},
	{0xFE0F, 0x940A, OpDEC, FormatRd, PtrNone},

	// Long jump and call.
	{0xFE0E, 0x940C, OpJMP, FormatAbsJump, PtrNone},
	{0xFE0E, 0x940E, OpCALL, FormatAbsJump, PtrNone},

	// Register pair and I/O bit instructions.
	{0xFF00, 0x9600, OpADIW, FormatRdPairK, PtrNone},
	{0xFF00, 0x9700, OpSBIW, FormatRdPairK, PtrNone},
	{0xFF00, 0x9800, OpCBI, FormatIOBit, PtrNone},
	{0xFF00, 0x9900, OpSBIC, FormatIOBit, PtrNone},
	{0xFF00, 0x9A00, OpSBI, FormatIOBit, PtrNone},
	{0xFF00, 0x9B00, OpSBIS, FormatIOBit, PtrNone},

	// Multiply and word move.
	{0xFF00, 0x0100, OpMOVW, FormatRdRrPair, PtrNone},
	{0xFF00, 0x0200, OpMULS, FormatRdRrHigh, PtrNone},
	{0xFF88, 0x0300, OpMULSU, FormatRdRrMid, PtrNone},
	{0xFF88, 0x0308, OpFMUL, FormatRdRrMid, PtrNone},
	{0xFF88, 0x0380, OpFMULS, FormatRdRrMid, PtrNone},
	{0xFF88, 0x0388, OpFMULSU, FormatRdRrMid, PtrNone},
	{0xFC00, 0x9C00, OpMUL, FormatRdRr, PtrNone},

	// Bit transfer and skip-on-register-bit.
	{0xFE08, 0xF800, OpBLD, FormatRdBit, PtrNone},
	{0xFE08, 0xFA00, OpBST, FormatRdBit, PtrNone},
	{0xFE08, 0xFC00, OpSBRC, FormatRdBit, PtrNone},
	{0xFE08, 0xFE00, OpSBRS, FormatRdBit, PtrNone},

	// Conditional branches.
	{0xFC00, 0xF000, OpBRBS, FormatBranch, PtrNone},
	{0xFC00, 0xF400, OpBRBC, FormatBranch, PtrNone},

	// Two-operand register instructions.
	{0xFC00, 0x0400, OpCPC, FormatRdRr, PtrNone},
	{0xFC00, 0x0800, OpSBC, FormatRdRr, PtrNone},
	{0xFC00, 0x0C00, OpADD, FormatRdRr, PtrNone},
	{0xFC00, 0x1000, OpCPSE, FormatRdRr, PtrNone},
	{0xFC00, 0x1400, OpCP, FormatRdRr, PtrNone},
	{0xFC00, 0x1800, OpSUB, FormatRdRr, PtrNone},
	{0xFC00, 0x1C00, OpADC, FormatRdRr, PtrNone},
	{0xFC00, 0x2000, OpAND, FormatRdRr, PtrNone},
	{0xFC00, 0x2400, OpEOR, FormatRdRr, PtrNone},
	{0xFC00, 0x2800, OpOR, FormatRdRr, PtrNone},
	{0xFC00, 0x2C00, OpMOV, FormatRdRr, PtrNone},

	// I/O space transfer.
	{0xF800, 0xB000, OpIN, FormatRdIO, PtrNone},
	{0xF800, 0xB800, OpOUT, FormatRdIO, PtrNone},

	// Displacement loads and stores (also LD/ST Y and Z with q=0).
	{0xD208, 0x8008, OpLDD, FormatRdDisp, PtrY},
	{0xD208, 0x8000, OpLDD, FormatRdDisp, PtrZ},
	{0xD208, 0x8208, OpSTD, FormatRdDisp, PtrY},
	{0xD208, 0x8200, OpSTD, FormatRdDisp, PtrZ},

	// Register-immediate instructions.
	{0xF000, 0x3000, OpCPI, FormatRdK, PtrNone},
	{0xF000, 0x4000, OpSBCI, FormatRdK, PtrNone},
	{0xF000, 0x5000, OpSUBI, FormatRdK, PtrNone},
	{0xF000, 0x6000, OpORI, FormatRdK, PtrNone},
	{0xF000, 0x7000, OpANDI, FormatRdK, PtrNone},
	{0xF000, 0xE000, OpLDI, FormatRdK, PtrNone},

	// Relative jump and call.
	{0xF000, 0xC000, OpRJMP, FormatRel12, PtrNone},
	{0xF000, 0xD000, OpRCALL, FormatRel12, PtrNone},
}
